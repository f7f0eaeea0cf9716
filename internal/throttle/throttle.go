// Package throttle limits repeated failed logins per account.
package throttle

import (
	"context"
	"strings"
)

// LoginLimiter counts failed logins per key inside a fixed window.
type LoginLimiter interface {
	// Allow reports whether another login attempt may be made for key.
	Allow(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset clears the failures recorded for key.
	Reset(ctx context.Context, key string) error
}

// Key normalizes an email into a limiter key.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
