package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizmaster/internal/config"
	"quizmaster/internal/logger"
	"quizmaster/internal/models"
	"quizmaster/internal/store"
	"quizmaster/internal/throttle"
)

func TestRootCommandWiring(t *testing.T) {
	t.Setenv("CONFIG_PATH", "custom.yaml")
	cmd := newRootCmd()

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "custom.yaml", flag.DefValue)

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("port"))
	assert.NotNil(t, serve.Flags().Lookup("debug-errors"))

	_, _, err = cmd.Find([]string{"migrate"})
	require.NoError(t, err)
}

func TestMigrateCreatesSchemaAndAdmin(t *testing.T) {
	cfg := config.Default()
	cfg.Database.URL = filepath.Join(t.TempDir(), "cli.db")

	ctx := context.Background()
	require.NoError(t, migrate(ctx, cfg, logger.Discard()))
	require.NoError(t, migrate(ctx, cfg, logger.Discard()), "second run is a no-op")

	db, err := store.Open(cfg.Database, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error)
	assert.Equal(t, int64(1), admins)
}

func TestNewLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("memory without redis", func(t *testing.T) {
		cfg := config.Default()
		l, closeFn := newLimiter(ctx, cfg, logger.Discard())
		defer closeFn()
		assert.IsType(t, &throttle.MemoryLimiter{}, l)
	})

	t.Run("redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Redis.Addr = mr.Addr()
		l, closeFn := newLimiter(ctx, cfg, logger.Discard())
		defer closeFn()
		assert.IsType(t, &throttle.RedisLimiter{}, l)
	})

	t.Run("falls back when redis is down", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		cfg := config.Default()
		cfg.Redis.Addr = addr
		l, closeFn := newLimiter(ctx, cfg, logger.Discard())
		defer closeFn()
		assert.IsType(t, &throttle.MemoryLimiter{}, l)
	})
}
