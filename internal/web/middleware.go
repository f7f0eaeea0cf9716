package web

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizmaster/internal/models"
	"quizmaster/internal/service"
)

const (
	requestIDKey = "request_id"
	principalKey = "principal"

	msgLoginRequired = "Please log in to access this page."
	msgAdminOnly     = "Access denied. Admin privileges required."
	msgGenericFail   = "Something went wrong. Please try again."
)

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.logFor(c).WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// logFor returns a log entry tagged with the request id and, when known, the user.
func (s *Server) logFor(c *gin.Context) *logrus.Entry {
	entry := s.log.WithRequestID(c.GetString(requestIDKey))
	if p, ok := currentPrincipal(c); ok {
		entry = entry.WithField("user_id", p.UserID)
	}
	return entry
}

// recovery renders the 500 page, or the panic and stack when error details are on.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			s.logFor(c).WithFields(logrus.Fields{
				"panic": fmt.Sprint(rec),
				"route": c.FullPath(),
			}).Error("panic recovered")
			s.writeServerError(c, fmt.Errorf("panic: %v", rec), stack)
		}()
		c.Next()
	}
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.logFor(c).WithError(err).WithField("route", c.FullPath()).Error("unhandled error")
	s.writeServerError(c, err, nil)
}

func (s *Server) writeServerError(c *gin.Context, err error, stack []byte) {
	if c.Writer.Written() {
		c.Abort()
		return
	}
	if s.showErrorDetails {
		c.String(http.StatusInternalServerError, "%v\n\n%s", err, stack)
		c.Abort()
		return
	}
	c.HTML(http.StatusInternalServerError, "500.html", gin.H{"Title": "Server Error"})
	c.Abort()
}

func (s *Server) notFound(c *gin.Context) {
	s.render(c, http.StatusNotFound, "404.html", gin.H{"Title": "Page Not Found"})
}

// ---------- principal ----------

func sessionUserID(sess sessions.Session) (uint, bool) {
	switch v := sess.Get("user_id").(type) {
	case uint:
		return v, true
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case float64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}

// loadPrincipal resolves the session user. A stale id clears the session.
func (s *Server) loadPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		id, ok := sessionUserID(sess)
		if !ok {
			c.Next()
			return
		}
		p, err := s.accounts.PrincipalByID(c.Request.Context(), id)
		switch {
		case errors.Is(err, models.ErrUnauthenticated):
			sess.Clear()
			_ = save(sess)
		case err != nil:
			s.serverError(c, err)
			return
		default:
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func currentPrincipal(c *gin.Context) (service.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return service.Principal{}, false
	}
	p, ok := v.(service.Principal)
	return p, ok
}

func principal(c *gin.Context) service.Principal {
	p, _ := currentPrincipal(c)
	return p
}

func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentPrincipal(c); !ok {
			setFlash(c, "warning", msgLoginRequired)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			setFlash(c, "warning", msgLoginRequired)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		if !p.IsAdmin {
			setFlash(c, "danger", msgAdminOnly)
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// userOnly keeps admins out of the quiz-taking and personal analytics pages.
func userOnly(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			setFlash(c, "warning", msgLoginRequired)
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}
		if p.IsAdmin {
			setFlash(c, "warning", msg)
			c.Redirect(http.StatusFound, "/admin_dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}

// handleError maps service errors to responses. Validation errors are
// handled by the caller since they re-render a form.
func (s *Server) handleError(c *gin.Context, err error, redirectTo string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.notFound(c)
	case errors.Is(err, models.ErrUnauthenticated):
		setFlash(c, "warning", msgLoginRequired)
		c.Redirect(http.StatusFound, "/login")
	case errors.Is(err, models.ErrForbidden):
		setFlash(c, "danger", "Access denied.")
		c.Redirect(http.StatusFound, "/")
	case errors.Is(err, models.ErrPersistence):
		s.logFor(c).WithError(err).WithField("route", c.FullPath()).Error("storage failure")
		setFlash(c, "danger", msgGenericFail)
		c.Redirect(http.StatusFound, redirectTo)
	default:
		s.serverError(c, err)
	}
}

func validationFields(err error) (map[string]string, bool) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}
