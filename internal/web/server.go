// Package web serves the HTML interface over gin.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quizmaster/internal/logger"
	"quizmaster/internal/metrics"
	"quizmaster/internal/service"
	"quizmaster/internal/throttle"
)

const sessionName = "quizmaster_session"

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	SecretKey        string
	ShowErrorDetails bool
	Logger           *logger.Logger
	Metrics          *metrics.Metrics
	Limiter          throttle.LoginLimiter
}

type Server struct {
	engine *gin.Engine
	db     *gorm.DB
	log    *logger.Logger
	mx     *metrics.Metrics

	accounts  *service.Accounts
	content   *service.Content
	quizzes   *service.Quizzes
	analytics *service.Analytics

	showErrorDetails bool
}

// New wires services, sessions, middleware and routes around db.
func New(db *gorm.DB, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.SecretKey == "" {
		return nil, fmt.Errorf("web: secret key is required")
	}

	tmpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:               db,
		log:              opts.Logger,
		mx:               opts.Metrics,
		accounts:         service.NewAccounts(db, opts.Limiter, opts.Logger),
		content:          service.NewContent(db),
		quizzes:          service.NewQuizzes(db),
		analytics:        service.NewAnalytics(db),
		showErrorDetails: opts.ShowErrorDetails,
	}

	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	store := cookie.NewStore([]byte(opts.SecretKey))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	r.Use(
		s.requestID(),
		s.requestLogger(),
		s.mx.Middleware(),
		s.recovery(),
		sessions.Sessions(sessionName, store),
		s.loadPrincipal(),
	)

	s.registerAuthRoutes(r)
	s.registerAdminRoutes(r)
	s.registerUserRoutes(r)

	r.GET("/health", s.healthHandler)
	r.GET("/metrics", gin.WrapH(s.mx.Handler()))
	r.NoRoute(s.notFound)

	s.engine = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ---------- templates ----------

var tmplFuncs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
	"truncate": func(s string, n int) string {
		r := []rune(s)
		if n <= 0 || len(r) <= n {
			return s
		}
		if n <= 1 {
			return string(r[:n])
		}
		return string(r[:n-1]) + "…"
	},
	"ago": func(t time.Time) string {
		return humanize.Time(t)
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02 15:04")
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"percentOf": func(score, total int) string {
		return fmt.Sprintf("%.1f", service.Percent(score, total))
	},
	"fieldErr": func(errs map[string]string, key string) string {
		return errs[key]
	},
}

func loadTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(tmplFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// ---------- health ----------

func (s *Server) healthHandler(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.logFor(c).WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
