package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quizmaster/internal/config"
	"quizmaster/internal/logger"
	"quizmaster/internal/metrics"
	"quizmaster/internal/store"
	"quizmaster/internal/throttle"
	"quizmaster/internal/web"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	port        string
	debugErrors bool
	releaseMode bool
}

// NewServeCmd builds the CLI subcommand that runs the web server.
func NewServeCmd(configPath *string) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, flags)
		},
	}
	cmd.Flags().StringVar(&flags.port, "port", "", "port to listen on (overrides config)")
	cmd.Flags().BoolVar(&flags.debugErrors, "debug-errors", false, "show panic details instead of the 500 page")
	cmd.Flags().BoolVar(&flags.releaseMode, "release", true, "run gin in release mode")
	return cmd
}

func runServer(ctx context.Context, configPath string, flags serveFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if flags.port != "" {
		cfg.Server.Port = flags.port
	}
	if flags.debugErrors {
		cfg.Server.ShowErrorDetails = true
	}
	if flags.releaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.New(cfg.Log.Level)

	db, err := store.Open(cfg.Database, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := store.AutoMigrate(db); err != nil {
		return err
	}
	if err := store.SeedAdmin(ctx, db, cfg.Admin, log.Logger); err != nil {
		return err
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, log)
	defer closeLimiter()

	srv, err := web.New(db, web.Options{
		SecretKey:        cfg.Server.SecretKey,
		ShowErrorDetails: cfg.Server.ShowErrorDetails,
		Logger:           log,
		Metrics:          metrics.New(),
		Limiter:          limiter,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"database": cfg.Database.Type,
		}).Info("starting quizmaster")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newLimiter uses Redis when configured and reachable, otherwise an
// in-process limiter. The returned func releases the Redis client.
func newLimiter(ctx context.Context, cfg config.Config, log *logger.Logger) (throttle.LoginLimiter, func()) {
	window := config.Duration(cfg.Login.Window, 15*time.Minute)
	memory := func() (throttle.LoginLimiter, func()) {
		return throttle.NewMemoryLimiter(cfg.Login.MaxFailures, window), func() {}
	}
	if cfg.Redis.Addr == "" {
		return memory()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unavailable, using in-memory login limiter")
		_ = client.Close()
		return memory()
	}
	log.WithField("addr", cfg.Redis.Addr).Info("login limiter backed by redis")
	return throttle.NewRedisLimiter(client, cfg.Login.MaxFailures, window), func() { _ = client.Close() }
}
