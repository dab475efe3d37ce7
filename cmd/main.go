package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/posematch/internal/adapters/http/api"
	"github.com/okian/posematch/internal/adapters/http/swagger"
	"github.com/okian/posematch/internal/adapters/mq/publisher"
	"github.com/okian/posematch/internal/adapters/repository"
	app "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/config"
	"github.com/okian/posematch/pkg/logger"
	"github.com/okian/posematch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("posematch: " + err.Error() + "\n")
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	lg := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		lg.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	pub, history, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			lg.Error(ctx, "failed to close publishers", logger.Error(err))
		}
	}()

	svc, err := buildService(ctx, cfg, pub, history)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(mux)
	// API documentation under /api-docs
	swagger.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		lg.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	lg.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	lg.Info(ctx, "server stopped")
	return nil
}

// buildPublisher fans events out to the log plus Redis and the SQLite
// history when they are configured. The returned history is nil without
// history_db.
func buildPublisher(ctx context.Context, cfg *config.Config) (*publisher.Fanout, *repository.History, error) {
	children := []publisher.Publisher{publisher.NewLog(nil)}

	if cfg.RedisAddr != "" {
		r, err := publisher.NewRedis(ctx, &redis.Options{Addr: cfg.RedisAddr}, cfg.RedisChannel)
		if err != nil {
			return nil, nil, err
		}
		children = append(children, r)
	}

	var history *repository.History
	if cfg.HistoryDB != "" {
		h, err := repository.OpenHistory(ctx, cfg.HistoryDB)
		if err != nil {
			_ = publisher.NewFanout(children...).Close()
			return nil, nil, err
		}
		history = h
		children = append(children, h)
	}

	return publisher.NewFanout(children...), history, nil
}

// buildService loads the library and the routine and assembles the service.
func buildService(ctx context.Context, cfg *config.Config, pub publisher.Publisher, history *repository.History) (*app.Service, error) {
	lib, err := app.LoadLibrary(ctx, cfg)
	if err != nil {
		return nil, err
	}
	seq, err := app.LoadSequence(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := append(app.ConfigOptions(cfg),
		app.WithLibrary(lib),
		app.WithSequence(seq),
		app.WithScorer(app.NewScorer(cfg)),
		app.WithPublisher(pub),
		app.WithLogger(logger.Named("service")),
	)
	if history != nil {
		opts = append(opts, app.WithHistory(history))
	}
	return app.New(opts...), nil
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
