package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Vajra-Chaitanya/D-M/go/api/internal/config"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/health"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/history"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/httpapi"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/planner"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/session"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/streaming"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tools"
	"github.com/Vajra-Chaitanya/D-M/go/api/internal/tracing"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to CONFIG_PATH)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := tracing.Initialize(cfg.Tracing, logger); err != nil {
		logger.Warn("Tracing initialization failed", zap.Error(err))
	}

	// Generated charts and documents land here; /static serves it.
	if err := os.MkdirAll(cfg.Service.StaticDir, 0o755); err != nil {
		logger.Fatal("Failed to create static output directory",
			zap.String("dir", cfg.Service.StaticDir), zap.Error(err))
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Port, logger)
	}

	events := streaming.NewManager(cfg.Streaming.RingCapacity)

	sessions := session.NewManager(cfg.Redis.Addr, logger)
	defer sessions.Close()

	var hist *history.Store
	if cfg.Database.Enabled {
		db, err := history.Open(cfg.Database.DSN(), logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = history.EnsureSchema(schemaCtx, db)
		cancel()
		if err != nil {
			logger.Fatal("Failed to ensure history schema", zap.Error(err))
		}
		hist = history.NewStore(db, logger)
	} else {
		logger.Info("Query history disabled, no database configured")
	}

	catalog := tools.NewCatalog()
	var watcher *config.Watcher
	if path := cfg.Tools.CatalogPath; path != "" {
		switch err := catalog.LoadFile(path); {
		case err == nil:
			logger.Info("Tool catalog loaded",
				zap.String("path", path), zap.Int("tools", catalog.Len()))
			if cfg.Tools.WatchReload {
				watcher, err = config.NewWatcher(path, catalog.LoadFile, logger)
				if err != nil {
					logger.Warn("Tool catalog watcher failed to start", zap.Error(err))
				}
			}
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("Tool catalog file not found, using built-in defaults",
				zap.String("path", path))
		default:
			logger.Fatal("Failed to load tool catalog",
				zap.String("path", path), zap.Error(err))
		}
	}
	if watcher != nil {
		defer func() { _ = watcher.Stop() }()
	}

	pl := planner.New(cfg.Planner, events, logger)

	checks := health.NewRegistry(logger)
	checks.Register(health.NewPlannerChecker(pl))
	checks.Register(health.NewRedisChecker(sessions.RedisClient()))
	if hist != nil {
		checks.Register(health.NewDatabaseChecker(hist.DB()))
	} else {
		checks.Register(health.NewDatabaseChecker(nil))
	}

	sweepStop := make(chan struct{})
	defer close(sweepStop)
	go sweepSessions(sessions, sweepStop)

	srv := httpapi.NewServer(cfg, httpapi.Deps{
		Planner:  pl,
		Sessions: sessions,
		History:  hist,
		Catalog:  catalog,
		Events:   events,
		Health:   checks,
		Redis:    sessions.RedisClient(),
	}, logger)

	server := &http.Server{
		Addr:    cfg.Service.Addr(),
		Handler: srv.Handler(),
		// WriteTimeout stays zero so SSE and WebSocket streams can
		// outlive any fixed response deadline.
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
		IdleTimeout:  300 * time.Second,
	}

	go func() {
		logger.Info("DualMind API listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if hist != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
		if err := hist.Flush(drainCtx); err != nil {
			logger.Warn("History queue did not fully drain", zap.Error(err))
		}
		cancelDrain()
		if err := hist.Close(); err != nil {
			logger.Error("History store close failed", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.Level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}

func serveMetrics(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("Metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server failed", zap.Error(err))
	}
}

func sweepSessions(sessions *session.Manager, stop <-chan struct{}) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sessions.CleanupExpired()
		case <-stop:
			return
		}
	}
}
