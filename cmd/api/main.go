package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hamed0406/statuspulse/internal/config"
	"github.com/hamed0406/statuspulse/internal/httpapi"
	apimw "github.com/hamed0406/statuspulse/internal/httpapi/middleware"
	"github.com/hamed0406/statuspulse/internal/logging"
	"github.com/hamed0406/statuspulse/internal/metrics"
	"github.com/hamed0406/statuspulse/internal/notify"
	"github.com/hamed0406/statuspulse/internal/probe"
	"github.com/hamed0406/statuspulse/internal/repo"
	"github.com/hamed0406/statuspulse/internal/repo/memory"
	"github.com/hamed0406/statuspulse/internal/repo/postgres"
	"github.com/hamed0406/statuspulse/internal/repo/sqlite"
	"github.com/hamed0406/statuspulse/internal/scheduler"
	"github.com/hamed0406/statuspulse/internal/uptime"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run owns every deferred cleanup so that failures still close the store and
// flush the logger before main exits.
func run() error {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_failed", zap.Error(err))
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if cfg.TargetsFile != "" {
		cat, err := config.LoadCatalog(cfg.TargetsFile)
		if err != nil {
			logger.Error("catalog_load_failed", zap.String("path", cfg.TargetsFile), zap.Error(err))
			return fmt.Errorf("load catalog %s: %w", cfg.TargetsFile, err)
		}
		added, updated, err := config.Sync(ctx, store, cat)
		if err != nil {
			logger.Error("catalog_sync_failed", zap.Error(err))
			return fmt.Errorf("sync catalog: %w", err)
		}
		logger.Info("catalog_synced", zap.Int("added", added), zap.Int("updated", updated))
		go func() {
			if err := config.WatchCatalog(ctx, logger, cfg.TargetsFile, store); err != nil {
				logger.Error("catalog_watch_stopped", zap.Error(err))
			}
		}()
	}

	alerts := notify.NewDispatcher(logger, m, notify.Sinks(
		notify.NewSlack(cfg.SlackWebhookURL),
		notify.NewDiscord(cfg.DiscordWebhookURL),
		notify.NewWebhook(cfg.WebhookURL, cfg.WebhookSecret),
	))
	prober := probe.NewProber(cfg.ProbeTimeout, cfg.RetryAttempts, cfg.RetryBackoff)
	detector := scheduler.NewDetector(logger, store, alerts, m)
	sched := scheduler.New(logger, store, prober, detector, m, cfg.TickInterval, cfg.MaxConcurrent)
	agg := uptime.New(store, cfg.Location)

	go sched.Run(ctx)

	api := httpapi.NewServer(logger, store, agg, sched, m)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Duration("tick", cfg.TickInterval))
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", zap.Error(err))
			serveErr = fmt.Errorf("serve %s: %w", cfg.Addr, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	if err := sched.Drain(shutdownCtx); err != nil {
		logger.Warn("drain_incomplete", zap.Error(err))
	}
	alerts.Wait(shutdownCtx)
	logger.Info("api_stopped")
	return serveErr
}

// openStore picks postgres, then sqlite, then memory.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("store_selected", zap.String("kind", "postgres"))
		return pg, nil
	case cfg.SQLitePath != "":
		s, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("store_selected", zap.String("kind", "sqlite"), zap.String("path", cfg.SQLitePath))
		return s, nil
	default:
		logger.Warn("store_selected", zap.String("kind", "memory"))
		return memory.New(), nil
	}
}
