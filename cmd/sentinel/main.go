package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platformbuilds/mirador-sentinel/internal/api"
	"github.com/platformbuilds/mirador-sentinel/internal/api/websocket"
	"github.com/platformbuilds/mirador-sentinel/internal/config"
	"github.com/platformbuilds/mirador-sentinel/internal/discovery"
	"github.com/platformbuilds/mirador-sentinel/internal/services"
	"github.com/platformbuilds/mirador-sentinel/internal/tracing"
	"github.com/platformbuilds/mirador-sentinel/pkg/cache"
	"github.com/platformbuilds/mirador-sentinel/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default: CONFIG_PATH or the standard search paths)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting mirador-sentinel", "version", config.ServiceVersion, "environment", cfg.Environment)
	if dump, err := config.Dump(cfg); err == nil {
		logger.Debug("Effective configuration", "config", dump)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Monitoring.Enabled && cfg.Monitoring.TracingEnabled {
		tp, err := tracing.NewTracerProvider(config.ServiceName, config.ServiceVersion, cfg.Monitoring.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled: failed to create tracer provider", "error", err)
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Tracer provider shutdown failed", "error", err)
				}
			}()
		}
	}

	store := cache.New(cache.Options{
		Nodes:            discovery.CacheNodes(ctx, cfg.Cache, net.DefaultResolver, logger),
		Password:         cfg.Cache.Password,
		DB:               cfg.Cache.DB,
		DialTimeout:      time.Duration(cfg.Cache.DialTimeout) * time.Millisecond,
		OperationTimeout: time.Duration(cfg.Cache.OperationTimeout) * time.Millisecond,
		PoolSize:         cfg.Cache.PoolSize,
	}, logger)
	if s, ok := store.(interface{ Stop() }); ok {
		defer s.Stop()
	}

	var hub *websocket.Hub
	var broadcaster services.AlertBroadcaster
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(cfg.WebSocket, logger)
		broadcaster = hub
		go hub.Run(ctx)
	}

	notifier := services.NewNotificationService(store, cfg.Alerting, services.NewChannels(cfg, broadcaster, logger), logger)
	logger.Info("Notification channels ready", "channels", notifier.EnabledChannels())

	uptime := services.NewUptimeService(store, cfg.Uptime, logger)
	prober := services.NewHealthProber(cfg.Uptime, uptime, notifier, logger)
	go prober.Run(ctx)

	if path := watchedConfigPath(*configPath); path != "" {
		watcher := config.NewConfigWatcher(path, cfg, logger)
		watcher.RegisterWatcher(func(next *config.Config) {
			notifier.UpdateConfig(next.Alerting)
			uptime.UpdateConfig(next.Uptime)
			logger.Info("Applied reloaded configuration",
				"cooldown_minutes", next.Alerting.CooldownMinutes,
				"sla_target_percent", next.Uptime.SLATargetPercent)
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("Configuration watcher stopped", "error", err)
			}
		}()
		defer watcher.Stop()
	}

	apiServer := api.NewServer(cfg, logger, store, notifier, uptime, prober, hub)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		cancel()
	}

	logger.Info("mirador-sentinel shutdown complete")
}

// watchedConfigPath is the file to hot-reload: the -config flag, else
// CONFIG_PATH. Configs found on the search paths are not watched.
func watchedConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv("CONFIG_PATH")
}
