package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/netwatch/netwatch/internal/api"
	"github.com/netwatch/netwatch/internal/broadcast"
	"github.com/netwatch/netwatch/internal/config"
	"github.com/netwatch/netwatch/internal/monitor"
	"github.com/netwatch/netwatch/internal/notify"
	"github.com/netwatch/netwatch/internal/registry"
	"github.com/netwatch/netwatch/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watchConfig := flag.Bool("watch-config", false, "log config file changes (endpoints stay fixed per session)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("netwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	reg, err := registry.Load(cfg.Monitor.Endpoints)
	if err != nil {
		slog.Error("failed to load endpoints", "path", cfg.Monitor.Endpoints, "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"endpoints", reg.Len(),
		"probe_interval", cfg.Monitor.ProbeInterval,
		"max_probes", cfg.Monitor.MaxProbes,
		"rules", len(cfg.Alerts.Rules),
		"http_port", cfg.Server.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipeline, err := monitor.New(cfg, reg, logger)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		os.Exit(1)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		pipeline.Run(ctx)
	}()

	// Webhook notifier — a broadcaster subscriber with its own queue.
	if len(cfg.Alerts.Webhooks) > 0 {
		events, err := pipeline.Broadcaster().Subscribe("webhooks", broadcast.DefaultQueueDepth)
		if err != nil {
			slog.Error("failed to subscribe notifier", "err", err)
			os.Exit(1)
		}
		notifier := notify.New(cfg.Alerts.Webhooks, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Run(ctx, events)
		}()
	}

	// WebSocket hub — streams score snapshots and alert events to clients.
	wsEvents, err := pipeline.Broadcaster().Subscribe("ws", broadcast.DefaultQueueDepth)
	if err != nil {
		slog.Error("failed to subscribe websocket hub", "err", err)
		os.Exit(1)
	}
	hub := ws.New(pipeline, cfg.Server.StreamInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx, wsEvents)
	}()

	// Combined HTTP server: REST API + WebSocket hub on HTTPPort.
	httpMux := http.NewServeMux()
	apiHandler := api.New(pipeline)
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/healthz", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	if *watchConfig {
		go func() {
			if err := config.Watch(ctx, *configPath, func(*config.Config) {
				slog.Info("config changed — restart to apply pipeline settings")
			}); err != nil {
				slog.Error("config watch failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("netwatch shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
	wg.Wait()
}
