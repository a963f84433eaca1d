package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagewatch/pagewatch/server/internal/api"
	"github.com/pagewatch/pagewatch/server/internal/config"
	"github.com/pagewatch/pagewatch/server/internal/logging"
	"github.com/pagewatch/pagewatch/server/internal/metrics"
	"github.com/pagewatch/pagewatch/server/internal/notifier"
	"github.com/pagewatch/pagewatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; leave empty for defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()

	slog.Info("pagewatch starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"watch_root", cfg.WatchRoot(),
		"filter", cfg.Watch.Filter,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	// The hub closes every client when ctx is cancelled.
	hub := ws.New(logger.With("component", "hub"), m)
	go hub.Run(ctx)

	n := notifier.New(ctx, cfg.WatchRoot(), cfg.Watch, hub, logger.With("component", "notifier"), m)

	mux := http.NewServeMux()
	mux.Handle(cfg.Watch.HubPath, hub)
	mux.Handle(cfg.Watch.ScriptPath, notifier.ScriptHandler(cfg.Watch.HubPath))
	mux.Handle("/api/", api.New(n, hub, cfg.Watch.HubPath))
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
	}

	// Stand-in for the host application's static content.
	if dir := cfg.StaticRoot(); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			mux.Handle("/", http.FileServer(http.Dir(dir)))
			slog.Info("serving static files", "dir", dir)
		} else {
			slog.Warn("static directory not found, not serving static files", "dir", dir)
		}
	}

	// The watch starts here, once; a failure only disables live reload.
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           n.Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort, "hub", cfg.Watch.HubPath)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("pagewatch shutting down")

	if err := n.Close(); err != nil {
		slog.Warn("closing watcher", "err", err)
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}
