package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ordokr/lmssearch/internal/mcp"
	"github.com/ordokr/lmssearch/internal/telemetry"
	"github.com/ordokr/lmssearch/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		noBackground bool
		watch        bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search tools over MCP (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing the search_topics,
search_categories, sync, sync_status, delete_topic and health tools.

Unless disabled, an adaptive background loop keeps the indexes in step
with the datastore. stdout carries only JSON-RPC; logs go to
~/.lmssearch/logs/server.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("watch") {
				a.cfg.Sync.WatchDatastore = watch
			}
			if noBackground {
				a.cfg.Sync.Background = false
			}
			if metricsAddr != "" {
				a.cfg.Server.MetricsAddr = metricsAddr
			}
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&noBackground, "no-background", false, "Do not start the adaptive background sync loop")
	cmd.Flags().BoolVar(&watch, "watch", false, "Wake the background loop when the datastore file changes")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")

	return cmd
}

func (a *app) runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	srv, err := mcp.NewServer(e.svc, a.logger)
	if err != nil {
		return err
	}

	if a.cfg.Sync.Background {
		if err := e.svc.StartBackgroundSync(ctx); err != nil {
			return err
		}
		a.logger.Info("background_sync_enabled", slog.Duration("interval", e.svc.BackgroundInterval()))
	}

	if a.cfg.Sync.Background && a.cfg.Sync.WatchDatastore {
		w, err := watcher.New(e.store.Path(), watcher.Options{DebounceWindow: a.cfg.Sync.WatchDebounce}, a.logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Stop() }()
		go func() {
			if err := w.Start(ctx, e.svc.Nudge); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("datastore_watch_stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if a.cfg.Server.MetricsAddr != "" {
		shutdown := a.serveMetrics(e)
		defer shutdown()
	}

	return srv.Serve(ctx, a.cfg.Server.Transport)
}

// serveMetrics exposes the engine's Prometheus registry and returns a
// shutdown function.
func (a *app) serveMetrics(e *engine) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(e.registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !e.svc.HealthCheck(r.Context()) {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintln(w, "ok")
	})

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("metrics_server_started", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics_server_failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}
}
