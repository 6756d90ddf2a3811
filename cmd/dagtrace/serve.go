package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/dagtrace/internal/events"
	"github.com/alfredjeanlab/dagtrace/internal/metrics"
	"github.com/alfredjeanlab/dagtrace/internal/server"
	"github.com/alfredjeanlab/dagtrace/internal/session"
	"github.com/alfredjeanlab/dagtrace/internal/source"
	"github.com/alfredjeanlab/dagtrace/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the timeline, slices and payloads over HTTP",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		if cmd.Flags().Changed("watch") {
			cfg.Watch, _ = cmd.Flags().GetBool("watch")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		graphSrc, traceSrc, err := openSources(ctx)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (DAGTRACE_NATS_URL not set)")
		}
		broadcaster := server.NewBroadcaster(publisher)
		defer func() {
			if err := broadcaster.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)

		holder := session.NewHolder(graphSrc, traceSrc, broadcaster, session.Options{
			Location: cfg.Location,
			Logger:   logger,
			Metrics:  m,
		})
		if _, err := holder.Reload(ctx, ""); err != nil {
			// With a watcher the documents may still be written; keep serving 503s.
			if !cfg.Watch {
				return err
			}
			logger.Warn("initial load failed, waiting for changes", "err", err)
		}

		if cfg.Watch {
			startWatcher(ctx, holder, graphSrc, traceSrc)
		}

		srv := server.NewTraceServer(holder, broadcaster, m, logger)
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		serveErr := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case <-ctx.Done():
			logger.Info("received signal, shutting down")
		case err := <-serveErr:
			if err != nil {
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// startWatcher reloads the session whenever a local document changes.
// Remote documents cannot be watched and are only reloaded through the API.
func startWatcher(ctx context.Context, holder *session.Holder, srcs ...source.Source) {
	var paths []string
	for _, s := range srcs {
		if p, ok := source.LocalPath(s); ok {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		logger.Warn("watch enabled but no local documents to watch")
		return
	}

	w, err := watch.New(paths, cfg.WatchDebounce, func(ctx context.Context, path string) {
		_, _ = holder.Reload(ctx, path)
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "err", err)
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil {
			logger.Error("watcher stopped", "err", err)
		}
	}()
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default $DAGTRACE_HTTP_ADDR or :8080)")
	serveCmd.Flags().Bool("watch", false, "reload when local documents change")
}
