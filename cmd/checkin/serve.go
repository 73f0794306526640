package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/checkin-engine/api"
	"github.com/warp/checkin-engine/store/jsonfile"
)

const shutdownTimeout = 30 * time.Second

// newWatcher is replaced in tests.
var newWatcher = jsonfile.NewWatcher

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and progress event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	return cmd
}

// serve runs the HTTP server, the JSON file watcher and the rollover
// scheduler until ctx is done or one of them fails.
func (c *cli) serve(ctx context.Context) error {
	a, err := newApp(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := api.NewHandler(a.repo, a.engine, a.layer, a.catalog, a.bus, a.ledger)
	h.Locator = a.locator
	h.Logger = c.logger.Named("api")
	h.Clock = a.clock

	// everything that can fail is built before the first goroutine starts
	var watcher *jsonfile.Watcher
	if a.json != nil && c.cfg.Storage.Watch {
		watcher, err = newWatcher(a.json, a.bus, c.cfg.Storage.Debounce, c.logger.Named("watcher"))
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:        c.cfg.Server.Addr,
		Handler:     api.NewRouter(h, c.cfg.Server.AllowedOrigins),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: /api/events streams stay open
		IdleTimeout: 60 * time.Second,
		// request contexts end with ctx so event streams let Shutdown finish
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		c.logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("store", c.cfg.Storage.Backend),
			zap.Int("shops", a.catalog.Len()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		c.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	scheduler := api.NewRolloverScheduler(a.clock, a.bus, c.logger.Named("rollover"))
	scheduler.CheckInterval = c.cfg.Server.RolloverCheck
	g.Go(func() error { return scheduler.Run(ctx) })

	err = g.Wait()
	c.logger.Info("server stopped")
	return err
}
