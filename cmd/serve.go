package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/voyago/voyago/api"
	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
)

// runServe initializes the application and starts the HTTP API server
// together with the background refresh loop.
func runServe(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := app.RequireAPIKey(); err != nil {
		return err
	}

	addr := cfg.Addr
	if len(args) > 0 {
		addr = args[0]
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid address %q: %w", addr, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	a.Logger.Info("starting voyago", "version", Version, "addr", addr)

	srv := api.NewServer(a.Pipeline, a.Store, a.Source, api.Options{
		RatePerSecond: cfg.RateLimitPerSecond,
		RateBurst:     cfg.RateLimitBurst,
	}, a.Logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Pipeline.Run(ctx)
	})
	g.Go(func() error {
		return srv.Run(ctx, addr)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
