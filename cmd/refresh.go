package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
)

// runRefresh rebuilds the knowledge base once and reports the result.
func runRefresh() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := app.RequireAPIKey(); err != nil {
		return err
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

	if err := a.Pipeline.Refresh(ctx); err != nil {
		return fmt.Errorf("refreshing knowledge base: %w", err)
	}

	stats := a.Store.Stats()
	fmt.Printf("Knowledge base refreshed: %d documents\n", stats.TotalDocuments)
	for docType, count := range stats.ByType {
		fmt.Printf("  %-14s %d\n", docType, count)
	}
	return nil
}
