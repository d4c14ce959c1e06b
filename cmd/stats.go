package cmd

import (
	"context"
	"fmt"

	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/log"
)

// runStats prints knowledge base statistics from the persisted store.
// Works offline: no API key or network access needed.
func runStats() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	slot, store, err := app.OpenStore(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if closeErr := slot.Close(); closeErr != nil {
			logger.Warn("close error", "error", closeErr)
		}
	}()

	stats := store.Stats()
	fmt.Printf("Backend:   %s\n", cfg.StoreBackend)
	fmt.Printf("Documents: %d\n", stats.TotalDocuments)
	for docType, count := range stats.ByType {
		fmt.Printf("  %-14s %d\n", docType, count)
	}
	return nil
}
