package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
)

// runAsk answers a single question and exits.
//
// If the knowledge base is empty or stale it is refreshed first, so a fresh
// install answers with real content instead of an unaided model reply.
func runAsk(args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("usage: voyago ask <question>")
	}

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

	if a.Pipeline.ShouldRefresh(time.Now()) {
		a.Logger.Info("knowledge base is stale, refreshing first")
		if err := a.Pipeline.Refresh(ctx); err != nil {
			a.Logger.Warn("refresh failed, answering without fresh knowledge", "error", err)
		}
	}

	answer, err := a.Pipeline.Answer(ctx, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(answer)
	return nil
}
