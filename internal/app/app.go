// Package app provides application initialization and dependency wiring.
//
// Setup assembles the full stack from configuration: logger, Genkit with the
// Google AI plugin, the persistence slot, the vector store, the content
// source and the knowledge pipeline. Commands consume the assembled App and
// never construct components themselves.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/firebase/genkit/go/genkit"

	"github.com/voyago/voyago/internal/config"
	"github.com/voyago/voyago/internal/gemini"
	"github.com/voyago/voyago/internal/knowledge"
	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/sitemap"
	"github.com/voyago/voyago/internal/storage"
	"github.com/voyago/voyago/internal/vectorstore"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder *gemini.Embedder

	Slot     storage.Slot
	Store    *vectorstore.Store
	Source   sitemap.Source
	Pipeline *knowledge.Pipeline
}

// Setup wires all components from cfg.
//
// The store is loaded from its slot before the pipeline is created, so a
// previously persisted knowledge base survives restarts. Callers own the
// returned App and must Close it.
func Setup(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	g, err := gemini.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: init genkit: %w", err)
	}

	embedder, err := gemini.NewEmbedder(g, cfg.EmbedderModel)
	if err != nil {
		return nil, fmt.Errorf("app: create embedder: %w", err)
	}
	responder := gemini.NewResponder(g, cfg.ChatModel)

	slot, store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		_ = slot.Close()
		return nil, fmt.Errorf("app: create content source: %w", err)
	}

	pipeline, err := knowledge.New(knowledge.Config{
		Store:           store,
		Source:          source,
		Embedder:        embedder,
		Chatter:         responder,
		Logger:          logger,
		EmbedInterval:   cfg.EmbedInterval,
		StalenessWindow: cfg.StalenessWindow,
		RefreshInterval: cfg.RefreshInterval,
		TopK:            cfg.TopK,
		MinSimilarity:   cfg.MinSimilarity,
	})
	if err != nil {
		_ = slot.Close()
		return nil, fmt.Errorf("app: create pipeline: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Genkit:   g,
		Embedder: embedder,
		Slot:     slot,
		Store:    store,
		Source:   source,
		Pipeline: pipeline,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.Slot == nil {
		return nil
	}
	if err := a.Slot.Close(); err != nil {
		return fmt.Errorf("app: close store slot: %w", err)
	}
	return nil
}

// RequireAPIKey checks that a Gemini API key is present in the environment.
// The Google AI plugin reads it itself; this exists only to fail early with
// a clear message instead of on the first model call.
func RequireAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return fmt.Errorf("app: GEMINI_API_KEY not set")
	}
	return nil
}

// OpenStore opens the configured persistence slot and loads the vector
// store from it. Used by Setup and by commands that inspect the store
// without touching the AI stack.
func OpenStore(ctx context.Context, cfg *config.Config, logger log.Logger) (storage.Slot, *vectorstore.Store, error) {
	slot, err := openSlot(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("app: open store slot: %w", err)
	}

	store := vectorstore.New(slot, logger)
	if err := store.Load(ctx); err != nil {
		_ = slot.Close()
		return nil, nil, fmt.Errorf("app: load vector store: %w", err)
	}
	return slot, store, nil
}

func openSlot(cfg *config.Config) (storage.Slot, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return storage.NewMemorySlot(), nil
	case config.BackendFile:
		path, err := cfg.StorePathOrDefault()
		if err != nil {
			return nil, err
		}
		slot, err := storage.NewFileSlot(path)
		if err != nil {
			return nil, err
		}
		return slot, nil
	case config.BackendSQLite:
		path, err := cfg.StorePathOrDefault()
		if err != nil {
			return nil, err
		}
		slot, err := storage.NewSQLiteSlot(path, cfg.StoreSlot)
		if err != nil {
			return nil, err
		}
		return slot, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.StoreBackend)
	}
}

func newSource(cfg *config.Config, logger log.Logger) (sitemap.Source, error) {
	switch cfg.SourceKind {
	case config.SourceSitemap:
		return sitemap.NewClient(cfg.SitemapURL, nil), nil
	case config.SourceCrawl:
		crawler, err := sitemap.NewCrawler(cfg.CrawlBaseURL, cfg.MaxCrawlPages, logger)
		if err != nil {
			return nil, err
		}
		return crawler, nil
	case config.SourceStatic:
		return sitemap.NewStatic(nil), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrMissingSource, cfg.SourceKind)
	}
}
