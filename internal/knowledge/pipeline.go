// Package knowledge keeps the vector store in sync with the site's content
// and mediates retrieval-augmented chat turns.
//
// The pipeline owns the refresh cycle: it rebuilds page documents from the
// content source while preserving stored conversation history, and answers
// user messages by retrieving relevant context before calling the chat
// model. Every external call degrades rather than propagates: a page that
// fails to embed is skipped, a failed chat call yields a canned fallback
// reply, and a refresh that cannot reach the content source still leaves the
// assistant available without a knowledge base.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/sitemap"
	"github.com/voyago/voyago/internal/vectorstore"
)

// Defaults for Config zero values.
const (
	DefaultEmbedInterval   = 100 * time.Millisecond
	DefaultStalenessWindow = 24 * time.Hour
	DefaultRefreshInterval = 24 * time.Hour
	DefaultTopK            = 3
	DefaultMinSimilarity   = 0.7
	DefaultEmbedTimeout    = 15 * time.Second
	DefaultChatTimeout     = 45 * time.Second
)

// FallbackReply is returned when the chat model cannot produce an answer.
const FallbackReply = "I apologize, but I'm experiencing some technical difficulties. " +
	"Please try again in a moment, or feel free to explore the Voyago travel tools directly."

// ErrRefreshInFlight indicates a refresh is already running.
var ErrRefreshInFlight = errors.New("knowledge: refresh already in flight")

// ErrEmptyMessage indicates a blank or whitespace-only user message.
var ErrEmptyMessage = errors.New("knowledge: message is empty")

// Embedder produces a vector representation of a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chatter generates the assistant reply for a user message.
// The retrieved context may be empty.
type Chatter interface {
	Reply(ctx context.Context, message, retrieved string) (string, error)
}

// Config contains the pipeline's dependencies and tuning knobs.
// Zero-valued knobs use the package defaults.
type Config struct {
	Store    *vectorstore.Store
	Source   sitemap.Source
	Embedder Embedder
	Chatter  Chatter
	Logger   log.Logger

	// EmbedInterval is the pause between consecutive embedding requests
	// during a refresh, a self-imposed rate limit on the embedding service.
	EmbedInterval time.Duration

	// StalenessWindow is the maximum age a refresh may reach before
	// ShouldRefresh reports true again.
	StalenessWindow time.Duration

	// RefreshInterval is the period of the background refresh loop.
	RefreshInterval time.Duration

	// TopK is how many nearest documents a chat turn retrieves.
	TopK int

	// MinSimilarity is the relevance floor: retrieved documents at or below
	// it are excluded from the prompt context.
	MinSimilarity float64

	// EmbedTimeout and ChatTimeout bound individual external calls.
	EmbedTimeout time.Duration
	ChatTimeout  time.Duration
}

func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("knowledge: store is required")
	}
	if cfg.Source == nil {
		return errors.New("knowledge: content source is required")
	}
	if cfg.Embedder == nil {
		return errors.New("knowledge: embedder is required")
	}
	if cfg.Chatter == nil {
		return errors.New("knowledge: chatter is required")
	}
	return nil
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Ready       bool              `json:"ready"`
	LastRefresh time.Time         `json:"lastRefresh"`
	Refreshing  bool              `json:"refreshing"`
	Documents   vectorstore.Stats `json:"documents"`
}

// Pipeline keeps the store's page documents in sync with the content source
// and serves retrieval-augmented chat turns. Safe for concurrent use.
type Pipeline struct {
	store    *vectorstore.Store
	source   sitemap.Source
	embedder Embedder
	chatter  Chatter
	logger   log.Logger

	embedInterval   time.Duration
	stalenessWindow time.Duration
	refreshInterval time.Duration
	topK            int
	minSimilarity   float64
	embedTimeout    time.Duration
	chatTimeout     time.Duration

	refreshing  atomic.Bool // reentrancy guard for Refresh
	mu          sync.Mutex  // guards ready and lastRefresh
	ready       bool
	lastRefresh time.Time
}

// New creates a Pipeline from cfg.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.EmbedInterval <= 0 {
		cfg.EmbedInterval = DefaultEmbedInterval
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = DefaultStalenessWindow
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}

	return &Pipeline{
		store:           cfg.Store,
		source:          cfg.Source,
		embedder:        cfg.Embedder,
		chatter:         cfg.Chatter,
		logger:          cfg.Logger,
		embedInterval:   cfg.EmbedInterval,
		stalenessWindow: cfg.StalenessWindow,
		refreshInterval: cfg.RefreshInterval,
		topK:            cfg.TopK,
		minSimilarity:   cfg.MinSimilarity,
		embedTimeout:    cfg.EmbedTimeout,
		chatTimeout:     cfg.ChatTimeout,
	}, nil
}

// Refresh rebuilds the store's page documents from the content source.
//
// Conversation documents survive the rebuild: they are read out before the
// store is cleared and re-inserted afterwards. Pages are embedded
// sequentially with a fixed pause between requests; a page that fails to
// embed is logged and skipped without aborting the rest. Re-running Refresh
// against unchanged content is idempotent because page documents are keyed
// by URL.
//
// The pipeline is marked ready once a refresh attempt completes, even when
// the content source was unreachable: the assistant then degrades to
// context-free replies instead of staying unavailable.
//
// Returns ErrRefreshInFlight if another Refresh is running.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if !p.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInFlight
	}
	defer p.refreshing.Store(false)

	pages, err := p.source.Pages(ctx)
	if err != nil {
		p.logger.Error("failed to fetch content source, continuing without knowledge base", "error", err)
		p.markReady()
		return fmt.Errorf("knowledge: fetch content source: %w", err)
	}

	// Preserve conversation history across the rebuild.
	var conversations []vectorstore.Document
	for _, doc := range p.store.List() {
		if doc.Metadata.Type == vectorstore.TypeConversation {
			conversations = append(conversations, doc)
		}
	}

	p.store.Clear(ctx)

	for _, doc := range conversations {
		if err := p.store.Upsert(ctx, doc); err != nil {
			p.logger.Warn("failed to restore conversation document", "id", doc.ID, "error", err)
		}
	}

	limiter := rate.NewLimiter(rate.Every(p.embedInterval), 1)
	indexed := 0

	for _, page := range pages {
		if err := limiter.Wait(ctx); err != nil {
			p.markReady()
			return fmt.Errorf("knowledge: refresh interrupted: %w", err)
		}

		embedding, err := p.embed(ctx, page.Title+": "+page.Content)
		if err != nil {
			p.logger.Warn("failed to embed page, skipping", "url", page.URL, "error", err)
			continue
		}

		doc := vectorstore.Document{
			ID:        page.URL,
			Embedding: embedding,
			Metadata: vectorstore.Metadata{
				Content: page.Content,
				URL:     page.URL,
				Title:   page.Title,
				Type:    vectorstore.TypePage,
			},
		}
		if err := p.store.Upsert(ctx, doc); err != nil {
			p.logger.Warn("failed to store page document", "url", page.URL, "error", err)
			continue
		}
		indexed++
	}

	p.markRefreshed()
	p.logger.Info("knowledge base refreshed", "pages", len(pages), "indexed", indexed)
	return nil
}

// ShouldRefresh reports whether a refresh is due at the given time: the
// store is empty, no refresh has happened yet, or the last one is older than
// the staleness window.
func (p *Pipeline) ShouldRefresh(now time.Time) bool {
	if p.store.Len() == 0 {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastRefresh.IsZero() {
		return true
	}
	return now.Sub(p.lastRefresh) > p.stalenessWindow
}

// Answer handles one chat turn: it embeds the user's message, retrieves
// context from the store when the pipeline is ready, and asks the chat model
// for a reply. The chat call is always attempted, with empty context if
// retrieval produced nothing.
//
// Both the user message and the reply are embedded and stored as
// conversation documents (the self-training step); failures there are
// non-fatal. A failed chat call returns FallbackReply, not an error.
func (p *Pipeline) Answer(ctx context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", ErrEmptyMessage
	}

	now := time.Now().UnixMilli()

	queryEmbedding, embedErr := p.embed(ctx, userText)
	if embedErr != nil {
		p.logger.Warn("failed to embed user message", "error", embedErr)
	} else {
		p.selfTrain(ctx, fmt.Sprintf("conversation_%d", now), userText, queryEmbedding)
	}

	retrieved := ""
	if embedErr == nil && p.Ready() {
		retrieved = p.retrieveContext(queryEmbedding)
	}

	chatCtx, cancel := context.WithTimeout(ctx, p.chatTimeout)
	defer cancel()

	reply, err := p.chatter.Reply(chatCtx, userText, retrieved)
	if err != nil {
		p.logger.Error("chat completion failed", "error", err)
		return FallbackReply, nil
	}

	if replyEmbedding, err := p.embed(ctx, reply); err != nil {
		p.logger.Warn("failed to embed assistant reply", "error", err)
	} else {
		p.selfTrain(ctx, fmt.Sprintf("response_%d", now), reply, replyEmbedding)
	}

	return reply, nil
}

// Run drives periodic refreshes until ctx is cancelled. An immediate
// refresh happens first when one is due.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.ShouldRefresh(time.Now()) {
		if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
			p.logger.Error("initial refresh failed", "error", err)
		}
	} else {
		// Fresh persisted knowledge base; nothing to rebuild.
		p.markReady()
	}

	ticker := time.NewTicker(p.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
				p.logger.Error("scheduled refresh failed", "error", err)
			}
		}
	}
}

// Ready reports whether a refresh attempt has completed (or was skipped
// because the persisted store was already fresh).
func (p *Pipeline) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// Status returns a snapshot of the pipeline and store.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	ready, last := p.ready, p.lastRefresh
	p.mu.Unlock()

	return Status{
		Ready:       ready,
		LastRefresh: last,
		Refreshing:  p.refreshing.Load(),
		Documents:   p.store.Stats(),
	}
}

// retrieveContext queries the store and assembles the prompt context from
// matches above the relevance floor. Page documents contribute
// "title: content" lines, everything else its raw content; entries are
// joined by blank lines.
func (p *Pipeline) retrieveContext(queryEmbedding []float32) string {
	results, err := p.store.Query(queryEmbedding, p.topK)
	if err != nil {
		p.logger.Warn("similarity query failed", "error", err)
		return ""
	}

	var parts []string
	for _, result := range results {
		if result.Similarity <= p.minSimilarity {
			continue
		}
		meta := result.Document.Metadata
		if meta.Type == vectorstore.TypePage && meta.Title != "" {
			parts = append(parts, meta.Title+": "+meta.Content)
		} else {
			parts = append(parts, meta.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// embed calls the embedding service with a per-call timeout and a single
// retry for transient failures.
func (p *Pipeline) embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		embedCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
		embedding, err := p.embedder.Embed(embedCtx, text)
		cancel()

		if err == nil {
			return embedding, nil
		}
		lastErr = err

		// The parent being done is not transient; do not retry.
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// selfTrain stores a chat turn as a conversation document.
func (p *Pipeline) selfTrain(ctx context.Context, id, content string, embedding []float32) {
	doc := vectorstore.Document{
		ID:        id,
		Embedding: embedding,
		Metadata: vectorstore.Metadata{
			Content: content,
			Type:    vectorstore.TypeConversation,
		},
	}
	if err := p.store.Upsert(ctx, doc); err != nil {
		p.logger.Warn("failed to store conversation document", "id", id, "error", err)
	}
}

// markReady flips the pipeline to ready without recording a successful
// refresh, so ShouldRefresh keeps reporting true after a total source
// failure.
func (p *Pipeline) markReady() {
	p.mu.Lock()
	p.ready = true
	p.mu.Unlock()
}

// markRefreshed records a completed refresh.
func (p *Pipeline) markRefreshed() {
	p.mu.Lock()
	p.ready = true
	p.lastRefresh = time.Now()
	p.mu.Unlock()
}
