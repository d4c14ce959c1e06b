package knowledge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/voyago/voyago/internal/log"
	"github.com/voyago/voyago/internal/sitemap"
	"github.com/voyago/voyago/internal/storage"
	"github.com/voyago/voyago/internal/vectorstore"
)

// mockEmbedder returns canned vectors by input text.
type mockEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	failFor   map[string]bool
	failAll   bool
	callCount int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.failAll || m.failFor[text] {
		return nil, errors.New("embedding service unavailable")
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{0.1, 0.1}, nil
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// mockChatter records the context it was handed.
type mockChatter struct {
	mu           sync.Mutex
	reply        string
	err          error
	lastMessage  string
	lastRetrieve string
}

func (m *mockChatter) Reply(_ context.Context, message, retrieved string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMessage = message
	m.lastRetrieve = retrieved
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockChatter) retrieved() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRetrieve
}

// failingSource always fails to produce a snapshot.
type failingSource struct{}

func (failingSource) Pages(context.Context) ([]sitemap.Page, error) {
	return nil, errors.New("content source unreachable")
}

// blockingSource parks in Pages until released, to exercise the
// refresh reentrancy guard.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSource) Pages(ctx context.Context) ([]sitemap.Page, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New(storage.NewMemorySlot(), log.NewNop())
	require.NoError(t, store.Load(context.Background()))

	cfg.Store = store
	if cfg.Embedder == nil {
		cfg.Embedder = &mockEmbedder{}
	}
	if cfg.Chatter == nil {
		cfg.Chatter = &mockChatter{reply: "ok"}
	}
	if cfg.Source == nil {
		cfg.Source = sitemap.NewStatic([]sitemap.Page{{URL: "/a", Title: "A", Content: "alpha"}})
	}
	cfg.Logger = log.NewNop()
	cfg.EmbedInterval = time.Millisecond

	p, err := New(cfg)
	require.NoError(t, err)
	return p, store
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRefresh_BuildsPageDocuments(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{
			{URL: "/a", Title: "A", Content: "alpha"},
			{URL: "/b", Title: "B", Content: "beta"},
		}),
		Embedder: &mockEmbedder{vectors: map[string][]float32{
			"A: alpha": {1, 0},
			"B: beta":  {0, 1},
		}},
	})

	require.NoError(t, p.Refresh(ctx))

	assert.True(t, p.Ready())
	assert.False(t, p.ShouldRefresh(time.Now()))

	docs := store.List()
	require.Len(t, docs, 2)
	byID := map[string]vectorstore.Document{}
	for _, d := range docs {
		byID[d.ID] = d
	}
	assert.Equal(t, []float32{1, 0}, byID["/a"].Embedding)
	assert.Equal(t, "alpha", byID["/a"].Metadata.Content)
	assert.Equal(t, "A", byID["/a"].Metadata.Title)
	assert.Equal(t, vectorstore.TypePage, byID["/a"].Metadata.Type)
}

func TestRefresh_PreservesConversationDocuments(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{})

	require.NoError(t, store.Upsert(ctx, vectorstore.Document{
		ID:        "conversation_1",
		Embedding: []float32{0, 1},
		Metadata:  vectorstore.Metadata{Content: "hi there", Type: vectorstore.TypeConversation},
	}))
	require.NoError(t, store.Upsert(ctx, vectorstore.Document{
		ID:        "/stale",
		Embedding: []float32{1, 1},
		Metadata:  vectorstore.Metadata{Content: "old page", Type: vectorstore.TypePage},
	}))

	require.NoError(t, p.Refresh(ctx))

	docs := store.List()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"conversation_1", "/a"}, ids,
		"conversation survives, stale page does not")

	for _, d := range docs {
		if d.ID == "conversation_1" {
			assert.Equal(t, "hi there", d.Metadata.Content)
		}
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{
			{URL: "/a", Title: "A", Content: "alpha"},
			{URL: "/b", Title: "B", Content: "beta"},
		}),
	})

	require.NoError(t, p.Refresh(ctx))
	first := store.List()

	require.NoError(t, p.Refresh(ctx))
	second := store.List()

	require.Len(t, second, len(first))
	firstByID := map[string]vectorstore.Document{}
	for _, d := range first {
		firstByID[d.ID] = d
	}
	for _, d := range second {
		prev, ok := firstByID[d.ID]
		require.True(t, ok)
		assert.Equal(t, prev.Embedding, d.Embedding)
		assert.Equal(t, prev.Metadata.Content, d.Metadata.Content)
	}
}

func TestRefresh_SkipsFailingPages(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{
			{URL: "/good", Title: "Good", Content: "fine"},
			{URL: "/bad", Title: "Bad", Content: "broken"},
			{URL: "/also-good", Title: "Also", Content: "fine too"},
		}),
		Embedder: &mockEmbedder{failFor: map[string]bool{"Bad: broken": true}},
	})

	require.NoError(t, p.Refresh(ctx))

	assert.Equal(t, 2, store.Len(), "one embedding failure must not abort the rest")
	assert.True(t, p.Ready())
}

func TestRefresh_SourceFailureStillMarksReady(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{Source: failingSource{}})

	require.NoError(t, store.Upsert(ctx, vectorstore.Document{
		ID:        "/existing",
		Embedding: []float32{1},
		Metadata:  vectorstore.Metadata{Content: "kept", Type: vectorstore.TypePage},
	}))

	err := p.Refresh(ctx)
	assert.Error(t, err)
	assert.True(t, p.Ready(), "assistant degrades to context-free replies")
	assert.Equal(t, 1, store.Len(), "a failed refresh leaves the store untouched")
	assert.True(t, p.ShouldRefresh(time.Now().Add(time.Minute)),
		"a failed refresh does not count against staleness")
}

func TestRefresh_ReentrancyGuard(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p, _ := newTestPipeline(t, Config{Source: src})

	done := make(chan error, 1)
	go func() { done <- p.Refresh(context.Background()) }()
	<-src.entered

	assert.ErrorIs(t, p.Refresh(context.Background()), ErrRefreshInFlight)

	close(src.release)
	require.NoError(t, <-done)

	// Guard released after completion.
	require.NoError(t, p.Refresh(context.Background()))
}

func TestShouldRefresh(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{StalenessWindow: time.Hour})

	assert.True(t, p.ShouldRefresh(time.Now()), "empty store is always stale")

	require.NoError(t, p.Refresh(ctx))
	now := time.Now()
	assert.False(t, p.ShouldRefresh(now))
	assert.False(t, p.ShouldRefresh(now.Add(30*time.Minute)))
	assert.True(t, p.ShouldRefresh(now.Add(2*time.Hour)))

	store.Clear(ctx)
	assert.True(t, p.ShouldRefresh(now), "empty store trumps a recent refresh")
}

func TestAnswer_UsesRetrievedContext(t *testing.T) {
	ctx := context.Background()
	chatter := &mockChatter{reply: "use the VPN trick"}
	p, _ := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{
			{URL: "/vpn", Title: "Travel VPN Trick", Content: "search other markets"},
		}),
		Embedder: &mockEmbedder{vectors: map[string][]float32{
			"Travel VPN Trick: search other markets": {1, 0},
			"how do I use the vpn trick?":            {1, 0},
		}},
		Chatter: chatter,
	})
	require.NoError(t, p.Refresh(ctx))

	reply, err := p.Answer(ctx, "how do I use the vpn trick?")
	require.NoError(t, err)
	assert.Equal(t, "use the VPN trick", reply)
	assert.Equal(t, "Travel VPN Trick: search other markets", chatter.retrieved())
}

func TestAnswer_RelevanceFloorExcludesWeakMatches(t *testing.T) {
	ctx := context.Background()
	chatter := &mockChatter{reply: "generic answer"}
	p, _ := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{
			{URL: "/a", Title: "A", Content: "alpha"},
		}),
		Embedder: &mockEmbedder{vectors: map[string][]float32{
			"A: alpha":        {1, 2},
			"unrelated query": {1, 0},
			"generic answer":  {0, 1},
		}},
		Chatter: chatter,
	})
	require.NoError(t, p.Refresh(ctx))

	// Best match similarity is cos([1,0],[1,2]) ≈ 0.447 ≤ 0.7.
	_, err := p.Answer(ctx, "unrelated query")
	require.NoError(t, err)
	assert.Empty(t, chatter.retrieved(), "matches at or below the floor are excluded")
}

func TestAnswer_SelfTrainsBothSides(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{Chatter: &mockChatter{reply: "the answer"}})
	require.NoError(t, p.Refresh(ctx))
	base := store.Len()

	_, err := p.Answer(ctx, "a question")
	require.NoError(t, err)

	assert.Equal(t, base+2, store.Len())
	stats := store.Stats()
	assert.Equal(t, 2, stats.ByType[vectorstore.TypeConversation])

	contents := map[string]bool{}
	for _, d := range store.List() {
		if d.Metadata.Type == vectorstore.TypeConversation {
			contents[d.Metadata.Content] = true
		}
	}
	assert.True(t, contents["a question"])
	assert.True(t, contents["the answer"])
}

func TestAnswer_EmbedFailureDegradesToContextFreeChat(t *testing.T) {
	ctx := context.Background()
	chatter := &mockChatter{reply: "still helpful"}
	p, store := newTestPipeline(t, Config{
		Embedder: &mockEmbedder{failAll: true},
		Chatter:  chatter,
	})

	reply, err := p.Answer(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "still helpful", reply)
	assert.Empty(t, chatter.retrieved())
	assert.Equal(t, 0, store.Len(), "self-training is skipped when embedding fails")
}

func TestAnswer_ChatFailureReturnsFallback(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, Config{Chatter: &mockChatter{err: errors.New("model down")}})

	reply, err := p.Answer(ctx, "hello")
	require.NoError(t, err, "chat failure is user-visible, not an error")
	assert.Equal(t, FallbackReply, reply)
}

func TestAnswer_RejectsEmptyMessage(t *testing.T) {
	p, _ := newTestPipeline(t, Config{})
	_, err := p.Answer(context.Background(), "   ")
	assert.Error(t, err)
}

func TestAnswer_RetriesTransientEmbedFailure(t *testing.T) {
	ctx := context.Background()

	embedder := &flakyEmbedder{failures: 1}
	chatter := &mockChatter{reply: "ok"}
	p, store := newTestPipeline(t, Config{Embedder: embedder, Chatter: chatter})

	_, err := p.Answer(ctx, "hello")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, store.Len(), 1, "retry recovered the user-message embedding")
}

// flakyEmbedder fails the first n calls, then succeeds.
type flakyEmbedder struct {
	mu       sync.Mutex
	failures int
}

func (f *flakyEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient")
	}
	return []float32{1, 0}, nil
}

// End-to-end scenario: refresh → query → conversation survives a second
// refresh with the same source.
func TestPipeline_EndToEnd(t *testing.T) {
	ctx := context.Background()
	p, store := newTestPipeline(t, Config{
		Source: sitemap.NewStatic([]sitemap.Page{{URL: "/a", Title: "A", Content: "alpha"}}),
		Embedder: &mockEmbedder{vectors: map[string][]float32{
			"A: alpha": {1, 0},
		}},
	})

	require.Equal(t, 0, store.Len())
	require.NoError(t, p.Refresh(ctx))

	docs := store.List()
	require.Len(t, docs, 1)
	assert.Equal(t, "/a", docs[0].ID)
	assert.Equal(t, vectorstore.TypePage, docs[0].Metadata.Type)

	results, err := store.Query([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/a", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)

	require.NoError(t, store.Upsert(ctx, vectorstore.Document{
		ID:        "conv_1",
		Embedding: []float32{0, 1},
		Metadata:  vectorstore.Metadata{Content: "hi", Type: vectorstore.TypeConversation},
	}))

	require.NoError(t, p.Refresh(ctx))

	final := store.List()
	require.Len(t, final, 2)
	ids := []string{final[0].ID, final[1].ID}
	assert.ElementsMatch(t, []string{"/a", "conv_1"}, ids)
}

func TestRun_RefreshesAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	p, store := newTestPipeline(t, Config{
		RefreshInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() > 0 },
		2*time.Second, 5*time.Millisecond)
	assert.True(t, p.Ready())

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
