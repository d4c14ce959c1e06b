// Package gemini provides the Gemini-backed embedding and chat clients the
// knowledge pipeline talks to, bridging Genkit's AI surface to the
// pipeline's narrow contracts.
package gemini

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
)

// Default model names. The embedder dimensionality is fixed by the model;
// the store is dimension-agnostic but vectors are only comparable within
// one embedder model, so changing it requires wiping the persisted slot.
const (
	DefaultEmbedderModel = "gemini-embedding-001"
	DefaultChatModel     = "googleai/gemini-2.5-flash"
)

// Init initializes Genkit with the Google AI plugin.
// The plugin reads GEMINI_API_KEY from the environment.
func Init(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("gemini: failed to initialize genkit")
	}
	return g, nil
}

// Embedder adapts a Genkit ai.Embedder to the pipeline's single-text
// embedding contract.
type Embedder struct {
	embedder ai.Embedder
}

// NewEmbedder creates an Embedder for the given model.
func NewEmbedder(g *genkit.Genkit, model string) (*Embedder, error) {
	if model == "" {
		model = DefaultEmbedderModel
	}
	embedder := googlegenai.GoogleAIEmbedder(g, model)
	if embedder == nil {
		return nil, fmt.Errorf("gemini: embedder %q not found", model)
	}
	return &Embedder{embedder: embedder}, nil
}

// NewEmbedderFrom wraps an existing ai.Embedder. Used by tests and by
// callers that resolve the embedder themselves.
func NewEmbedderFrom(embedder ai.Embedder) *Embedder {
	return &Embedder{embedder: embedder}
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("gemini: empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
