package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// systemPromptTemplate frames the model as the Voyago support assistant.
// The %s slot receives the retrieved knowledge-base context.
const systemPromptTemplate = `You are Voyago Support, an AI assistant for the Voyago travel booking platform. You help users with:

AVAILABLE FEATURES:
- Budget Airline Tracker: Real-time flight price comparison using Amadeus API
- Price Drop Notifier: Automatic price monitoring with browser notifications
- Carry-On Only Filter: Find flights without checked baggage fees
- Travel VPN Trick: Search flights from different country markets for better pricing
- Hidden Deal Finder: Discover secret airline deals
- Error Fare Scanner: Find pricing mistakes for savings
- Multi-City Hack Builder: Optimize complex routes
- AI Chat Assistant: This support system

CONTEXT: %s

Guidelines:
- Be helpful, friendly, and knowledgeable about Voyago features
- Provide specific guidance on how to use each travel tool
- Help troubleshoot issues with flight searches, price tracking, and notifications
- Guide users through the VPN market switching process
- Answer questions about baggage filtering and carry-on policies
- Keep responses concise but informative
- If you don't know something specific, acknowledge it and suggest contacting human support`

// noContextPlaceholder stands in when retrieval produced nothing.
const noContextPlaceholder = "No additional context provided"

// Responder answers support messages with the chat model.
type Responder struct {
	g     *genkit.Genkit
	model string
}

// NewResponder creates a Responder using the given provider-qualified model
// name (for example "googleai/gemini-2.5-flash").
func NewResponder(g *genkit.Genkit, model string) *Responder {
	if model == "" {
		model = DefaultChatModel
	}
	return &Responder{g: g, model: model}
}

// Reply generates the assistant's answer to message, grounding it in the
// retrieved knowledge-base context when present.
func (r *Responder) Reply(ctx context.Context, message, retrieved string) (string, error) {
	resp, err := genkit.Generate(ctx, r.g,
		ai.WithModelName(r.model),
		ai.WithSystem(SystemPrompt(retrieved)),
		ai.WithPrompt(message),
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: model returned an empty response")
	}
	return text, nil
}

// SystemPrompt renders the support system prompt with the retrieved context.
func SystemPrompt(retrieved string) string {
	if strings.TrimSpace(retrieved) == "" {
		retrieved = noContextPlaceholder
	}
	return fmt.Sprintf(systemPromptTemplate, retrieved)
}
