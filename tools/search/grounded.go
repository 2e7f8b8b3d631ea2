package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/llm"
)

// Grounded answers a query with a model that runs its own web search
// (Gemini with Google Search). Citations become results. Requests use a
// dynamic thinking budget whatever the client default is.
type Grounded struct {
	client llm.Client
	model  string
}

// NewGrounded uses client with model (empty keeps the client default).
func NewGrounded(client llm.Client, model string) (*Grounded, error) {
	if client == nil {
		return nil, errors.New("grounded: client is required")
	}
	if client.Provider() != llm.ProviderGemini {
		return nil, fmt.Errorf("grounded: provider %s has no built-in search", client.Provider())
	}
	return &Grounded{client: client, model: model}, nil
}

func (g *Grounded) Name() string { return "grounded" }

func researchPrompt(query string) string {
	return "Please research given this query or topic,\nand return the result\n<query_or_topic>" + query + "</query_or_topic>"
}

func (g *Grounded) Search(ctx context.Context, query string) (*Response, error) {
	resp, err := g.client.Chat(ctx, &llm.ChatRequest{
		Model:          g.model,
		Messages:       llm.TextMessages(researchPrompt(query)),
		Grounding:      true,
		ThinkingBudget: llm.Int(-1),
	})
	if err != nil {
		return nil, err
	}
	out := &Response{Query: query, Answer: strings.TrimSpace(resp.Content)}
	for _, c := range resp.Citations {
		out.Results = append(out.Results, Result{Title: c.Title, URL: c.URL})
	}
	return out, nil
}

var _ Backend = (*Grounded)(nil)
