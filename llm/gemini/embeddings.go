package gemini

import (
	"context"
	"fmt"

	"github.com/KamdynS/agentflows/llm"
	"google.golang.org/genai"
)

// Embed generates a retrieval-document embedding for input. An empty model
// selects text-embedding-004.
func (c *Client) Embed(ctx context.Context, input string, model string) ([]float64, error) {
	if model == "" {
		model = llm.ModelGeminiEmbedding
	}
	resp, err := c.client.Models.EmbedContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(input, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"})
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	values := resp.Embeddings[0].Values
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out, nil
}
