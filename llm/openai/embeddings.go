package openai

import (
	"context"
	"fmt"

	"github.com/KamdynS/agentflows/llm"
	"github.com/sashabaranov/go-openai"
)

// Embed generates an embedding vector for input. An empty model selects
// text-embedding-3-small.
func (c *Client) Embed(ctx context.Context, input string, model string) ([]float64, error) {
	if model == "" {
		model = llm.ModelOpenAIEmbeddingSmall
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{input},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	out := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		out[i] = float64(v)
	}
	return out, nil
}
