package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KamdynS/agentflows/llm/gemini"
	"github.com/KamdynS/agentflows/llm/openai"
	"github.com/KamdynS/agentflows/memory"
)

// DefaultChunkSize is the chunk size, in runes, used when none is given.
const DefaultChunkSize = 1200

// Chunk splits text into pieces of about size runes, breaking between
// paragraphs where it can. A paragraph longer than size is cut.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		chunks []string
		cur    []string
		n      int
	)
	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, "\n\n"))
			cur, n = nil, 0
		}
	}
	for _, p := range strings.Split(text, "\n\n") {
		r := []rune(p)
		if len(r) > size {
			flush()
			for len(r) > size {
				chunks = append(chunks, string(r[:size]))
				r = r[size:]
			}
			p = string(r)
		} else if n > 0 && n+len(r) > size {
			flush()
		}
		if len(r) > 0 {
			cur = append(cur, p)
			n += len(r)
		}
	}
	flush()
	return chunks
}

// Embedder provides text embeddings.
type Embedder interface {
	EmbedText(ctx context.Context, input string) ([]float64, error)
}

// OpenAIEmbedder implements Embedder using OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates a new embedder.
func NewOpenAIEmbedder(cfg openai.Config, model string) (*OpenAIEmbedder, error) {
	c, err := openai.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{client: c, model: model}, nil
}

// GeminiEmbedder embeds with the Gemini embedding models; an empty model
// selects text-embedding-004.
type GeminiEmbedder struct {
	client *gemini.Client
	model  string
}

func NewGeminiEmbedder(client *gemini.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) EmbedText(ctx context.Context, input string) ([]float64, error) {
	return e.client.Embed(ctx, input, e.model)
}

// EmbedText returns a single vector for the input text.
func (e *OpenAIEmbedder) EmbedText(ctx context.Context, input string) ([]float64, error) {
	model := e.model
	if model == "" || strings.Contains(model, "gpt") {
		model = "text-embedding-3-small"
	}
	return e.client.Embed(ctx, input, model)
}

var (
	_ Embedder = (*OpenAIEmbedder)(nil)
	_ Embedder = (*GeminiEmbedder)(nil)
)

// IndexDocuments chunks, embeds and upserts docs, keyed by source id, into
// store. Chunk ids are "<source>#<n>".
func IndexDocuments(ctx context.Context, store memory.VectorStore, emb Embedder, docs map[string]string) error {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for i, ch := range Chunk(docs[id], DefaultChunkSize) {
			cid := fmt.Sprintf("%s#%d", id, i)
			vec, err := emb.EmbedText(ctx, ch)
			if err != nil {
				return fmt.Errorf("embed %s: %w", cid, err)
			}
			if err := store.AddDocument(ctx, cid, ch, vec); err != nil {
				return fmt.Errorf("upsert %s: %w", cid, err)
			}
		}
	}
	return nil
}

// Query retrieves topK documents by embedding similarity for the question.
func Query(ctx context.Context, store memory.VectorStore, emb Embedder, question string, topK int) ([]memory.Document, error) {
	if topK <= 0 {
		topK = 5
	}
	qvec, err := emb.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}
	return store.QuerySimilar(ctx, qvec, topK)
}

// Source is the id a chunk was indexed under, without the chunk number or
// any "/"-separated prefix.
func Source(chunkID string) string {
	src, _, _ := strings.Cut(chunkID, "#")
	return src[strings.LastIndex(src, "/")+1:]
}

// BuildContext renders retrieved documents for a prompt, each under its
// source.
func BuildContext(docs []memory.Document) string {
	var b strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", Source(d.ID), strings.TrimSpace(d.Content))
	}
	return b.String()
}
