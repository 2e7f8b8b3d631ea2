package crew

import (
	"context"
	"strings"

	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/rag"
)

// Memory keeps task outputs in a vector store so later tasks, and later
// kickoffs, can recall related work.
type Memory struct {
	Store    memory.VectorStore
	Embedder rag.Embedder
	// Limit caps recalled documents; 0 means 3.
	Limit int
	// MinScore drops weakly related documents.
	MinScore float64
}

func (m *Memory) save(ctx context.Context, id, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return rag.IndexDocuments(ctx, m.Store, m.Embedder, map[string]string{id: text})
}

// recall returns stored text related to query, skipping documents whose id
// starts with exclude.
func (m *Memory) recall(ctx context.Context, query, exclude string) (string, error) {
	limit := m.Limit
	if limit <= 0 {
		limit = 3
	}
	docs, err := rag.Query(ctx, m.Store, m.Embedder, query, limit)
	if err != nil {
		return "", err
	}
	kept := docs[:0]
	for _, d := range docs {
		if exclude != "" && strings.HasPrefix(d.ID, exclude) {
			continue
		}
		if d.Score < m.MinScore {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		return "", nil
	}
	return strings.TrimSpace(rag.BuildContext(kept)), nil
}
