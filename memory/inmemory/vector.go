package inmemory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/KamdynS/agentflows/memory"
)

// VectorStore is a brute-force cosine-similarity store.
type VectorStore struct {
	mu   sync.RWMutex
	docs map[string]memory.Document
}

func NewVectorStore() *VectorStore {
	return &VectorStore{docs: make(map[string]memory.Document)}
}

func (v *VectorStore) AddDocument(ctx context.Context, id string, content string, embedding []float64) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	emb := make([]float64, len(embedding))
	copy(emb, embedding)
	v.mu.Lock()
	v.docs[id] = memory.Document{ID: id, Content: content, Embedding: emb}
	v.mu.Unlock()
	return nil
}

// QuerySimilar returns up to limit documents ordered by descending cosine
// similarity; ties break on id.
func (v *VectorStore) QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]memory.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	v.mu.RLock()
	out := make([]memory.Document, 0, len(v.docs))
	for _, d := range v.docs {
		if len(d.Embedding) != len(queryEmbedding) {
			continue
		}
		d.Score = cosine(queryEmbedding, d.Embedding)
		out = append(out, d)
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *VectorStore) DeleteDocument(ctx context.Context, id string) error {
	v.mu.Lock()
	delete(v.docs, id)
	v.mu.Unlock()
	return nil
}

func (v *VectorStore) GetDocument(ctx context.Context, id string) (*memory.Document, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", memory.ErrNotFound, id)
	}
	return &d, nil
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ memory.VectorStore = (*VectorStore)(nil)
