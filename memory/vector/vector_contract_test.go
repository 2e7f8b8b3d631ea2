package vector_test

import (
	"context"
	"testing"

	mem "github.com/KamdynS/agentflows/memory"
	inm "github.com/KamdynS/agentflows/memory/inmemory"
)

type vectorFactory func(t *testing.T) mem.VectorStore

func runVectorContract(t *testing.T, makeStore vectorFactory) {
	t.Helper()
	ctx := context.Background()
	s := makeStore(t)

	if err := s.AddDocument(ctx, "d1", "content one", []float64{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	doc, err := s.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.ID != "d1" || doc.Content != "content one" {
		t.Fatalf("got %+v", doc)
	}

	docs, err := s.QuerySimilar(ctx, []float64{0.1, 0.2, 0.3}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) == 0 || docs[0].ID != "d1" {
		t.Fatalf("query results = %+v", docs)
	}

	if err := s.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDocument(ctx, "d1"); err == nil {
		t.Fatalf("expected error after delete")
	}
}

func TestVectorContract_InMemory(t *testing.T) {
	runVectorContract(t, func(t *testing.T) mem.VectorStore { return inm.NewVectorStore() })
}
