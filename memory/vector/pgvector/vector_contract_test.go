package pgvector

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/KamdynS/agentflows/memory"
	"github.com/rs/xid"
)

func TestLiteral(t *testing.T) {
	if got := literal([]float64{0.1, 2, -3.5}); got != "[0.1,2,-3.5]" {
		t.Fatalf("literal = %s", got)
	}
}

func TestVectorContract_PgVector(t *testing.T) {
	dsn := os.Getenv("PGVECTOR_DSN")
	if dsn == "" {
		t.Skip("PGVECTOR_DSN not set")
	}
	ctx := context.Background()
	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("connect: %v", err)
	}
	defer pool.Close()

	s := New(pool, "documents_"+xid.New().String())
	if err := s.EnsureSchema(ctx, 2); err != nil {
		t.Fatalf("schema: %v", err)
	}
	t.Cleanup(func() { _, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+s.tbl()) })

	if err := s.AddDocument(ctx, "d1", "hello", []float64{0.1, 0.2}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.GetDocument(ctx, "d1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	docs, err := s.QuerySimilar(ctx, []float64{0.1, 0.2}, 3)
	if err != nil || len(docs) != 1 || docs[0].ID != "d1" {
		t.Fatalf("query: %v %+v", err, docs)
	}
	_ = s.DeleteDocument(ctx, "d1")
	if _, err := s.GetDocument(ctx, "d1"); !errors.Is(err, memory.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
