// Package pgvector stores crew memory documents in Postgres with the
// pgvector extension.
package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KamdynS/agentflows/memory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool  *pgxpool.Pool
	table string
}

// Open connects a pool to dsn.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pgvector pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pgvector: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, table string) *Store {
	if table == "" {
		table = "documents"
	}
	return &Store{pool: pool, table: table}
}

// EnsureSchema creates the extension and the document table for embeddings
// of the given width.
func (s *Store) EnsureSchema(ctx context.Context, dims int) error {
	if dims <= 0 {
		return errors.New("dims must be positive")
	}
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id text PRIMARY KEY,
  content text NOT NULL,
  embedding vector(%d) NOT NULL
)`, pgx.Identifier{s.table}.Sanitize(), dims),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) tbl() string { return pgx.Identifier{s.table}.Sanitize() }

func (s *Store) AddDocument(ctx context.Context, id string, content string, embedding []float64) error {
	if len(embedding) == 0 {
		return errors.New("empty embedding")
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s (id, content, embedding) VALUES ($1, $2, $3::vector) ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding",
		s.tbl()), id, content, literal(embedding))
	return err
}

// QuerySimilar orders by cosine distance; Score is cosine similarity.
func (s *Store) QuerySimilar(ctx context.Context, queryEmbedding []float64, limit int) ([]memory.Document, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		"SELECT id, content, 1 - (embedding <=> $1::vector) AS score FROM %s ORDER BY embedding <=> $1::vector ASC, id LIMIT $2",
		s.tbl()), literal(queryEmbedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]memory.Document, 0, limit)
	for rows.Next() {
		var doc memory.Document
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Score); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tbl()), id)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*memory.Document, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT id, content FROM %s WHERE id = $1", s.tbl()), id)
	var doc memory.Document
	if err := row.Scan(&doc.ID, &doc.Content); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", memory.ErrNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// literal renders v in pgvector's text input format.
func literal(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

var _ memory.VectorStore = (*Store)(nil)
