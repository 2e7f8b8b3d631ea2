package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KamdynS/agentflows/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		APIKey:      "k",
		Timeout:     time.Second,
		BaseURL:     srv.URL,
		RetryConfig: llm.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1,2,3]}],"model":"text-embedding-3-small"}`))
	})
	vec, err := c.Embed(context.Background(), "hi", "")
	if err != nil || len(vec) != 3 || vec[2] != 3 {
		t.Fatalf("embed: %v %v", err, vec)
	}
}

func TestEmbedAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})
	_, err := c.Embed(context.Background(), "hi", "")
	if !llm.IsAuthenticationError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
