package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KamdynS/agentflows/llm"
)

func newTestClient(t *testing.T, cfg Config, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg.APIKey = "k"
	cfg.BaseURL = srv.URL
	cfg.Timeout = time.Second
	cfg.RetryConfig = llm.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestChatBuildsRequestAndParsesFunctionCalls(t *testing.T) {
	var got map[string]interface{}
	var path string
	c := newTestClient(t, Config{ThinkingBudget: llm.Int(0)}, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"responseId":"r1","candidates":[{"finishReason":"STOP","content":{"role":"model","parts":[{"text":"thinking...","thought":true},{"text":"let me check"},{"functionCall":{"name":"search_web","args":{"query":"go"}}}]}}],"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2,"thoughtsTokenCount":1,"totalTokenCount":8}}`))
	})

	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "q"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Function: llm.Function{Name: "search_web", Arguments: `{"query":"a"}`}}}},
			{Role: llm.RoleTool, Name: "search_web", ToolCallID: "call_1", Content: "result"},
		},
		Tools: []llm.Tool{{Type: "function", Function: llm.ToolFunction{Name: "search_web", Parameters: map[string]interface{}{"type": "object"}}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.HasSuffix(path, "models/gemini-2.5-flash:generateContent") {
		t.Fatalf("path = %s", path)
	}
	if resp.Content != "let me check" {
		t.Fatalf("thought text leaked or content lost: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Arguments != `{"query":"go"}` {
		t.Fatalf("tool calls = %+v", resp.ToolCalls)
	}
	if !strings.HasPrefix(resp.ToolCalls[0].ID, "call_") {
		t.Fatalf("expected generated call id, got %q", resp.ToolCalls[0].ID)
	}
	if resp.Usage == nil || resp.Usage.ThinkingTokens != 1 || resp.Usage.TotalTokens != 8 {
		t.Fatalf("usage = %+v", resp.Usage)
	}

	if _, ok := got["systemInstruction"]; !ok {
		t.Fatalf("system instruction missing: %v", got)
	}
	contents := got["contents"].([]interface{})
	if len(contents) != 3 {
		t.Fatalf("contents = %d", len(contents))
	}
	if role := contents[1].(map[string]interface{})["role"]; role != "model" {
		t.Fatalf("assistant turn role = %v", role)
	}
	gen, _ := got["generationConfig"].(map[string]interface{})
	thinking, _ := gen["thinkingConfig"].(map[string]interface{})
	if thinking == nil || thinking["thinkingBudget"] != float64(0) {
		t.Fatalf("thinking config = %v", gen)
	}
}

func TestChatGroundingAddsGoogleSearchAndCitations(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"STOP","content":{"role":"model","parts":[{"text":"Go 1.24 is out."}]},"groundingMetadata":{"webSearchQueries":["go release"],"groundingChunks":[{"web":{"uri":"https://go.dev/doc/go1.24","title":"go.dev"}}]}}]}`))
	})

	resp, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: llm.TextMessages("latest go"), Grounding: true})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	tools, _ := got["tools"].([]interface{})
	if len(tools) != 1 {
		t.Fatalf("tools = %v", got["tools"])
	}
	if _, ok := tools[0].(map[string]interface{})["googleSearch"]; !ok {
		t.Fatalf("google search tool missing: %v", tools[0])
	}
	if len(resp.Citations) != 1 || resp.Citations[0].URL != "https://go.dev/doc/go1.24" {
		t.Fatalf("citations = %+v", resp.Citations)
	}
	if resp.Meta["search_queries"] != "go release" {
		t.Fatalf("meta = %v", resp.Meta)
	}
}

func TestChatProModelIgnoresZeroThinkingBudget(t *testing.T) {
	var raw string
	c := newTestClient(t, Config{ThinkingBudget: llm.Int(0)}, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"STOP","content":{"role":"model","parts":[{"text":"ok"}]}}]}`))
	})

	req := &llm.ChatRequest{Model: llm.ModelGemini25Pro, Messages: llm.TextMessages("q"), Grounding: true}
	if _, err := c.Chat(context.Background(), req); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if strings.Contains(raw, `"thinkingBudget":0`) {
		t.Fatalf("zero budget sent to %s: %s", llm.ModelGemini25Pro, raw)
	}

	req.ThinkingBudget = llm.Int(-1)
	if _, err := c.Chat(context.Background(), req); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.Contains(raw, `"thinkingBudget":-1`) {
		t.Fatalf("dynamic budget missing: %s", raw)
	}
}

func TestChatEmptyResponse(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"SAFETY","content":{"role":"model","parts":[]}}]}`))
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: llm.TextMessages("x")})
	llmErr, ok := llm.IsLLMError(err)
	if !ok || llmErr.Type != llm.ErrorTypeEmptyResponse {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestChatMapsAPIError(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	})
	_, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: llm.TextMessages("x")})
	llmErr, ok := llm.IsLLMError(err)
	if !ok || llmErr.Type != llm.ErrorTypePermission || llmErr.Code != "PERMISSION_DENIED" {
		t.Fatalf("got %v", err)
	}
}

func TestEmbed(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":[0.5,0.25]}]}`))
	})
	vec, err := c.Embed(context.Background(), "doc", "")
	if err != nil || len(vec) != 2 || vec[1] != 0.25 {
		t.Fatalf("embed: %v %v", err, vec)
	}
}

func TestValidateConfig(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient(Config{APIKey: "k", Model: llm.ModelClaudeSonnet4}); err == nil {
		t.Fatalf("expected provider mismatch error")
	}
	if _, err := NewClient(Config{APIKey: "k", ThinkingBudget: llm.Int(-5)}); err == nil {
		t.Fatalf("expected thinking budget error")
	}
}
