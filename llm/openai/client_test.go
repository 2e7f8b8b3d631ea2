package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/KamdynS/agentflows/llm"
)

func TestChatReplaysToolCallsAndParsesResponse(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"","tool_calls":[{"id":"call_2","type":"function","function":{"name":"search_web","arguments":"{\"query\":\"go\"}"}}]}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`))
	})

	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		SystemPrompt: "be brief",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "q"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Type: "function", Function: llm.Function{Name: "search_web", Arguments: `{"query":"a"}`}}}},
			{Role: llm.RoleTool, Name: "search_web", ToolCallID: "call_1", Content: "result"},
		},
		Tools: []llm.Tool{{Type: "function", Function: llm.ToolFunction{Name: "search_web", Parameters: map[string]interface{}{"type": "object"}}}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "call_2" || resp.Usage.TotalTokens != 7 {
		t.Fatalf("resp = %+v", resp)
	}

	msgs := got["messages"].([]interface{})
	if len(msgs) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(msgs))
	}
	assistant := msgs[2].(map[string]interface{})
	if _, ok := assistant["tool_calls"]; !ok {
		t.Fatalf("assistant tool calls not replayed: %+v", assistant)
	}
	tool := msgs[3].(map[string]interface{})
	if tool["tool_call_id"] != "call_1" {
		t.Fatalf("tool message = %+v", tool)
	}
}

func TestValidateConfig(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := NewClient(Config{APIKey: "k", Model: llm.ModelGemini25Flash}); err == nil {
		t.Fatalf("expected provider mismatch error")
	}
}
