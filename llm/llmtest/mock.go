// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/KamdynS/agentflows/llm"
)

// MockClient replays scripted responses in order and records every request.
// Once the script runs out it answers with Default.
type MockClient struct {
	mu        sync.Mutex
	responses []step
	calls     []llm.ChatRequest
	next      int

	Default    string
	ModelID    string
	ProviderID llm.Provider
}

type step struct {
	resp *llm.Response
	err  error
	fn   func(req *llm.ChatRequest) (*llm.Response, error)
}

func NewMockClient() *MockClient {
	return &MockClient{Default: "Default mock response", ModelID: "mock-model", ProviderID: llm.ProviderGemini}
}

// AddResponse scripts a plain text reply.
func (m *MockClient) AddResponse(content string) *MockClient {
	return m.add(step{resp: &llm.Response{Content: content}})
}

// AddToolCalls scripts a reply that asks for tools.
func (m *MockClient) AddToolCalls(content string, calls ...llm.ToolCall) *MockClient {
	return m.add(step{resp: &llm.Response{Content: content, ToolCalls: calls}})
}

// AddError scripts a failed call.
func (m *MockClient) AddError(err error) *MockClient {
	return m.add(step{err: err})
}

// AddFunc scripts a reply computed from the request.
func (m *MockClient) AddFunc(fn func(req *llm.ChatRequest) (*llm.Response, error)) *MockClient {
	return m.add(step{fn: fn})
}

func (m *MockClient) add(s step) *MockClient {
	m.mu.Lock()
	m.responses = append(m.responses, s)
	m.mu.Unlock()
	return m
}

// Calls returns a copy of the requests seen so far.
func (m *MockClient) Calls() []llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.ChatRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// Remaining reports how many scripted steps are unused.
func (m *MockClient) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.responses) - m.next
}

func (m *MockClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	m.calls = append(m.calls, cp)
	var s step
	if m.next < len(m.responses) {
		s = m.responses[m.next]
		m.next++
	} else {
		s = step{resp: &llm.Response{Content: m.Default}}
	}
	m.mu.Unlock()

	if s.fn != nil {
		resp, err := s.fn(&cp)
		if err != nil {
			return nil, err
		}
		return m.fill(resp), nil
	}
	if s.err != nil {
		return nil, s.err
	}
	r := *s.resp
	return m.fill(&r), nil
}

func (m *MockClient) fill(r *llm.Response) *llm.Response {
	if r.Role == "" {
		r.Role = llm.RoleAssistant
	}
	if r.Model == "" {
		r.Model = m.ModelID
	}
	if r.Provider == "" {
		r.Provider = m.ProviderID
	}
	return r
}

func (m *MockClient) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return m.Chat(ctx, &llm.ChatRequest{Messages: llm.TextMessages(prompt)})
}

// Stream delivers the next scripted reply as one chunk per word.
func (m *MockClient) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)
	resp, err := m.Chat(ctx, req)
	if err != nil {
		return err
	}
	for _, chunk := range splitKeep(resp.Content) {
		select {
		case output <- &llm.Response{Content: chunk, Role: llm.RoleAssistant, Model: resp.Model, Provider: resp.Provider}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// splitKeep splits after each space so the chunks join back to s.
func splitKeep(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			out = append(out, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func (m *MockClient) Model() string          { return m.ModelID }
func (m *MockClient) Provider() llm.Provider { return m.ProviderID }
func (m *MockClient) Validate() error        { return nil }

// Call builds a tool call with a JSON argument string.
func Call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Type: "function", Function: llm.Function{Name: name, Arguments: args}}
}

var _ llm.Client = (*MockClient)(nil)
