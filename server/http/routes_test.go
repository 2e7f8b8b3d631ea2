package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/KamdynS/agentflows/agent/core"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/observability/prom"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/workflow"
)

// sessionAgent answers with the number of turns its session has seen and
// emits an input and output event per turn.
type sessionAgent struct {
	id     string
	turns  map[string]int
	mu     *sync.Mutex
	events core.EventSink
}

func (a *sessionAgent) Run(ctx context.Context, in core.Message) (core.Message, error) {
	a.mu.Lock()
	a.turns[a.id]++
	n := a.turns[a.id]
	a.mu.Unlock()
	if a.events != nil {
		a.events(core.AgentInput{Agent: "Agent", Input: in.Content})
		a.events(core.ToolCall{Agent: "Agent", ID: "c1", Name: "search_web", Arguments: `{"query":"x"}`})
	}
	reply := strings.Repeat("+", n)
	if a.events != nil {
		a.events(core.AgentOutput{Agent: "Agent", Content: reply})
	}
	return core.Message{Role: "assistant", Content: reply}, nil
}

func (a *sessionAgent) RunStream(ctx context.Context, in core.Message, out chan<- core.Message) error {
	defer close(out)
	m, err := a.Run(ctx, in)
	if err != nil {
		return err
	}
	out <- m
	return nil
}

func sessionFactory() (AgentFactory, map[string]int) {
	turns := map[string]int{}
	mu := &sync.Mutex{}
	return func(id string, events core.EventSink) (core.Agent, error) {
		return &sessionAgent{id: id, turns: turns, mu: mu, events: events}, nil
	}, turns
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_SessionsKeepTurnsApart(t *testing.T) {
	factory, turns := sessionFactory()
	server := NewServer(nil, Config{}, WithSessions(factory))
	h := server.server.Handler

	for _, id := range []string{"a", "a", "b"} {
		w := postJSON(t, h, "/chat", ChatRequest{Message: "hi", SessionID: id})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
	}
	if turns["a"] != 2 || turns["b"] != 1 {
		t.Fatalf("turns = %v", turns)
	}

	w := postJSON(t, h, "/chat", ChatRequest{Message: "again", SessionID: "a"})
	var resp ChatResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Message != "+++" || resp.SessionID != "a" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestServer_SessionLocksAreReleased(t *testing.T) {
	factory, turns := sessionFactory()
	server := NewServer(nil, Config{}, WithSessions(factory))
	h := server.server.Handler

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := []string{"a", "b", "c", "d"}[i%4]
			postJSON(t, h, "/chat", ChatRequest{Message: "hi", SessionID: id})
		}(i)
	}
	wg.Wait()

	if turns["a"] != 5 || turns["d"] != 5 {
		t.Fatalf("turns = %v", turns)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.locks) != 0 {
		t.Fatalf("%d session locks left after all turns finished", len(server.locks))
	}
}

func TestServer_SessionFactoryError(t *testing.T) {
	server := NewServer(nil, Config{}, WithSessions(func(string, core.EventSink) (core.Agent, error) {
		return nil, errors.New("no model")
	}))
	w := postJSON(t, server.server.Handler, "/chat", ChatRequest{Message: "hi"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestServer_StreamSendsAgentEvents(t *testing.T) {
	factory, _ := sessionFactory()
	server := NewServer(nil, Config{}, WithSessions(factory))

	w := postJSON(t, server.server.Handler, "/chat/stream", ChatRequest{Message: "hi", SessionID: "s1"})
	body := w.Body.String()

	order := []string{"event: agent_input", "event: tool_call", "event: agent_output", "event: done"}
	last := -1
	for _, marker := range order {
		i := strings.Index(body, marker)
		if i < 0 || i < last {
			t.Fatalf("%q missing or out of order in:\n%s", marker, body)
		}
		last = i
	}
	if !strings.Contains(body, "event: message\ndata: {\"message\":\"+\",\"session_id\":\"s1\"}") {
		t.Fatalf("missing reply message:\n%s", body)
	}
	if !strings.Contains(body, `"kind":"tool_call","event":{"agent":"Agent","id":"c1","name":"search_web"`) {
		t.Fatalf("tool call frame not encoded:\n%s", body)
	}
}

type fakeRunner struct {
	name   string
	inputs map[string]string
	err    error
}

func (f *fakeRunner) RunPipeline(ctx context.Context, name string, inputs map[string]string, opts pipelines.RunOptions) (*pipelines.RunResult, error) {
	f.name, f.inputs = name, inputs
	if f.err != nil {
		return nil, f.err
	}
	return &pipelines.RunResult{Pipeline: name, Output: "# Post"}, nil
}

func TestServer_RunPipeline(t *testing.T) {
	runner := &fakeRunner{}
	server := NewServer(nil, Config{}, WithPipelines(runner))
	h := server.server.Handler

	w := postJSON(t, h, "/runs/blog", RunRequest{Inputs: map[string]string{"topic": "AI"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var res pipelines.RunResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Output != "# Post" || runner.name != "blog" || runner.inputs["topic"] != "AI" {
		t.Fatalf("res = %+v, runner = %+v", res, runner)
	}

	// No body runs with defaults.
	req := httptest.NewRequest("POST", "/runs/support", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || runner.name != "support" || runner.inputs != nil {
		t.Fatalf("status = %d, runner = %+v", w.Code, runner)
	}

	if w := postJSON(t, h, "/runs/nope", RunRequest{}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown pipeline status = %d", w.Code)
	}
	req = httptest.NewRequest("GET", "/runs/blog", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d", w.Code)
	}

	runner.err = errors.New("model down")
	if w := postJSON(t, h, "/runs/research", RunRequest{}); w.Code != http.StatusInternalServerError {
		t.Fatalf("failing run status = %d", w.Code)
	}
}

func TestServer_RunsDisabledWithoutRunner(t *testing.T) {
	server := NewServer(nil, Config{})
	if w := postJSON(t, server.server.Handler, "/runs/blog", RunRequest{}); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestServer_MermaidDebug(t *testing.T) {
	reg := workflow.NewRegistry()
	reg.Register("pair", workflow.Graph{
		Nodes: []workflow.Node{{ID: "a", Label: "A", Start: true}, {ID: "b", Label: "B"}},
		Edges: []workflow.Edge{{From: "a", To: "b", Cond: true}},
	})
	server := NewServer(nil, Config{}, WithWorkflows(reg))
	h := server.server.Handler

	get := func(url string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", url, nil))
		return w
	}

	w := get("/debug/workflows/mermaid?name=pair&dir=lr&conds=true")
	want := "graph LR\na([\"A\"])\nb[\"B\"]\na -->|cond| b\n"
	if w.Code != http.StatusOK || w.Body.String() != want {
		t.Fatalf("status = %d, body = %q", w.Code, w.Body.String())
	}

	w = get("/debug/workflows/mermaid")
	if !strings.Contains(w.Body.String(), `"workflows":["pair"]`) {
		t.Fatalf("list = %s", w.Body.String())
	}
	if w := get("/debug/workflows/mermaid?name=missing"); w.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d", w.Code)
	}
	if w := get("/debug/workflows/mermaid?name=pair&conds=maybe"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad conds status = %d", w.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	exp := prom.New()
	server := NewServer(&scriptedAgent{}, Config{}, WithMetrics(prom.Handler(exp)),
		WithTelemetry(obs.Telemetry{Metrics: exp}))
	ts := httptest.NewServer(server.server.Handler)
	defer ts.Close()

	if _, err := http.Get(ts.URL + "/health"); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "agentflows_requests_total{") || !strings.Contains(string(body), `route="/health"`) {
		t.Fatalf("metrics = %s", body)
	}
}
