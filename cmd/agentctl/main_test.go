package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/llm/llmtest"
	"github.com/KamdynS/agentflows/memory/inmemory"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/tools/support"
	"github.com/KamdynS/agentflows/workflow"
)

type stubBackend struct{}

func (stubBackend) Name() string { return "stub" }

func (stubBackend) Search(ctx context.Context, query string) (*search.Response, error) {
	return &search.Response{Query: query, Answer: "stub answer"}, nil
}

func testApp(t *testing.T, mock *llmtest.MockClient) *app {
	t.Helper()
	dir := t.TempDir()
	return &app{newRuntime: func(ctx context.Context) (*pipelines.Runtime, error) {
		return &pipelines.Runtime{
			Config: &config.Config{
				OutputDir: dir,
				StateFile: filepath.Join(dir, "agent_state.json"),
			},
			Telemetry:     obs.Nop(),
			Model:         mock,
			Search:        stubBackend{},
			Conversations: inmemory.NewConversationStore(),
			Vectors:       inmemory.NewVectorStore(),
			Workflows:     workflow.NewRegistry(),
		}, nil
	}}
}

func execute(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(a)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, &app{}, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "agentctl version "+version+"\n" {
		t.Fatalf("out = %q", out)
	}
}

func TestChatSavesState(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddResponse("Hello Ada.")
	a := testApp(t, mock)
	state := filepath.Join(t.TempDir(), "state.json")

	out, err := execute(t, a, "I am Ada.\nbye\n", "chat", "--memory", "--state-file", state)
	if err != nil {
		t.Fatal(err)
	}
	want := "user: Agent: Hello Ada.\nuser: Goodbye!\nAgent state saved to " + state + "\n"
	if out != want {
		t.Fatalf("out = %q\nwant %q", out, want)
	}

	b, err := os.ReadFile(state)
	if err != nil {
		t.Fatal(err)
	}
	var snap struct {
		SessionID string `json:"session_id"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		t.Fatal(err)
	}
	if snap.SessionID == "" || len(snap.Messages) != 2 || snap.Messages[1].Content != "Hello Ada." {
		t.Fatalf("state = %s", b)
	}
}

func TestChatWithoutMemoryWritesNothing(t *testing.T) {
	a := testApp(t, llmtest.NewMockClient())
	out, err := execute(t, a, "exit\n", "chat")
	if err != nil {
		t.Fatal(err)
	}
	if out != "user: Goodbye!\n" {
		t.Fatalf("out = %q", out)
	}
}

func TestSupportPrintsReport(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", tools.FunctionName(support.ToolName), `{"argument":"tickets"}`))
	mock.AddResponse("Login issues dominate.")
	mock.AddResponse("Simplify password reset.")
	mock.AddResponse("Executive report.")

	out, err := execute(t, testApp(t, mock), "", "support", "--query", "tickets")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"--- Starting Customer Support Analysis Crew ---\n",
		"--- Fetching data for query: tickets ---\n",
		"📋 Task started:",
		"--- Crew Execution Finished ---\n--- Final Report for COO ---\nExecutive report.\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "Starting Customer") > strings.Index(out, "Fetching data") {
		t.Fatalf("banner printed after fetch:\n%s", out)
	}
}

func TestGraphLocal(t *testing.T) {
	out, err := execute(t, &app{}, "", "graph", "--name", "blog", "--dir", "LR")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "graph LR\n") || !strings.Contains(out, "research_task") {
		t.Fatalf("out = %q", out)
	}

	if _, err := execute(t, &app{}, "", "graph", "--name", "nope"); err == nil {
		t.Fatal("expected error for unknown workflow")
	}
}

func TestGraphRemote(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/debug/workflows/mermaid" {
			http.NotFound(w, r)
			return
		}
		query = r.URL.RawQuery
		w.Write([]byte("graph TD\na\n"))
	}))
	defer ts.Close()

	host := strings.TrimPrefix(ts.URL, "http://")
	out, err := execute(t, &app{}, "", "graph", "--name", "research", "--host", host, "--conds")
	if err != nil {
		t.Fatal(err)
	}
	if out != "graph TD\na\n" {
		t.Fatalf("out = %q", out)
	}
	if query != "conds=true&name=research" {
		t.Fatalf("query = %q", query)
	}
}
