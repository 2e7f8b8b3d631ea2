package pipelines

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/KamdynS/agentflows/agent/handoff"
	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/llm/llmtest"
	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/memory/inmemory"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/tools"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/tools/support"
	"github.com/KamdynS/agentflows/workflow"
)

type fakeBackend struct {
	err     error
	queries []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, query string) (*search.Response, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return &search.Response{Query: query, Answer: "Sunny, 24C"}, nil
}

func testRuntime(t *testing.T, model llm.Client, backend search.Backend) *Runtime {
	t.Helper()
	return &Runtime{
		Config:        &config.Config{OutputDir: t.TempDir(), Model: config.ModelConfig{Temperature: 0.5}},
		Telemetry:     obs.Nop(),
		Model:         model,
		Search:        backend,
		Conversations: inmemory.NewConversationStore(),
		Vectors:       inmemory.NewVectorStore(),
		Workflows:     workflow.NewRegistry(),
	}
}

func toolMessages(req llm.ChatRequest) []string {
	var out []string
	for _, m := range req.Messages {
		if m.Role == llm.RoleTool {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestRecordNotesFilesUnderTitle(t *testing.T) {
	ctx := context.Background()
	st := memory.NewState(ResearchInitialState())
	tool := tools.WithState(RecordNotes(), st)

	out, err := tool.Execute(ctx, `{"notes":"CERN, 1989","notes_title":"Origins"}`)
	if err != nil || out != "Notes recorded." {
		t.Fatalf("out = %q, err = %v", out, err)
	}
	if _, err := tool.Execute(ctx, `{"notes":"Mosaic, 1993","notes_title":"Browsers"}`); err != nil {
		t.Fatal(err)
	}
	v, _, _ := st.Get(ctx, KeyResearchNotes)
	want := map[string]interface{}{"Origins": "CERN, 1989", "Browsers": "Mosaic, 1993"}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("notes = %#v", v)
	}

	if _, err := tool.Execute(ctx, `{"notes":"x"}`); !errors.Is(err, tools.ErrInvalidInput) {
		t.Fatalf("missing title err = %v", err)
	}
}

func TestResearchInitialStateIsFresh(t *testing.T) {
	a := ResearchInitialState()
	a[KeyResearchNotes].(map[string]interface{})["x"] = "y"
	b := ResearchInitialState()
	if len(b[KeyResearchNotes].(map[string]interface{})) != 0 {
		t.Fatal("initial state shared between calls")
	}
	if b[KeyReportContent] != "Not written yet." || b[KeyReview] != "Review required." {
		t.Fatalf("state = %#v", b)
	}
}

func TestRunResearch(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", "search_web", `{"query":"history of the web"}`))
	mock.AddToolCalls("", llmtest.Call("c2", "record_notes", `{"notes":"CERN, 1989","notes_title":"Origins"}`))
	mock.AddToolCalls("", llmtest.Call("c3", handoff.ToolName, `{"to_agent":"WriteAgent","reason":"notes done"}`))
	mock.AddToolCalls("", llmtest.Call("c4", "write_report", `{"report_content":"# The web"}`))
	mock.AddToolCalls("", llmtest.Call("c5", handoff.ToolName, `{"to_agent":"ReviewAgent","reason":"review please"}`))
	mock.AddToolCalls("", llmtest.Call("c6", "review_report", `{"review":"Approved."}`))
	mock.AddResponse("Done.")

	backend := &fakeBackend{}
	rt := testRuntime(t, mock, backend)
	res, err := rt.RunPipeline(context.Background(), NameResearch, nil, RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Output != "# The web" || res.Pipeline != NameResearch {
		t.Fatalf("result = %+v", res)
	}
	if res.State[KeyReview] != "Approved." {
		t.Fatalf("state = %#v", res.State)
	}
	if len(backend.queries) != 1 || backend.queries[0] != "history of the web" {
		t.Fatalf("queries = %v", backend.queries)
	}
	first := mock.Calls()[0]
	if got := first.Messages[len(first.Messages)-1].Content; !strings.Contains(got, "history of the web") {
		t.Fatalf("default topic not sent: %q", got)
	}
}

func TestResearchPrefersGroundedSearch(t *testing.T) {
	plain, grounded := &fakeBackend{}, &fakeBackend{}
	rt := testRuntime(t, llmtest.NewMockClient(), plain)
	rt.Grounded = grounded
	if rt.researchSearch() != grounded {
		t.Fatal("grounded backend not used")
	}
	rt.Grounded = nil
	if rt.researchSearch() != plain {
		t.Fatal("plain backend not used")
	}
}

func TestWriteReportSummary(t *testing.T) {
	ctx := context.Background()
	st := memory.NewState(ResearchInitialState())
	_ = st.Set(ctx, KeyReportContent, "# Report")
	_ = st.Set(ctx, KeyReview, "Looks good.")

	var buf bytes.Buffer
	WriteReportSummary(ctx, &buf, st)
	want := "--------final report and review --------\n" +
		"Report Content:\n # Report\n" +
		"\n------------\nFinal Review:\n Looks good.\n"
	if buf.String() != want {
		t.Fatalf("summary = %q", buf.String())
	}
}

func TestAssistantSearchFailureIsReported(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", "search_web", `{"query":"weather in Paris"}`))
	mock.AddResponse("I could not search right now.")

	rt := testRuntime(t, mock, &fakeBackend{err: errors.New("quota exceeded")})
	a, err := NewAssistant(rt, AssistantOptions{})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := a.Ask(context.Background(), "What's the weather in Paris?")
	if err != nil {
		t.Fatalf("search failure escaped: %v", err)
	}
	if reply != "I could not search right now." {
		t.Fatalf("reply = %q", reply)
	}
	results := toolMessages(mock.Calls()[1])
	if len(results) != 1 || !strings.HasPrefix(results[0], search.FailurePrefix) || !strings.Contains(results[0], "quota exceeded") {
		t.Fatalf("tool results = %q", results)
	}
}

func TestAssistantUsesSearchAndPrompt(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", "search_web", `{"query":"weather in Paris"}`))
	mock.AddResponse("Sunny, 24C.")

	rt := testRuntime(t, mock, &fakeBackend{})
	a, err := NewAssistant(rt, AssistantOptions{})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := a.Ask(context.Background(), "weather?")
	if err != nil || reply != "Sunny, 24C." {
		t.Fatalf("reply = %q, err = %v", reply, err)
	}
	req := mock.Calls()[0]
	if req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Content != AssistantPrompt {
		t.Fatalf("system = %+v", req.Messages[0])
	}
	if req.Temperature == nil || *req.Temperature != 0.5 {
		t.Fatalf("temperature = %v", req.Temperature)
	}
	results := toolMessages(mock.Calls()[1])
	if len(results) != 1 || !strings.Contains(results[0], "Answer: Sunny, 24C") {
		t.Fatalf("tool results = %q", results)
	}
}

func TestAssistantRequiresSearch(t *testing.T) {
	rt := testRuntime(t, llmtest.NewMockClient(), nil)
	if _, err := NewAssistant(rt, AssistantOptions{}); err == nil {
		t.Fatal("expected missing backend error")
	}
}

func TestAssistantStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := llmtest.NewMockClient()
	mock.AddResponse("Hello Ada.")
	mock.AddResponse("Your name is Ada.")

	rt := testRuntime(t, mock, &fakeBackend{})
	a, err := NewAssistant(rt, AssistantOptions{Memory: true, HistoryTokens: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Ask(ctx, "I am Ada."); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "agent_state.json")
	if err := a.SaveState(ctx, path); err != nil {
		t.Fatal(err)
	}

	before, err := a.Session.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := memory.LoadJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	keys := func(m map[string]interface{}) []string {
		var out []string
		for k := range m {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	if !reflect.DeepEqual(keys(before), keys(loaded)) {
		t.Fatalf("keys %v != %v", keys(loaded), keys(before))
	}
	if loaded["session_id"] != a.Session.ID {
		t.Fatalf("session_id = %v", loaded["session_id"])
	}

	// A fresh process restores the conversation and continues it.
	rt2 := testRuntime(t, mock, &fakeBackend{})
	b, err := NewAssistant(rt2, AssistantOptions{Memory: true})
	if err != nil {
		t.Fatal(err)
	}
	n, err := b.RestoreState(ctx, path)
	if err != nil || n != 2 {
		t.Fatalf("restored %d, err = %v", n, err)
	}
	if b.Session.ID != a.Session.ID {
		t.Fatalf("session id = %q", b.Session.ID)
	}
	if _, err := b.Ask(ctx, "What is my name?"); err != nil {
		t.Fatal(err)
	}
	second := mock.Calls()[1]
	var contents []string
	for _, m := range second.Messages[1:] {
		contents = append(contents, m.Role+":"+m.Content)
	}
	want := "user:I am Ada.|assistant:Hello Ada.|user:What is my name?"
	if strings.Join(contents, "|") != want {
		t.Fatalf("history = %q", strings.Join(contents, "|"))
	}

	// Restoring into a session that already has messages is a no-op.
	if n, err := b.RestoreState(ctx, path); err != nil || n != 0 {
		t.Fatalf("second restore = %d, %v", n, err)
	}
}

func TestAssistantSaveWithoutMemory(t *testing.T) {
	rt := testRuntime(t, llmtest.NewMockClient(), &fakeBackend{})
	a, err := NewAssistant(rt, AssistantOptions{})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "state.json")
	if err := a.SaveState(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != "{}" {
		t.Fatalf("state = %q", data)
	}
	if _, err := a.RestoreState(context.Background(), path); err == nil {
		t.Fatal("expected restore error without memory")
	}
}

func TestBlogCrewFromEmbeddedDefinitions(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", "search_web", `{"query":"sector revenue"}`))
	mock.AddResponse("Revenue grows 8% a year.")
	mock.AddResponse("# Outlook\nRevenue grows.")

	rt := testRuntime(t, mock, &fakeBackend{})
	var steps []string
	res, err := rt.RunPipeline(context.Background(), NameBlog, map[string]string{"topic": "AI chips"}, RunOptions{
		Steps: func(e workflow.Event) { steps = append(steps, e.Type+":"+e.Step) },
	})
	if err != nil {
		t.Fatalf("blog: %v", err)
	}
	if res.Output != "# Outlook\nRevenue grows." || len(res.Tasks) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Tasks[0].Description, "AI chips") {
		t.Fatalf("topic not interpolated: %q", res.Tasks[0].Description)
	}
	if res.Tasks[1].Context != "Revenue grows 8% a year." {
		t.Fatalf("writer context = %q", res.Tasks[1].Context)
	}
	if req := mock.Calls()[0]; req.Temperature == nil || *req.Temperature != 0 {
		t.Fatalf("temperature = %v", req.Temperature)
	}
	data, err := os.ReadFile(filepath.Join(rt.Config.OutputDir, "final_output.txt"))
	if err != nil || string(data) != res.Output {
		t.Fatalf("final_output.txt = %q, %v", data, err)
	}
	if len(steps) != 4 {
		t.Fatalf("steps = %v", steps)
	}
}

func TestSupportCrewFetchesData(t *testing.T) {
	mock := llmtest.NewMockClient()
	mock.AddToolCalls("", llmtest.Call("c1", tools.FunctionName(support.ToolName), `{"argument":"last quarter support data"}`))
	mock.AddResponse("Login issues dominate.")
	mock.AddResponse("Simplify password reset.")
	mock.AddResponse("Executive report.")

	rt := testRuntime(t, mock, nil)
	var fetched []string
	c, err := NewSupportCrew(rt, func(q string) { fetched = append(fetched, q) })
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Kickoff(context.Background(), map[string]string{"data_query": DefaultSupportQuery})
	if err != nil {
		t.Fatalf("kickoff: %v", err)
	}
	if out.Raw != "Executive report." || len(out.Tasks) != 3 {
		t.Fatalf("out = %+v", out)
	}
	if len(fetched) != 1 || fetched[0] != "last quarter support data" {
		t.Fatalf("fetched = %v", fetched)
	}
	results := toolMessages(mock.Calls()[1])
	if len(results) != 1 || results[0] != support.Summary {
		t.Fatalf("tool results = %q", results)
	}
	if _, err := os.Stat(filepath.Join(rt.Config.OutputDir, "customer_support_report.txt")); err != nil {
		t.Fatalf("report file: %v", err)
	}
}

func TestRunPipelineUnknown(t *testing.T) {
	rt := testRuntime(t, llmtest.NewMockClient(), &fakeBackend{})
	if _, err := rt.RunPipeline(context.Background(), "nope", nil, RunOptions{}); err == nil || !strings.Contains(err.Error(), `"nope"`) {
		t.Fatalf("err = %v", err)
	}
	if got := strings.Join(Runnable(), ","); got != "blog,research,support" {
		t.Fatalf("runnable = %s", got)
	}
}

func TestRegisterGraphs(t *testing.T) {
	rt := testRuntime(t, llmtest.NewMockClient(), &fakeBackend{})
	if err := RegisterGraphs(rt); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(rt.Workflows.List(), ","); got != "blog,research,support" {
		t.Fatalf("registered = %s", got)
	}
	// Registering twice keeps the existing diagrams.
	if err := RegisterGraphs(rt); err != nil {
		t.Fatalf("second register: %v", err)
	}
	m, err := rt.Workflows.Mermaid(NameResearch)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"ResearchAgent", "WriteAgent", "ReviewAgent"} {
		if !strings.Contains(m, id) {
			t.Fatalf("diagram missing %s:\n%s", id, m)
		}
	}
}

func TestRegisterDiagramsNeedsNoRuntime(t *testing.T) {
	reg := workflow.NewRegistry()
	if err := RegisterDiagrams(reg); err != nil {
		t.Fatal(err)
	}
	m, err := reg.Mermaid(NameBlog)
	if err != nil {
		t.Fatal(err)
	}
	want := "graph TD\n" +
		"t1([\"research_task (Research Specialist)\"])\n" +
		"t2[\"writing_task (Creative Writer)\"]\n"
	if !strings.HasPrefix(m, want) {
		t.Fatalf("blog diagram = %q", m)
	}
}
