package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/workflow"
)

type echoAgent struct {
	inputs []string
	fail   map[string]bool
}

func (a *echoAgent) Run(ctx context.Context, in core.Message) (core.Message, error) {
	a.inputs = append(a.inputs, in.Content)
	if a.fail[in.Content] {
		return core.Message{}, errors.New("model unavailable")
	}
	return core.Message{Role: "assistant", Content: "echo " + in.Content}, nil
}

func (a *echoAgent) RunStream(ctx context.Context, in core.Message, out chan<- core.Message) error {
	defer close(out)
	m, err := a.Run(ctx, in)
	if err == nil {
		out <- m
	}
	return err
}

func TestIsExitToken(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"quit", true},
		{"EXIT", true},
		{"  Bye \n", true},
		{"goodbye", false},
		{"quit now", false},
		{"", false},
	} {
		if got := IsExitToken(tc.in); got != tc.want {
			t.Errorf("IsExitToken(%q) = %v", tc.in, got)
		}
	}
}

func TestREPLExitDoesNotCallAgent(t *testing.T) {
	for _, tok := range []string{"quit", "Exit", "BYE"} {
		agent := &echoAgent{}
		var out bytes.Buffer
		r := &REPL{Agent: agent}
		if err := r.Run(context.Background(), strings.NewReader(tok+"\nhello\n"), &out); err != nil {
			t.Fatal(err)
		}
		if len(agent.inputs) != 0 {
			t.Fatalf("%s: agent called with %v", tok, agent.inputs)
		}
		if out.String() != "user: Goodbye!\n" {
			t.Fatalf("%s: out = %q", tok, out.String())
		}
	}
}

func TestREPLOneReplyPerInput(t *testing.T) {
	agent := &echoAgent{fail: map[string]bool{"boom": true}}
	var out bytes.Buffer
	r := &REPL{Agent: agent, Prompt: "> "}
	in := "hello\n  spaced  \n\nboom\nlast\n"
	if err := r.Run(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatal(err)
	}

	if strings.Join(agent.inputs, "|") != "hello|spaced|boom|last" {
		t.Fatalf("inputs = %q", agent.inputs)
	}
	var agentLines, errorLines int
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimLeft(line, "> ")
		switch {
		case strings.HasPrefix(line, "Agent: "):
			agentLines++
		case strings.HasPrefix(line, "Error: "):
			errorLines++
		}
	}
	if agentLines != 3 || errorLines != 1 {
		t.Fatalf("agent lines = %d, error lines = %d\n%s", agentLines, errorLines, out.String())
	}
	if !strings.Contains(out.String(), "Agent: echo spaced\n") || !strings.Contains(out.String(), "Error: model unavailable\n") {
		t.Fatalf("out = %q", out.String())
	}
}

func TestREPLStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &REPL{Agent: &echoAgent{}}
	if err := r.Run(ctx, strings.NewReader("hi\n"), &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestEventPrinterBannerOnAgentChange(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf)
	sink := p.Sink()
	sink(core.AgentInput{Agent: "ResearchAgent", Input: "go"})
	sink(core.AgentOutput{Agent: "ResearchAgent", ToolCalls: []core.ToolCall{{Name: "search_web"}, {Name: "record_notes"}}})
	sink(core.ToolCall{Agent: "ResearchAgent", Name: "search_web", Arguments: `{"query":"web"}`})
	sink(core.ToolCallResult{Agent: "ResearchAgent", Name: "search_web", Arguments: `{"query":"web"}`, Output: "results"})
	sink(core.AgentInput{Agent: "ResearchAgent", Input: "again"})
	sink(core.AgentStream{Agent: "ResearchAgent", Delta: "hidden"})
	sink(core.AgentInput{Agent: "WriteAgent", Input: "write"})
	sink(core.AgentOutput{Agent: "WriteAgent", Content: "Done."})

	banner := func(name string) string {
		return "\n" + strings.Repeat("=", 50) + "\n🤖 Agent: " + name + "\n" + strings.Repeat("=", 50) + "\n\n"
	}
	want := banner("ResearchAgent") +
		"🛠️  Planning to use tools: ['search_web', 'record_notes']\n" +
		"🔨 Calling Tool: search_web\n  With arguments: {\"query\":\"web\"}\n" +
		"🔧 Tool Result (search_web):\n  Arguments: {\"query\":\"web\"}\n  Output: results\n" +
		banner("WriteAgent") +
		"📤 Output: Done.\n"
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestEventPrinterSteps(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf)
	p.Step(workflow.Event{Type: workflow.EventStartStep, Step: "research_task"})
	p.Step(workflow.Event{Type: workflow.EventEndStep, Step: "research_task"})
	p.Step(workflow.Event{Type: workflow.EventError, Step: "writing_task", Error: "boom"})
	want := "\n📋 Task started: research_task\n✅ Task finished: research_task\n❌ Task failed: writing_task: boom\n"
	if buf.String() != want {
		t.Fatalf("got %q", buf.String())
	}
}

func ExampleREPL() {
	r := &REPL{Agent: &echoAgent{}}
	_ = r.Run(context.Background(), strings.NewReader("hi\nbye\n"), os.Stdout)
	// Output:
	// user: Agent: echo hi
	// user: Goodbye!
}
