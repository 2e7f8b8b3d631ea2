package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/KamdynS/agentflows/agent/core"
	"github.com/KamdynS/agentflows/workflow"
)

var rule = strings.Repeat("=", 50)

// EventPrinter renders agent events as they arrive. The agent banner is
// printed only when control moves to a different agent.
type EventPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	current string
	// Stream prints streamed text deltas as they arrive.
	Stream bool
}

func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{w: w}
}

// Sink returns p as an event sink.
func (p *EventPrinter) Sink() core.EventSink { return p.Handle }

// Handle prints one event.
func (p *EventPrinter) Handle(e core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev := e.(type) {
	case core.AgentInput:
		if ev.Agent == p.current {
			return
		}
		p.current = ev.Agent
		fmt.Fprintf(p.w, "\n%s\n🤖 Agent: %s\n%s\n\n", rule, ev.Agent, rule)
	case core.AgentOutput:
		if ev.Content != "" {
			fmt.Fprintln(p.w, "📤 Output:", ev.Content)
		}
		if len(ev.ToolCalls) > 0 {
			names := make([]string, len(ev.ToolCalls))
			for i, c := range ev.ToolCalls {
				names[i] = "'" + c.Name + "'"
			}
			fmt.Fprintf(p.w, "🛠️  Planning to use tools: [%s]\n", strings.Join(names, ", "))
		}
	case core.AgentStream:
		if p.Stream {
			fmt.Fprint(p.w, ev.Delta)
		}
	case core.ToolCall:
		fmt.Fprintf(p.w, "🔨 Calling Tool: %s\n  With arguments: %s\n", ev.Name, ev.Arguments)
	case core.ToolCallResult:
		fmt.Fprintf(p.w, "🔧 Tool Result (%s):\n  Arguments: %s\n  Output: %s\n", ev.Name, ev.Arguments, ev.Output)
	case core.Handoff:
		fmt.Fprintf(p.w, "🔀 Handoff: %s -> %s (%s)\n", ev.From, ev.To, ev.Reason)
	}
}

// Step prints crew task progress.
func (p *EventPrinter) Step(e workflow.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Type {
	case workflow.EventStartStep:
		fmt.Fprintf(p.w, "\n📋 Task started: %s\n", e.Step)
	case workflow.EventEndStep:
		fmt.Fprintf(p.w, "✅ Task finished: %s\n", e.Step)
	case workflow.EventError:
		fmt.Fprintf(p.w, "❌ Task failed: %s: %s\n", e.Step, e.Error)
	}
}
