package core

import "github.com/KamdynS/agentflows/tools"

// EventKind names an Event type.
type EventKind string

const (
	KindAgentInput     EventKind = "agent_input"
	KindAgentOutput    EventKind = "agent_output"
	KindAgentStream    EventKind = "agent_stream"
	KindToolCall       EventKind = "tool_call"
	KindToolCallResult EventKind = "tool_call_result"
	KindHandoff        EventKind = "handoff"
)

// Event is emitted while an agent runs. Events are for display only.
type Event interface {
	Kind() EventKind
	AgentName() string
}

// EventSink receives events in order on the running goroutine. It must not
// block for long.
type EventSink func(Event)

func (s EventSink) emit(e Event) {
	if s != nil {
		s(e)
	}
}

// AgentInput is emitted when an agent takes control of a turn.
type AgentInput struct {
	Agent string `json:"agent"`
	Input string `json:"input"`
}

// AgentOutput is one model reply, possibly requesting tools.
type AgentOutput struct {
	Agent     string     `json:"agent"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// AgentStream carries a streamed text delta.
type AgentStream struct {
	Agent string `json:"agent"`
	Delta string `json:"delta"`
}

// ToolCall represents a requested tool execution parsed from an LLM response
type ToolCall struct {
	Agent     string `json:"agent"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string per llm.Function.Arguments
}

// ToolCallResult is emitted after a tool ran. Failure is empty on success.
type ToolCallResult struct {
	Agent     string       `json:"agent"`
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Arguments string       `json:"arguments"`
	Output    string       `json:"output"`
	Failure   tools.Reason `json:"failure,omitempty"`
}

// Handoff is emitted when control moves to another agent.
type Handoff struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

func (AgentInput) Kind() EventKind     { return KindAgentInput }
func (AgentOutput) Kind() EventKind    { return KindAgentOutput }
func (AgentStream) Kind() EventKind    { return KindAgentStream }
func (ToolCall) Kind() EventKind       { return KindToolCall }
func (ToolCallResult) Kind() EventKind { return KindToolCallResult }
func (Handoff) Kind() EventKind        { return KindHandoff }

func (e AgentInput) AgentName() string     { return e.Agent }
func (e AgentOutput) AgentName() string    { return e.Agent }
func (e AgentStream) AgentName() string    { return e.Agent }
func (e ToolCall) AgentName() string       { return e.Agent }
func (e ToolCallResult) AgentName() string { return e.Agent }
func (e Handoff) AgentName() string        { return e.From }
