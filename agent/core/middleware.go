package core

import (
	"context"

	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/memory"
)

// Middleware observes or vetoes steps of a run. A non-nil error aborts the run.
type Middleware interface {
	BeforeLLMCall(ctx context.Context, req *llm.ChatRequest) error
	AfterLLMResponse(ctx context.Context, resp *llm.Response) error
	BeforeToolExecute(ctx context.Context, toolName string, input string) error
	AfterToolExecute(ctx context.Context, toolName string, result string, execErr error) error
	AfterRun(ctx context.Context, final Message) error
}

// Processor rewrites the stored history before it is sent to the model.
type Processor interface {
	Process(ctx context.Context, msgs []Message) []Message
}

// TokenLimiter keeps the newest messages whose contents fit in MaxChars.
type TokenLimiter struct {
	MaxChars int
}

func (p TokenLimiter) Process(ctx context.Context, msgs []Message) []Message {
	if p.MaxChars <= 0 {
		return msgs
	}
	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		if total+len(msgs[i].Content) > p.MaxChars {
			break
		}
		total += len(msgs[i].Content)
		start = i
	}
	return msgs[start:]
}

// ToolCallFilter drops tool-role messages.
type ToolCallFilter struct{}

func (ToolCallFilter) Process(ctx context.Context, msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != llm.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

// WindowLimiter trims history to a token budget with a memory.Window.
type WindowLimiter struct {
	Window *memory.Window
}

func (p WindowLimiter) Process(ctx context.Context, msgs []Message) []Message {
	if p.Window == nil || len(msgs) == 0 {
		return msgs
	}
	mm := make([]memory.Message, len(msgs))
	for i, m := range msgs {
		mm[i] = memory.Message{Role: m.Role, Content: m.Content}
	}
	kept := p.Window.Trim(mm)
	return msgs[len(msgs)-len(kept):]
}
