package tools

import (
	"context"
	"errors"

	"github.com/KamdynS/agentflows/memory"
)

// StateTool is a tool that reads or writes the shared workflow state of the
// run it is called from.
type StateTool interface {
	Tool
	ExecuteState(ctx context.Context, st *memory.State, input string) (string, error)
}

// WithState binds t to st. Calls through the plain Execute of an unbound
// StateTool fail with ErrNoState.
func WithState(t Tool, st *memory.State) Tool {
	stt, ok := t.(StateTool)
	if !ok || st == nil {
		return t
	}
	return &boundStateTool{StateTool: stt, st: st}
}

// ErrNoState is returned by a StateTool executed outside a workflow run.
var ErrNoState = errors.New("tool requires workflow state")

type boundStateTool struct {
	StateTool
	st *memory.State
}

func (b *boundStateTool) Execute(ctx context.Context, input string) (string, error) {
	return b.ExecuteState(ctx, b.st, input)
}

// FormatFailure keeps the wrapped tool's failure marker.
func (b *boundStateTool) FormatFailure(err error) string {
	if f, ok := b.StateTool.(FailureFormatter); ok {
		return f.FormatFailure(err)
	}
	return "Error: " + b.Name() + " failed: " + err.Error()
}

// StateFunc adapts a function to StateTool.
type StateFunc struct {
	ToolName string
	Desc     string
	Params   map[string]interface{}
	Fn       func(ctx context.Context, st *memory.State, input string) (string, error)
}

func (f *StateFunc) Name() string        { return f.ToolName }
func (f *StateFunc) Description() string { return f.Desc }

func (f *StateFunc) Schema() map[string]interface{} {
	if f.Params == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return f.Params
}

func (f *StateFunc) Execute(ctx context.Context, input string) (string, error) {
	return "", ErrNoState
}

func (f *StateFunc) ExecuteState(ctx context.Context, st *memory.State, input string) (string, error) {
	if st == nil {
		return "", ErrNoState
	}
	return f.Fn(ctx, st, input)
}

// BindState returns a registry holding every tool of reg, with state tools
// bound to st. Telemetry carries over.
func BindState(reg *DefaultRegistry, st *memory.State) *DefaultRegistry {
	out := NewRegistry()
	reg.mu.RLock()
	out.tel = reg.tel
	for name, t := range reg.tools {
		out.tools[name] = WithState(t, st)
	}
	reg.mu.RUnlock()
	return out
}

var _ StateTool = (*StateFunc)(nil)
