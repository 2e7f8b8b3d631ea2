package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KamdynS/agentflows/llm"
	obs "github.com/KamdynS/agentflows/observability"
	"go.uber.org/zap"
)

// Registry manages a collection of tools available to agents
type Registry interface {
	// Register adds a tool to the registry
	Register(tool Tool) error

	// Get retrieves a tool by name
	Get(name string) (Tool, bool)

	// List returns all tool names, sorted
	List() []string

	// Execute runs a tool by name and returns its raw output or error
	Execute(ctx context.Context, name string, input string) (string, error)

	// Invoke runs a tool by name and returns a typed result; it never fails
	Invoke(ctx context.Context, name string, input string) Result
}

// DefaultRegistry is a simple in-memory tool registry
type DefaultRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	tel   obs.Telemetry
}

// NewRegistry creates a new DefaultRegistry
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{tools: make(map[string]Tool), tel: obs.Nop()}
}

// RegisterAll registers tools in order, stopping at the first error.
func (r *DefaultRegistry) RegisterAll(tools ...Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// WithTelemetry sets where tool spans, metrics and logs go.
func (r *DefaultRegistry) WithTelemetry(tel obs.Telemetry) *DefaultRegistry {
	r.mu.Lock()
	r.tel = tel.WithDefaults()
	r.mu.Unlock()
	return r
}

func (r *DefaultRegistry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get looks a tool up by name, or by the function name the model was
// given for it.
func (r *DefaultRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, exists := r.tools[name]; exists {
		return tool, true
	}
	for n, tool := range r.tools {
		if FunctionName(n) == name {
			return tool, true
		}
	}
	return nil, false
}

// FunctionName turns a display name such as "Customer Support Data
// Fetcher" into a function name providers accept: letters, digits,
// underscores, dots and dashes, at most 64 characters.
func FunctionName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the function declarations handed to the model.
func (r *DefaultRegistry) Definitions() []llm.Tool {
	return Definitions(r)
}

// Definitions renders every tool in reg as an llm.Tool, in List order.
func Definitions(reg Registry) []llm.Tool {
	var defs []llm.Tool
	for _, name := range reg.List() {
		t, ok := reg.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        FunctionName(t.Name()),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return defs
}

func (r *DefaultRegistry) Execute(ctx context.Context, name string, input string) (string, error) {
	res := r.Invoke(ctx, name, input)
	if res.Err != nil {
		return "", res.Err
	}
	return res.Output, nil
}

// Invoke runs the named tool inside a tool.execute span. Failures are
// classified and rendered through the tool's FailureFormatter.
func (r *DefaultRegistry) Invoke(ctx context.Context, name string, input string) Result {
	r.mu.RLock()
	tel := r.tel
	r.mu.RUnlock()

	tool, exists := r.Get(name)
	if !exists {
		err := fmt.Errorf("%w: %s", ErrToolNotFound, name)
		tel.Metrics.RecordToolCall(name, string(ReasonNotFound))
		return Result{Tool: name, Err: &Error{
			Tool:     name,
			Reason:   ReasonNotFound,
			Cause:    err,
			Fallback: fmt.Sprintf("Error: unknown tool %q", name),
		}}
	}

	span, ctx := tel.StartSpan(ctx, "tool.execute", obs.SpanKindTool)
	span.SetAttribute(obs.AttrToolName, name)
	span.SetAttribute(obs.AttrInputValue, input)
	start := time.Now()

	output, err := tool.Execute(ctx, input)
	labels := map[string]string{"tool_name": name}
	tel.Metrics.RecordLatency(time.Since(start), labels)

	if err != nil {
		terr := NewError(tool, name, err)
		span.SetAttribute(obs.AttrToolFailure, string(terr.Reason))
		span.SetAttribute(obs.AttrOutputValue, terr.Fallback)
		tel.Metrics.RecordToolCall(name, string(terr.Reason))
		tel.Logger.Warn("tool failed",
			zap.String("tool", name),
			zap.String("reason", string(terr.Reason)),
			zap.Error(err))
		obs.EndSpan(span, err)
		return Result{Tool: name, Err: terr}
	}

	span.SetAttribute(obs.AttrOutputValue, output)
	tel.Metrics.RecordToolCall(name, "")
	obs.EndSpan(span, nil)
	return Result{Tool: name, Output: output}
}

var _ Registry = (*DefaultRegistry)(nil)
