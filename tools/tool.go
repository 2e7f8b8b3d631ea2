package tools

import (
	"context"
)

// Tool defines the interface for agent tools
type Tool interface {
	// Name returns the tool's name for identification
	Name() string

	// Description is shown to the model when it picks a tool
	Description() string

	// Execute runs the tool with the raw argument string the model produced
	Execute(ctx context.Context, input string) (string, error)

	// Schema returns the JSON schema for the tool's input
	Schema() map[string]interface{}
}

// FailureFormatter is implemented by tools that render their own failure
// text for the model, e.g. "Search failed: ...".
type FailureFormatter interface {
	FormatFailure(err error) string
}

// Func adapts a function to Tool.
type Func struct {
	ToolName string
	Desc     string
	Params   map[string]interface{}
	Fn       func(ctx context.Context, input string) (string, error)
}

// NewFunc returns a Func taking a single string argument named param.
func NewFunc(name, desc, param, paramDesc string, fn func(ctx context.Context, input string) (string, error)) *Func {
	return &Func{ToolName: name, Desc: desc, Params: StringSchema(param, paramDesc), Fn: fn}
}

func (f *Func) Name() string        { return f.ToolName }
func (f *Func) Description() string { return f.Desc }

func (f *Func) Schema() map[string]interface{} {
	if f.Params == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return f.Params
}

func (f *Func) Execute(ctx context.Context, input string) (string, error) {
	return f.Fn(ctx, input)
}

// StringSchema is the JSON schema of an object with one required string property.
func StringSchema(name, description string) map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			name: map[string]interface{}{"type": "string", "description": description},
		},
		"required": []string{name},
	}
}

var _ Tool = (*Func)(nil)
