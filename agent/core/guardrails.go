package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/llm"
)

var (
	ErrInputBlocked = errors.New("request blocked by guardrails")
	ErrNotPermitted = errors.New("request not permitted by guardrails")
	ErrToolBlocked  = errors.New("tool blocked by guardrails")
)

// SimpleGuardrails provides minimal input filtering and allow/deny checks on
// the user turn and on tool use.
type SimpleGuardrails struct {
	// Deny if any of these substrings appear in the user input
	DenySubstrings []string
	// Allow only if at least one of these substrings appears; if empty, allow all
	AllowSubstrings []string
	// Max input length; longer input is cut
	MaxInputChars int
	// DenyTools lists tools the model may not call
	DenyTools []string
}

func (g *SimpleGuardrails) BeforeLLMCall(ctx context.Context, req *llm.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return nil
	}
	last := &req.Messages[len(req.Messages)-1]
	if last.Role != llm.RoleUser {
		return nil
	}
	if g.MaxInputChars > 0 && len(last.Content) > g.MaxInputChars {
		last.Content = last.Content[:g.MaxInputChars]
	}
	lower := strings.ToLower(last.Content)
	for _, s := range g.DenySubstrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return ErrInputBlocked
		}
	}
	if len(g.AllowSubstrings) == 0 {
		return nil
	}
	for _, s := range g.AllowSubstrings {
		if s != "" && strings.Contains(lower, strings.ToLower(s)) {
			return nil
		}
	}
	return ErrNotPermitted
}

func (g *SimpleGuardrails) AfterLLMResponse(ctx context.Context, resp *llm.Response) error {
	return nil
}

func (g *SimpleGuardrails) BeforeToolExecute(ctx context.Context, toolName string, input string) error {
	for _, t := range g.DenyTools {
		if t == toolName {
			return fmt.Errorf("%w: %s", ErrToolBlocked, toolName)
		}
	}
	return nil
}

func (g *SimpleGuardrails) AfterToolExecute(ctx context.Context, toolName string, result string, execErr error) error {
	return nil
}

func (g *SimpleGuardrails) AfterRun(ctx context.Context, final Message) error { return nil }

var _ Middleware = (*SimpleGuardrails)(nil)
