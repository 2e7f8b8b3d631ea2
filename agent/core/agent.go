// Package core holds the single-agent run loop shared by every orchestrator:
// the function agent, its events, middleware and history processors.
package core

import (
	"context"
	"errors"
)

// Message represents a conversation message with role and content
type Message struct {
	Role    string            `json:"role"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Meta keys set on agent replies.
const (
	MetaAgent        = "agent"
	MetaReturnDirect = "return_direct"
	MetaPartial      = "partial"
)

// Agent defines the core interface for AI agents
type Agent interface {
	// Run executes one reasoning-action loop with the given input and returns output
	Run(ctx context.Context, input Message) (Message, error)

	// RunStream executes the agent loop and streams responses via the provided
	// channel. The last message is the complete reply.
	RunStream(ctx context.Context, input Message, output chan<- Message) error
}

// AgentConfig holds configuration for creating agents
type AgentConfig struct {
	Name          string   `yaml:"name" json:"name"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	SystemPrompt  string   `yaml:"system_prompt" json:"system_prompt"`
	MaxIterations int      `yaml:"max_iterations" json:"max_iterations,omitempty"`
	Timeout       string   `yaml:"timeout" json:"timeout,omitempty"`
	CanHandoffTo  []string `yaml:"can_handoff_to" json:"can_handoff_to,omitempty"`
}

// DefaultMaxIterations bounds the model/tool round trips of one run.
const DefaultMaxIterations = 10

// ErrMaxIterations is returned when the model still asks for tools after
// MaxIterations round trips.
var ErrMaxIterations = errors.New("agent exceeded max iterations")
