package observability

import (
	"sync"
	"time"
)

// Metrics defines the interface for collecting agent metrics
type Metrics interface {
	// IncrementRequests increments the request counter
	IncrementRequests(labels map[string]string)

	// RecordLatency records request latency
	RecordLatency(duration time.Duration, labels map[string]string)

	// IncrementTokensUsed increments token usage counter
	IncrementTokensUsed(tokens int, labels map[string]string)

	// RecordError increments error counter
	RecordError(errorType string, labels map[string]string)

	// RecordToolCall counts a tool invocation; failure is empty on success.
	RecordToolCall(tool string, failure string)

	// SetActiveAgents sets the gauge for in-flight agent runs
	SetActiveAgents(count int)
}

// NoOpMetrics is a no-operation implementation of Metrics
type NoOpMetrics struct{}

func (n *NoOpMetrics) IncrementRequests(labels map[string]string)                     {}
func (n *NoOpMetrics) RecordLatency(duration time.Duration, labels map[string]string) {}
func (n *NoOpMetrics) IncrementTokensUsed(tokens int, labels map[string]string)       {}
func (n *NoOpMetrics) RecordError(errorType string, labels map[string]string)         {}
func (n *NoOpMetrics) RecordToolCall(tool string, failure string)                     {}
func (n *NoOpMetrics) SetActiveAgents(count int)                                      {}

// MemoryMetrics is a simple in-memory metrics collector
type MemoryMetrics struct {
	mu           sync.Mutex
	requests     int64
	totalLatency time.Duration
	tokensUsed   int64
	errors       map[string]int64
	toolCalls    map[string]int64
	toolFailures map[string]int64
	activeAgents int
}

func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{
		errors:       make(map[string]int64),
		toolCalls:    make(map[string]int64),
		toolFailures: make(map[string]int64),
	}
}

func (m *MemoryMetrics) IncrementRequests(labels map[string]string) {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
}

func (m *MemoryMetrics) RecordLatency(duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	m.totalLatency += duration
	m.mu.Unlock()
}

func (m *MemoryMetrics) IncrementTokensUsed(tokens int, labels map[string]string) {
	m.mu.Lock()
	m.tokensUsed += int64(tokens)
	m.mu.Unlock()
}

func (m *MemoryMetrics) RecordError(errorType string, labels map[string]string) {
	m.mu.Lock()
	m.errors[errorType]++
	m.mu.Unlock()
}

func (m *MemoryMetrics) RecordToolCall(tool string, failure string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls[tool]++
	if failure != "" {
		m.toolFailures[tool+"|"+failure]++
	}
}

func (m *MemoryMetrics) SetActiveAgents(count int) {
	m.mu.Lock()
	m.activeAgents = count
	m.mu.Unlock()
}

// Stats is a point-in-time copy of MemoryMetrics.
type Stats struct {
	Requests     int64            `json:"requests"`
	TotalLatency time.Duration    `json:"total_latency"`
	TokensUsed   int64            `json:"tokens_used"`
	Errors       map[string]int64 `json:"errors"`
	ToolCalls    map[string]int64 `json:"tool_calls"`
	ToolFailures map[string]int64 `json:"tool_failures"`
	ActiveAgents int              `json:"active_agents"`
}

func (m *MemoryMetrics) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Requests:     m.requests,
		TotalLatency: m.totalLatency,
		TokensUsed:   m.tokensUsed,
		Errors:       copyCounts(m.errors),
		ToolCalls:    copyCounts(m.toolCalls),
		ToolFailures: copyCounts(m.toolFailures),
		ActiveAgents: m.activeAgents,
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var (
	_ Metrics = (*NoOpMetrics)(nil)
	_ Metrics = (*MemoryMetrics)(nil)
)
