package observability

import (
	"testing"
	"time"
)

func TestNoOpMetrics(t *testing.T) {
	var m Metrics = &NoOpMetrics{}
	m.IncrementRequests(nil)
	m.RecordLatency(time.Millisecond, nil)
	m.IncrementTokensUsed(10, nil)
	m.RecordError("x", nil)
	m.RecordToolCall("search_web", "")
	m.SetActiveAgents(1)
}

func TestMemoryMetrics(t *testing.T) {
	m := NewMemoryMetrics()
	m.IncrementRequests(map[string]string{"route": "/x"})
	m.RecordLatency(2*time.Millisecond, nil)
	m.IncrementTokensUsed(5, nil)
	m.RecordError("boom", nil)
	m.RecordToolCall("search_web", "")
	m.RecordToolCall("search_web", "transient")
	m.SetActiveAgents(3)

	s := m.Stats()
	if s.Requests != 1 || s.TokensUsed != 5 || s.ActiveAgents != 3 {
		t.Fatalf("stats wrong: %+v", s)
	}
	if s.ToolCalls["search_web"] != 2 || s.ToolFailures["search_web|transient"] != 1 {
		t.Fatalf("tool stats wrong: %+v", s)
	}
}
