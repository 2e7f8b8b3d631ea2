package prom

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KamdynS/agentflows/observability"
)

// Exporter implements observability.Metrics and serves the Prometheus text
// format without the client library. Series are keyed by their rendered label set.
type Exporter struct {
	mu        sync.Mutex
	requests  map[string]float64
	latency   map[string]float64
	tokens    map[string]float64
	errors    map[string]float64
	toolCalls map[string]float64
	active    float64
}

func New() *Exporter {
	return &Exporter{
		requests:  make(map[string]float64),
		latency:   make(map[string]float64),
		tokens:    make(map[string]float64),
		errors:    make(map[string]float64),
		toolCalls: make(map[string]float64),
	}
}

// Handler returns an HTTP handler for a /metrics endpoint.
func Handler(e *Exporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = e.WriteTo(w)
	})
}

// WriteTo renders all series in a stable order.
func (e *Exporter) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	e.mu.Lock()
	writeFamily(&buf, "agentflows_requests_total", "counter", e.requests)
	writeFamily(&buf, "agentflows_request_latency_seconds_sum", "counter", e.latency)
	writeFamily(&buf, "agentflows_tokens_total", "counter", e.tokens)
	writeFamily(&buf, "agentflows_errors_total", "counter", e.errors)
	writeFamily(&buf, "agentflows_tool_calls_total", "counter", e.toolCalls)
	fmt.Fprintf(&buf, "# TYPE agentflows_active_agents gauge\nagentflows_active_agents %s\n", formatFloat(e.active))
	e.mu.Unlock()
	return buf.WriteTo(w)
}

var _ io.WriterTo = (*Exporter)(nil)

func writeFamily(w io.Writer, name, typ string, series map[string]float64) {
	if len(series) == 0 {
		return
	}
	fmt.Fprintf(w, "# TYPE %s %s\n", name, typ)
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s %s\n", name, k, formatFloat(series[k]))
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (e *Exporter) IncrementRequests(labels map[string]string) {
	e.add(e.requests, labels, 1)
}

func (e *Exporter) RecordLatency(d time.Duration, labels map[string]string) {
	e.add(e.latency, labels, d.Seconds())
}

func (e *Exporter) IncrementTokensUsed(tokens int, labels map[string]string) {
	e.add(e.tokens, labels, float64(tokens))
}

func (e *Exporter) RecordError(errorType string, labels map[string]string) {
	l := map[string]string{"type": errorType}
	for k, v := range labels {
		l[k] = v
	}
	e.add(e.errors, l, 1)
}

func (e *Exporter) RecordToolCall(tool string, failure string) {
	if failure == "" {
		failure = "none"
	}
	e.add(e.toolCalls, map[string]string{"tool": tool, "failure": failure}, 1)
}

func (e *Exporter) SetActiveAgents(count int) {
	e.mu.Lock()
	e.active = float64(count)
	e.mu.Unlock()
}

func (e *Exporter) add(series map[string]float64, labels map[string]string, v float64) {
	key := labelKey(labels)
	e.mu.Lock()
	series[key] += v
	e.mu.Unlock()
}

// labelKey renders labels as `{a="1",b="2"}` with sorted names.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+"="+strconv.Quote(labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var _ observability.Metrics = (*Exporter)(nil)
