package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
)

// Tracer defines the interface for distributed tracing
type Tracer interface {
	// StartSpan creates a new span with the given name
	StartSpan(ctx context.Context, name string) (Span, context.Context)

	// SpanFromContext extracts the span from context
	SpanFromContext(ctx context.Context) Span
}

// Span represents a tracing span
type Span interface {
	SetAttribute(key string, value interface{})
	SetStatus(code StatusCode, message string)
	AddEvent(name string, attributes map[string]interface{})
	End()
	Context() context.Context
}

// StatusCode represents span status codes
type StatusCode int

const (
	StatusCodeUnset StatusCode = iota
	StatusCodeOk
	StatusCodeError
)

// SpanKind is the OpenInference span kind understood by Phoenix.
type SpanKind string

const (
	SpanKindAgent SpanKind = "AGENT"
	SpanKindLLM   SpanKind = "LLM"
	SpanKindTool  SpanKind = "TOOL"
	SpanKindChain SpanKind = "CHAIN"
)

// Attribute keys follow the OpenInference semantic conventions so that spans
// render natively in Phoenix.
const (
	AttrSpanKind     = "openinference.span.kind"
	AttrInputValue   = "input.value"
	AttrOutputValue  = "output.value"
	AttrSessionID    = "session.id"
	AttrAgentName    = "agent.name"
	AttrProvider     = "llm.provider"
	AttrModel        = "llm.model_name"
	AttrFinishReason = "llm.finish_reason"
	AttrTokensInput  = "llm.token_count.prompt"
	AttrTokensOutput = "llm.token_count.completion"
	AttrToolName     = "tool.name"
	AttrToolFailure  = "tool.failure_reason"
	AttrHTTPMethod   = "http.method"
	AttrHTTPRoute    = "http.route"
	AttrHTTPStatus   = "http.status_code"
	AttrRequestID    = "request.id"
)

// NoOpTracer is a no-operation implementation of Tracer
type NoOpTracer struct{}

func (t *NoOpTracer) StartSpan(ctx context.Context, name string) (Span, context.Context) {
	return &NoOpSpan{ctx: ctx}, ctx
}

func (t *NoOpTracer) SpanFromContext(ctx context.Context) Span {
	return &NoOpSpan{ctx: ctx}
}

// NoOpSpan is a no-operation implementation of Span
type NoOpSpan struct{ ctx context.Context }

func (s *NoOpSpan) SetAttribute(key string, value interface{})              {}
func (s *NoOpSpan) SetStatus(code StatusCode, message string)               {}
func (s *NoOpSpan) AddEvent(name string, attributes map[string]interface{}) {}
func (s *NoOpSpan) End()                                                    {}

func (s *NoOpSpan) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// MemoryTracer records finished spans in memory. Used in tests and by the
// debug endpoints of the HTTP server.
type MemoryTracer struct {
	mu    sync.Mutex
	spans []SpanData
}

// SpanData holds information about a completed span
type SpanData struct {
	Name       string                 `json:"name"`
	Parent     string                 `json:"parent,omitempty"`
	StartTime  time.Time              `json:"start_time"`
	EndTime    time.Time              `json:"end_time"`
	Duration   time.Duration          `json:"duration"`
	Status     StatusCode             `json:"status"`
	Message    string                 `json:"message"`
	Attributes map[string]interface{} `json:"attributes"`
	Events     []Event                `json:"events"`
}

// Event represents a span event
type Event struct {
	Name       string                 `json:"name"`
	Time       time.Time              `json:"time"`
	Attributes map[string]interface{} `json:"attributes"`
}

type spanKey struct{}

func NewMemoryTracer() *MemoryTracer { return &MemoryTracer{} }

func (t *MemoryTracer) StartSpan(ctx context.Context, name string) (Span, context.Context) {
	span := &memorySpan{
		tracer:     t,
		name:       name,
		startTime:  time.Now(),
		attributes: make(map[string]interface{}),
	}
	if parent, ok := ctx.Value(spanKey{}).(*memorySpan); ok {
		span.parent = parent.name
	}
	ctx = context.WithValue(ctx, spanKey{}, span)
	span.ctx = ctx
	return span, ctx
}

func (t *MemoryTracer) SpanFromContext(ctx context.Context) Span {
	if span, ok := ctx.Value(spanKey{}).(*memorySpan); ok {
		return span
	}
	return &NoOpSpan{ctx: ctx}
}

// Spans returns a copy of all finished spans in end order.
func (t *MemoryTracer) Spans() []SpanData {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SpanData, len(t.spans))
	copy(out, t.spans)
	return out
}

// Find returns finished spans with the given name.
func (t *MemoryTracer) Find(name string) []SpanData {
	var out []SpanData
	for _, s := range t.Spans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type memorySpan struct {
	tracer     *MemoryTracer
	ctx        context.Context
	name       string
	parent     string
	startTime  time.Time
	status     StatusCode
	message    string
	attributes map[string]interface{}
	events     []Event

	mu    sync.Mutex
	ended bool
}

func (s *memorySpan) SetAttribute(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.attributes[key] = value
	}
}

func (s *memorySpan) SetStatus(code StatusCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.status = code
		s.message = message
	}
}

func (s *memorySpan) AddEvent(name string, attributes map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ended {
		s.events = append(s.events, Event{Name: name, Time: time.Now(), Attributes: attributes})
	}
}

func (s *memorySpan) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	end := time.Now()
	data := SpanData{
		Name:       s.name,
		Parent:     s.parent,
		StartTime:  s.startTime,
		EndTime:    end,
		Duration:   end.Sub(s.startTime),
		Status:     s.status,
		Message:    s.message,
		Attributes: s.attributes,
		Events:     s.events,
	}
	s.mu.Unlock()

	s.tracer.mu.Lock()
	s.tracer.spans = append(s.tracer.spans, data)
	s.tracer.mu.Unlock()
}

func (s *memorySpan) Context() context.Context { return s.ctx }

var (
	_ Tracer = (*NoOpTracer)(nil)
	_ Tracer = (*MemoryTracer)(nil)
	_ Span   = (*NoOpSpan)(nil)
	_ Span   = (*memorySpan)(nil)
)

// ----- request id propagation -----

const headerRequestID = "X-Request-ID"

type requestIDKey struct{}

// GenerateRequestID returns a sortable, globally unique id.
func GenerateRequestID() string { return xid.New().String() }

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// ExtractHTTPContext reads the request id header into ctx, minting one when absent.
func ExtractHTTPContext(ctx context.Context, r *http.Request) context.Context {
	id := r.Header.Get(headerRequestID)
	if id == "" {
		id = GenerateRequestID()
	}
	return WithRequestID(ctx, id)
}

// InjectHTTPHeaders echoes the request id back on the response.
func InjectHTTPHeaders(w http.ResponseWriter, ctx context.Context) {
	if id, ok := RequestIDFromContext(ctx); ok {
		w.Header().Set(headerRequestID, id)
	}
}
