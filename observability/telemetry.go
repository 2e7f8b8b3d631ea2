package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Telemetry bundles the tracer, metrics sink and logger a component reports to.
// It is passed explicitly; there is no process-wide instance.
type Telemetry struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  *zap.Logger
}

// Nop returns telemetry that discards everything.
func Nop() Telemetry {
	return Telemetry{Tracer: &NoOpTracer{}, Metrics: &NoOpMetrics{}, Logger: zap.NewNop()}
}

// WithDefaults fills unset fields with no-op implementations.
func (t Telemetry) WithDefaults() Telemetry {
	if t.Tracer == nil {
		t.Tracer = &NoOpTracer{}
	}
	if t.Metrics == nil {
		t.Metrics = &NoOpMetrics{}
	}
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	return t
}

// StartSpan opens a span tagged with the OpenInference span kind.
func (t Telemetry) StartSpan(ctx context.Context, name string, kind SpanKind) (Span, context.Context) {
	span, ctx := t.Tracer.StartSpan(ctx, name)
	span.SetAttribute(AttrSpanKind, string(kind))
	return span, ctx
}

// EndSpan records err on span (if any) and ends it.
func EndSpan(span Span, err error) {
	if err != nil {
		span.SetStatus(StatusCodeError, err.Error())
	} else {
		span.SetStatus(StatusCodeOk, "")
	}
	span.End()
}

// NewLogger builds a zap logger. level is one of debug, info, warn, error;
// development switches to the human readable console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if strings.TrimSpace(level) != "" {
		lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}
