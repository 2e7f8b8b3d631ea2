package otel

import (
	"context"
	"testing"

	"github.com/KamdynS/agentflows/observability"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracerMapsStatusAndAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := NewTracer(tp, "test")

	span, ctx := tr.StartSpan(context.Background(), "llm.chat")
	span.SetAttribute(observability.AttrTokensInput, 12)
	span.SetAttribute(observability.AttrModel, "gemini-2.5-flash")
	span.SetStatus(observability.StatusCodeError, "boom")
	if tr.SpanFromContext(ctx).Context() != ctx {
		t.Fatalf("span from context lost ctx")
	}
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	got := ended[0]
	if got.Status().Code != codes.Error || got.Status().Description != "boom" {
		t.Fatalf("status = %+v", got.Status())
	}
	var sawTokens bool
	for _, kv := range got.Attributes() {
		if string(kv.Key) == observability.AttrTokensInput && kv.Value.AsInt64() == 12 {
			sawTokens = true
		}
	}
	if !sawTokens {
		t.Fatalf("int attribute not recorded: %+v", got.Attributes())
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders("api_key=abc, x-extra = 1")
	if err != nil {
		t.Fatalf("ParseHeaders: %v", err)
	}
	if h["api_key"] != "abc" || h["x-extra"] != "1" {
		t.Fatalf("headers = %+v", h)
	}
	if _, err := ParseHeaders("novalue"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRegisterPhoenixRequiresEndpoint(t *testing.T) {
	if _, err := RegisterPhoenix(context.Background(), PhoenixConfig{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
