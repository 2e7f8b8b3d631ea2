package llm

import (
	"context"
	"testing"

	"github.com/KamdynS/agentflows/observability"
)

type failingClient struct{ fakeClient }

func (f *failingClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	return nil, NewLLMError(ProviderGemini, ErrorTypeRateLimit, "slow down")
}

func TestInstrumentedClientRecordsSpanAndTokens(t *testing.T) {
	tr := observability.NewMemoryTracer()
	m := observability.NewMemoryMetrics()
	c := NewInstrumentedClient(&fakeClient{}).WithTelemetry(observability.Telemetry{Tracer: tr, Metrics: m})

	if _, err := c.Chat(context.Background(), &ChatRequest{Messages: TextMessages("hi")}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	spans := tr.Find("llm.chat")
	if len(spans) != 1 {
		t.Fatalf("expected one llm.chat span, got %d", len(spans))
	}
	if spans[0].Attributes[observability.AttrSpanKind] != "LLM" {
		t.Fatalf("span kind = %v", spans[0].Attributes[observability.AttrSpanKind])
	}
	if spans[0].Attributes[observability.AttrTokensInput] != 3 {
		t.Fatalf("tokens = %v", spans[0].Attributes[observability.AttrTokensInput])
	}
	if s := m.Stats(); s.TokensUsed != 4 || s.Requests != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestInstrumentedClientRecordsErrors(t *testing.T) {
	tr := observability.NewMemoryTracer()
	m := observability.NewMemoryMetrics()
	c := NewInstrumentedClient(&failingClient{}).WithTelemetry(observability.Telemetry{Tracer: tr, Metrics: m})

	if _, err := c.Chat(context.Background(), &ChatRequest{}); !IsRateLimitError(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if m.Stats().Errors[string(ErrorTypeRateLimit)] != 1 {
		t.Fatalf("error not counted: %+v", m.Stats())
	}
	if tr.Find("llm.chat")[0].Status != observability.StatusCodeError {
		t.Fatalf("span status not error")
	}
}
