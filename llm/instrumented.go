package llm

import (
	"context"
	"time"

	"github.com/KamdynS/agentflows/observability"
	"go.uber.org/zap"
)

// InstrumentedClient wraps a Client with llm.chat spans, latency and token metrics.
type InstrumentedClient struct {
	inner Client
	tel   observability.Telemetry
}

func NewInstrumentedClient(inner Client) *InstrumentedClient {
	return &InstrumentedClient{inner: inner, tel: observability.Nop()}
}

// WithTelemetry returns a copy reporting to tel.
func (c *InstrumentedClient) WithTelemetry(tel observability.Telemetry) *InstrumentedClient {
	return &InstrumentedClient{inner: c.inner, tel: tel.WithDefaults()}
}

// Unwrap returns the wrapped client.
func (c *InstrumentedClient) Unwrap() Client { return c.inner }

func (c *InstrumentedClient) Chat(ctx context.Context, req *ChatRequest) (*Response, error) {
	span, ctx := c.tel.StartSpan(ctx, "llm.chat", observability.SpanKindLLM)
	model := c.inner.Model()
	if req != nil && req.Model != "" {
		model = req.Model
	}
	span.SetAttribute(observability.AttrProvider, string(c.inner.Provider()))
	span.SetAttribute(observability.AttrModel, model)
	if req != nil && len(req.Messages) > 0 {
		span.SetAttribute(observability.AttrInputValue, req.Messages[len(req.Messages)-1].Content)
	}

	labels := map[string]string{"provider": string(c.inner.Provider()), "model": model}
	c.tel.Metrics.IncrementRequests(labels)
	start := time.Now()
	resp, err := c.inner.Chat(ctx, req)
	c.tel.Metrics.RecordLatency(time.Since(start), labels)

	if err != nil {
		errType := string(ErrorTypeUnknown)
		if llmErr, ok := IsLLMError(err); ok {
			errType = string(llmErr.Type)
		}
		c.tel.Metrics.RecordError(errType, labels)
		c.tel.Logger.Warn("llm chat failed", zap.String("model", model), zap.String("error_type", errType), zap.Error(err))
		observability.EndSpan(span, err)
		return nil, err
	}

	span.SetAttribute(observability.AttrOutputValue, resp.Content)
	span.SetAttribute(observability.AttrFinishReason, resp.FinishReason)
	if resp.Usage != nil {
		span.SetAttribute(observability.AttrTokensInput, resp.Usage.InputTokens)
		span.SetAttribute(observability.AttrTokensOutput, resp.Usage.OutputTokens)
		c.tel.Metrics.IncrementTokensUsed(resp.Usage.InputTokens, map[string]string{"direction": "input", "model": model})
		c.tel.Metrics.IncrementTokensUsed(resp.Usage.OutputTokens, map[string]string{"direction": "output", "model": model})
	}
	observability.EndSpan(span, nil)
	return resp, nil
}

func (c *InstrumentedClient) Completion(ctx context.Context, prompt string) (*Response, error) {
	return c.Chat(ctx, &ChatRequest{Messages: TextMessages(prompt)})
}

func (c *InstrumentedClient) Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error {
	span, ctx := c.tel.StartSpan(ctx, "llm.stream", observability.SpanKindLLM)
	span.SetAttribute(observability.AttrProvider, string(c.inner.Provider()))
	span.SetAttribute(observability.AttrModel, c.inner.Model())
	err := c.inner.Stream(ctx, req, output)
	observability.EndSpan(span, err)
	return err
}

func (c *InstrumentedClient) Model() string      { return c.inner.Model() }
func (c *InstrumentedClient) Provider() Provider { return c.inner.Provider() }
func (c *InstrumentedClient) Validate() error    { return c.inner.Validate() }

var _ Client = (*InstrumentedClient)(nil)
