package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// PhoenixConfig points the OTLP/HTTP exporter at an Arize Phoenix collector.
type PhoenixConfig struct {
	// Endpoint is the full traces URL, e.g. https://app.phoenix.arize.com/v1/traces.
	Endpoint string
	// APIKey is sent as the api_key header.
	APIKey string
	// Headers is an optional "k=v,k2=v2" list, the PHOENIX_CLIENT_HEADERS format.
	Headers string
	// ProjectName groups traces in the Phoenix UI.
	ProjectName string
	ServiceName string
}

// Provider owns the SDK tracer provider and its exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// RegisterPhoenix builds a batching tracer provider exporting to Phoenix.
// The returned provider must be shut down to flush pending spans.
func RegisterPhoenix(ctx context.Context, cfg PhoenixConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("phoenix endpoint is required")
	}
	headers, err := ParseHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		headers["api_key"] = cfg.APIKey
	}
	if logger != nil {
		otel.SetLogger(zapr.NewLogger(logger.Named("otel")))
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "agentflows"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("openinference.project.name", cfg.ProjectName),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

// Tracer returns an observability.Tracer backed by this provider.
func (p *Provider) Tracer(instrumentation string) *Tracer {
	return NewTracer(p.tp, instrumentation)
}

// Shutdown flushes and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// ParseHeaders parses "k=v,k2=v2" into a map. Empty input yields an empty map.
func ParseHeaders(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("malformed header %q", part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
