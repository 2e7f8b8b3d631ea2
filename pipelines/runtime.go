// Package pipelines assembles the runnable agent pipelines: the search
// assistant, the research hand-off workflow and the blog and customer
// support crews. Everything a pipeline needs is carried on a Runtime built
// once at start-up.
package pipelines

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KamdynS/agentflows/config"
	"github.com/KamdynS/agentflows/llm"
	"github.com/KamdynS/agentflows/llm/anthropic"
	"github.com/KamdynS/agentflows/llm/gemini"
	"github.com/KamdynS/agentflows/llm/openai"
	"github.com/KamdynS/agentflows/memory"
	"github.com/KamdynS/agentflows/memory/inmemory"
	"github.com/KamdynS/agentflows/memory/redis"
	"github.com/KamdynS/agentflows/memory/vector/pgvector"
	obs "github.com/KamdynS/agentflows/observability"
	agentotel "github.com/KamdynS/agentflows/observability/otel"
	"github.com/KamdynS/agentflows/observability/prom"
	"github.com/KamdynS/agentflows/rag"
	"github.com/KamdynS/agentflows/tools/search"
	"github.com/KamdynS/agentflows/workflow"
	"go.uber.org/zap"
)

// Runtime is the explicit replacement for process-wide clients: config,
// telemetry, the chat model, the search backend and the stores. Fields may
// be set directly, which is how tests substitute mocks.
type Runtime struct {
	Config    *config.Config
	Telemetry obs.Telemetry
	// Metrics is the exporter behind Telemetry.Metrics, when there is one.
	Metrics *prom.Exporter

	Model  llm.Client
	Search search.Backend
	// Grounded is the research search backend; nil falls back to Search.
	Grounded search.Backend

	Conversations memory.ConversationStore
	// StateStore keeps workflow state out of process; nil keeps it in memory.
	StateStore memory.Store
	Vectors    memory.VectorStore
	Embedder   rag.Embedder

	Workflows *workflow.Registry

	closers []func(context.Context) error
}

// NewRuntime connects everything cfg asks for. Close releases it.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Metrics: prom.New(), Workflows: workflow.NewRegistry()}
	rt.Telemetry = obs.Telemetry{Metrics: rt.Metrics, Logger: logger}

	if cfg.Phoenix.Enabled() {
		p, err := agentotel.RegisterPhoenix(ctx, agentotel.PhoenixConfig{
			Endpoint:    cfg.Phoenix.Endpoint,
			APIKey:      cfg.Phoenix.APIKey,
			ProjectName: cfg.Phoenix.ProjectName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("register tracing: %w", err)
		}
		rt.Telemetry.Tracer = p.Tracer("agentflows")
		rt.closers = append(rt.closers, p.Shutdown)
		logger.Info("tracing enabled", zap.String("endpoint", cfg.Phoenix.Endpoint), zap.String("project", cfg.Phoenix.ProjectName))
	}
	rt.Telemetry = rt.Telemetry.WithDefaults()

	base, err := NewModel(cfg.Model)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	clients, err := providerClients(cfg.Model, base)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	var routed llm.Client = base
	if len(clients) > 1 {
		routed = llm.NewRouterClient(llm.ProviderPolicy{Default: base, ByProvider: clients})
	}
	rt.Model = llm.NewInstrumentedClient(routed).WithTelemetry(rt.Telemetry)

	// Grounded search needs a Gemini client even when another provider is
	// the default.
	searchModel := rt.Model
	if g, ok := clients[llm.ProviderGemini]; ok {
		if g != base {
			searchModel = llm.NewInstrumentedClient(g).WithTelemetry(rt.Telemetry)
		}
		if rt.Grounded, err = search.NewGrounded(searchModel, llm.ModelGemini25Pro); err != nil {
			rt.Close(ctx)
			return nil, err
		}
	}
	if rt.Search, err = NewSearchBackend(cfg.Search, searchModel); err != nil {
		rt.Close(ctx)
		return nil, err
	}

	if err := rt.connectStores(ctx, base); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	if err := RegisterGraphs(rt); err != nil {
		rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

// NewModel builds the chat client for the configured provider.
func NewModel(m config.ModelConfig) (llm.Client, error) {
	budget := m.ThinkingBudget
	switch m.Provider {
	case "openai":
		return openai.NewClient(openai.Config{APIKey: m.OpenAIAPIKey, Model: m.Name, Temperature: m.Temperature})
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{APIKey: m.AnthropicAPIKey, Model: m.Name, Temperature: m.Temperature})
	case "gemini", "":
		return gemini.NewClient(gemini.Config{
			APIKey:         m.GoogleAPIKey,
			Model:          m.Name,
			Temperature:    m.Temperature,
			ThinkingBudget: &budget,
		})
	}
	return nil, fmt.Errorf("unknown model provider %q", m.Provider)
}

// providerClients returns base plus a client for every other provider with
// a configured key, so requests naming another provider's model still run.
func providerClients(m config.ModelConfig, base llm.Client) (map[llm.Provider]llm.Client, error) {
	clients := map[llm.Provider]llm.Client{base.Provider(): base}
	others := []config.ModelConfig{
		{Provider: "gemini", Name: llm.ModelGemini25Flash, GoogleAPIKey: m.GoogleAPIKey},
		{Provider: "openai", Name: llm.ModelGPT41Mini, OpenAIAPIKey: m.OpenAIAPIKey},
		{Provider: "anthropic", Name: llm.ModelClaudeSonnet4, AnthropicAPIKey: m.AnthropicAPIKey},
	}
	for _, o := range others {
		if _, ok := clients[llm.Provider(o.Provider)]; ok || o.APIKey() == "" {
			continue
		}
		o.Temperature, o.ThinkingBudget = m.Temperature, m.ThinkingBudget
		if o.Provider == "anthropic" {
			o.Temperature = min(o.Temperature, 1)
		}
		c, err := NewModel(o)
		if err != nil {
			return nil, fmt.Errorf("%s client: %w", o.Provider, err)
		}
		clients[c.Provider()] = c
	}
	return clients, nil
}

// NewSearchBackend picks the web search backend. "grounded" searches with
// the model itself and needs a Gemini client.
func NewSearchBackend(s config.SearchConfig, model llm.Client) (search.Backend, error) {
	switch s.Provider {
	case "tavily", "":
		return search.NewTavily(s.TavilyAPIKey)
	case "serper":
		return search.NewSerper(s.SerperAPIKey)
	case "searxng":
		return search.NewSearxNG(s.SearxNGURL)
	case "grounded":
		return search.NewGrounded(model, "")
	}
	return nil, fmt.Errorf("unknown search provider %q", s.Provider)
}

// stateTTL expires hand-off run state kept in Redis.
const stateTTL = 24 * time.Hour

func (rt *Runtime) connectStores(ctx context.Context, base llm.Client) error {
	log := rt.Telemetry.Logger
	storage := rt.Config.Storage

	if storage.RedisURL != "" {
		client, err := redis.Connect(ctx, storage.RedisURL)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		rt.Conversations = redis.NewConversationStore(client, "agentflows", 0)
		rt.StateStore = redis.NewStore(client, stateTTL, "agentflows:state")
		log.Info("using redis for conversations and state")
	} else {
		rt.Conversations = inmemory.NewConversationStore()
	}

	dims := 0
	switch c := base.(type) {
	case *gemini.Client:
		rt.Embedder = rag.NewGeminiEmbedder(c, llm.ModelGeminiEmbedding)
		dims = 768
	case *openai.Client:
		emb, err := rag.NewOpenAIEmbedder(openai.Config{APIKey: rt.Config.Model.OpenAIAPIKey}, llm.ModelOpenAIEmbeddingSmall)
		if err != nil {
			return err
		}
		rt.Embedder = emb
		dims = 1536
	default:
		log.Info("no embedding model for provider, crew memory disabled", zap.String("provider", string(base.Provider())))
	}

	if storage.PGVectorDSN != "" && rt.Embedder != nil {
		pool, err := pgvector.Open(ctx, storage.PGVectorDSN)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, func(context.Context) error { pool.Close(); return nil })
		store := pgvector.New(pool, "crew_memory")
		if err := store.EnsureSchema(ctx, dims); err != nil {
			return fmt.Errorf("pgvector schema: %w", err)
		}
		rt.Vectors = store
		log.Info("using pgvector for crew memory")
	} else {
		rt.Vectors = inmemory.NewVectorStore()
	}
	return nil
}

// Close releases connections and flushes traces.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// temperature is the configured sampling temperature.
func (rt *Runtime) temperature() float64 {
	if rt.Config == nil {
		return config.DefaultTemperature
	}
	return rt.Config.Model.Temperature
}

func (rt *Runtime) thinkingBudget() int {
	if rt.Config == nil {
		return 0
	}
	return rt.Config.Model.ThinkingBudget
}

func (rt *Runtime) outputDir() string {
	if rt.Config == nil {
		return ""
	}
	return rt.Config.OutputDir
}

func (rt *Runtime) researchSearch() search.Backend {
	if rt.Grounded != nil {
		return rt.Grounded
	}
	return rt.Search
}
