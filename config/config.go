// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration. It is built once at start-up and
// passed down explicitly.
type Config struct {
	Model   ModelConfig
	Search  SearchConfig
	Phoenix PhoenixConfig
	Storage StorageConfig

	StateFile string `validate:"required"`
	OutputDir string `validate:"required"`
	LogLevel  string `validate:"oneof=debug info warn error"`
	HTTPPort  int    `validate:"min=1,max=65535"`
}

// ModelConfig selects the chat model and carries every provider key so the
// provider can be switched without touching code.
type ModelConfig struct {
	Provider       string  `validate:"oneof=gemini openai anthropic"`
	Name           string  `validate:"required"`
	Temperature    float64 `validate:"gte=0,lte=2"`
	ThinkingBudget int     `validate:"gte=-1"`

	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// APIKey returns the key for the selected provider.
func (m ModelConfig) APIKey() string {
	switch m.Provider {
	case "openai":
		return m.OpenAIAPIKey
	case "anthropic":
		return m.AnthropicAPIKey
	default:
		return m.GoogleAPIKey
	}
}

type SearchConfig struct {
	Provider     string `validate:"oneof=tavily serper searxng grounded"`
	TavilyAPIKey string
	SerperAPIKey string
	SearxNGURL   string `validate:"omitempty,url"`
}

type PhoenixConfig struct {
	APIKey      string
	Endpoint    string `validate:"omitempty,url"`
	ProjectName string
}

// Enabled reports whether traces should be exported.
func (p PhoenixConfig) Enabled() bool { return p.Endpoint != "" }

type StorageConfig struct {
	RedisURL    string `validate:"omitempty,url"`
	PGVectorDSN string
}

// Defaults used when a variable is unset.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.5
	DefaultStateFile   = "agent_state.json"
	DefaultProject     = "agentflows"
	DefaultHTTPPort    = 8080
)

var validate = validator.New()

// Load reads .env (when present) into the process environment without
// overriding variables already set, then builds and validates a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := FromEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from lookup with defaults applied. It does not
// validate.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Model: ModelConfig{
			Provider:        strings.ToLower(get("MODEL_PROVIDER", "gemini")),
			Name:            get("MODEL_NAME", DefaultModel),
			GoogleAPIKey:    get("GOOGLE_API_KEY", get("GEMINI_API_KEY", "")),
			OpenAIAPIKey:    get("OPENAI_API_KEY", ""),
			AnthropicAPIKey: get("ANTHROPIC_API_KEY", ""),
		},
		Search: SearchConfig{
			Provider:     strings.ToLower(get("SEARCH_PROVIDER", "tavily")),
			TavilyAPIKey: get("TAVILY_API_KEY", ""),
			SerperAPIKey: get("SERPER_API_KEY", ""),
			SearxNGURL:   get("SEARXNG_URL", ""),
		},
		Phoenix: PhoenixConfig{
			APIKey:      get("PHOENIX_API_KEY", ""),
			Endpoint:    get("PHOENIX_COLLECTOR_ENDPOINT", ""),
			ProjectName: get("PHOENIX_PROJECT_NAME", DefaultProject),
		},
		Storage: StorageConfig{
			RedisURL:    get("REDIS_URL", ""),
			PGVectorDSN: get("PGVECTOR_DSN", ""),
		},
		StateFile: get("AGENT_STATE_FILE", DefaultStateFile),
		OutputDir: get("OUTPUT_DIR", "."),
		LogLevel:  strings.ToLower(get("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.Model.Temperature, err = strconv.ParseFloat(get("MODEL_TEMPERATURE", "0.5"), 64); err != nil {
		return nil, fmt.Errorf("MODEL_TEMPERATURE: %w", err)
	}
	if cfg.Model.ThinkingBudget, err = strconv.Atoi(get("MODEL_THINKING_BUDGET", "0")); err != nil {
		return nil, fmt.Errorf("MODEL_THINKING_BUDGET: %w", err)
	}
	if cfg.HTTPPort, err = strconv.Atoi(get("HTTP_PORT", strconv.Itoa(DefaultHTTPPort))); err != nil {
		return nil, fmt.Errorf("HTTP_PORT: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and that the selected model and search
// providers have credentials.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Model.APIKey() == "" {
		return fmt.Errorf("invalid config: %s is required for provider %s", keyVar(c.Model.Provider), c.Model.Provider)
	}
	switch c.Search.Provider {
	case "tavily":
		if c.Search.TavilyAPIKey == "" {
			return errors.New("invalid config: TAVILY_API_KEY is required for search provider tavily")
		}
	case "serper":
		if c.Search.SerperAPIKey == "" {
			return errors.New("invalid config: SERPER_API_KEY is required for search provider serper")
		}
	case "searxng":
		if c.Search.SearxNGURL == "" {
			return errors.New("invalid config: SEARXNG_URL is required for search provider searxng")
		}
	case "grounded":
		if c.Model.Provider != "gemini" {
			return errors.New("invalid config: grounded search requires MODEL_PROVIDER=gemini")
		}
	}
	return nil
}

func keyVar(provider string) string {
	switch provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GOOGLE_API_KEY"
	}
}
