package config

import (
	"strings"
	"testing"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"GEMINI_API_KEY": "g", "TAVILY_API_KEY": "t"}))
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Model.Provider != "gemini" || cfg.Model.Name != DefaultModel {
		t.Fatalf("model = %+v", cfg.Model)
	}
	if cfg.Model.Temperature != DefaultTemperature || cfg.Model.ThinkingBudget != 0 {
		t.Fatalf("temperature/budget = %v/%d", cfg.Model.Temperature, cfg.Model.ThinkingBudget)
	}
	if cfg.Model.APIKey() != "g" {
		t.Fatalf("GEMINI_API_KEY fallback not used")
	}
	if cfg.StateFile != "agent_state.json" || cfg.HTTPPort != DefaultHTTPPort {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Phoenix.Enabled() {
		t.Fatalf("phoenix should be disabled without endpoint")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestGoogleKeyWinsOverGeminiKey(t *testing.T) {
	cfg, _ := FromEnv(env(map[string]string{"GOOGLE_API_KEY": "google", "GEMINI_API_KEY": "gemini"}))
	if cfg.Model.GoogleAPIKey != "google" {
		t.Fatalf("got %q", cfg.Model.GoogleAPIKey)
	}
}

func TestFromEnvParseErrors(t *testing.T) {
	for _, key := range []string{"MODEL_TEMPERATURE", "MODEL_THINKING_BUDGET", "HTTP_PORT"} {
		_, err := FromEnv(env(map[string]string{key: "abc"}))
		if err == nil || !strings.Contains(err.Error(), key) {
			t.Errorf("%s: expected parse error, got %v", key, err)
		}
	}
}

func TestValidate(t *testing.T) {
	base := map[string]string{"GOOGLE_API_KEY": "g", "TAVILY_API_KEY": "t"}
	tests := []struct {
		name    string
		extra   map[string]string
		wantErr string
	}{
		{"ok", nil, ""},
		{"bad provider", map[string]string{"MODEL_PROVIDER": "llama"}, "Provider"},
		{"temperature range", map[string]string{"MODEL_TEMPERATURE": "3"}, "Temperature"},
		{"missing openai key", map[string]string{"MODEL_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"serper without key", map[string]string{"SEARCH_PROVIDER": "serper"}, "SERPER_API_KEY"},
		{"searxng url", map[string]string{"SEARCH_PROVIDER": "searxng", "SEARXNG_URL": "http://localhost:8888"}, ""},
		{"grounded needs gemini", map[string]string{"SEARCH_PROVIDER": "grounded", "MODEL_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": "a"}, "grounded"},
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LogLevel"},
		{"phoenix url", map[string]string{"PHOENIX_COLLECTOR_ENDPOINT": "not a url"}, "Endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := map[string]string{}
			for k, v := range base {
				m[k] = v
			}
			for k, v := range tt.extra {
				m[k] = v
			}
			cfg, err := FromEnv(env(m))
			if err != nil {
				t.Fatalf("FromEnv: %v", err)
			}
			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %v does not mention %q", err, tt.wantErr)
			}
		})
	}
}
