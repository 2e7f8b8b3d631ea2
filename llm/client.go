package llm

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a message in a conversation with an LLM
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	// Name carries the tool name on tool-role messages.
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls are the calls an assistant message requested; replayed on the
	// next turn so providers can pair them with tool results.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Response represents the response from an LLM
type Response struct {
	Content      string            `json:"content"`
	Role         string            `json:"role,omitempty"`
	Model        string            `json:"model"`
	Provider     Provider          `json:"provider"`
	Usage        *Usage            `json:"usage,omitempty"`
	FinishReason string            `json:"finish_reason,omitempty"`
	ToolCalls    []ToolCall        `json:"tool_calls,omitempty"`
	Citations    []Citation        `json:"citations,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
	Latency      time.Duration     `json:"latency,omitempty"`
	Timestamp    time.Time         `json:"timestamp,omitempty"`
}

// Citation is a web source a grounded response drew on.
type Citation struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Usage contains token usage information
type Usage struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	ThinkingTokens int `json:"thinking_tokens,omitempty"`
	TotalTokens    int `json:"total_tokens"`
}

// ToolCall represents a tool/function call from the LLM
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function represents a function call
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// Client defines the interface for interacting with Large Language Models
type Client interface {
	// Chat sends a conversation to the LLM and returns a response
	Chat(ctx context.Context, req *ChatRequest) (*Response, error)

	// Completion sends a single prompt to the LLM and returns a response
	Completion(ctx context.Context, prompt string) (*Response, error)

	// Stream sends partial responses on output and closes it when done
	Stream(ctx context.Context, req *ChatRequest, output chan<- *Response) error

	Model() string
	Provider() Provider
	Validate() error
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Messages     []Message `json:"messages"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty"`
	MaxTokens    *int      `json:"max_tokens,omitempty"`
	// ThinkingBudget caps reasoning tokens on models that support it. Zero
	// disables thinking; nil leaves the provider default.
	ThinkingBudget *int `json:"thinking_budget,omitempty"`
	// Grounding enables the provider's built-in web search, when it has one.
	Grounding      bool            `json:"grounding,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"` // "auto", "none", "required"
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Tool represents a tool/function that the LLM can call
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction represents a function definition
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ResponseFormat specifies the format of the response
type ResponseFormat struct {
	Type string `json:"type"` // "text" or "json_object"
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries      int           `json:"max_retries"`
	InitialDelay    time.Duration `json:"initial_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor"`
	RetryableErrors []string      `json:"retryable_errors"`
}

// DefaultRetryConfig returns sensible defaults for retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  1 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []string{
			"rate_limit_exceeded",
			"server_error",
			"timeout",
			"connection_error",
		},
	}
}

// Config holds common configuration options for LLM clients
type Config struct {
	APIKey         string            `json:"api_key"`
	Model          string            `json:"model"`
	BaseURL        string            `json:"base_url,omitempty"`
	Temperature    float64           `json:"temperature,omitempty"`
	ThinkingBudget *int              `json:"thinking_budget,omitempty"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Timeout        time.Duration     `json:"timeout,omitempty"`
	RetryConfig    RetryConfig       `json:"retry_config,omitempty"`
	ExtraHeaders   map[string]string `json:"extra_headers,omitempty"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// TextMessages is a shorthand for a single user turn.
func TextMessages(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}
