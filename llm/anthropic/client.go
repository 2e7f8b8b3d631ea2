package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentflows/llm"
	"github.com/liushuangls/go-anthropic/v2"
)

// Client implements the llm.Client interface for Anthropic Claude
type Client struct {
	client  *anthropic.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds Anthropic-specific configuration
type Config struct {
	APIKey      string          `json:"api_key"`
	Model       string          `json:"model"`
	BaseURL     string          `json:"base_url,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	RetryConfig llm.RetryConfig `json:"retry_config,omitempty"`
}

// NewClient creates a new Anthropic client
func NewClient(config Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Model == "" {
		config.Model = llm.ModelClaude35Haiku
	}
	// Anthropic requires max_tokens on every request.
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}

	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}

	return &Client{
		client:  anthropic.NewClient(config.APIKey, opts...),
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}
	if config.Model != "" {
		if p, ok := llm.ProviderForModel(config.Model); ok && p != llm.ProviderAnthropic {
			return fmt.Errorf("model %s is not an Anthropic model", config.Model)
		}
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return errors.New("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return errors.New("max_tokens must be non-negative")
	}
	return nil
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	start := time.Now()
	result, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*llm.Response, error) {
		return c.chat(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	result.Latency = time.Since(start)
	result.Timestamp = start
	return result, nil
}

func (c *Client) chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	anthReq := c.buildRequest(req)
	resp, err := c.client.CreateMessages(ctx, anthReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Content) == 0 {
		return nil, llm.NewLLMError(llm.ProviderAnthropic, llm.ErrorTypeEmptyResponse, "no content returned")
	}

	var content strings.Builder
	var toolCalls []llm.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				content.WriteString(*block.Text)
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			args := string(block.MessageContentToolUse.Input)
			if args == "" {
				args = "{}"
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:       block.MessageContentToolUse.ID,
				Type:     "function",
				Function: llm.Function{Name: block.MessageContentToolUse.Name, Arguments: args},
			})
		}
	}

	var usage *llm.Usage
	if resp.Usage.OutputTokens > 0 {
		usage = &llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		}
	}

	return &llm.Response{
		Content:      content.String(),
		Role:         llm.RoleAssistant,
		Model:        string(anthReq.Model),
		Provider:     llm.ProviderAnthropic,
		Usage:        usage,
		FinishReason: string(resp.StopReason),
		ToolCalls:    toolCalls,
		Meta:         map[string]string{"id": resp.ID},
	}, nil
}

// buildRequest folds system messages into the system prompt and groups
// consecutive tool results into one user turn, which the Messages API requires.
func (c *Client) buildRequest(req *llm.ChatRequest) anthropic.MessagesRequest {
	system := req.SystemPrompt
	messages := make([]anthropic.Message, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case llm.RoleAssistant:
			var blocks []anthropic.MessageContent
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseMessageContent(tc.ID, tc.Function.Name, input))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: blocks})
		case llm.RoleTool:
			block := anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, false)
			if n := len(messages); n > 0 && messages[n-1].Role == anthropic.RoleUser && isToolResultTurn(messages[n-1]) {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{block}})
		default:
			messages = append(messages, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)},
			})
		}
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}
	out := anthropic.MessagesRequest{
		Model:         anthropic.Model(model),
		Messages:      messages,
		System:        system,
		MaxTokens:     c.config.MaxTokens,
		StopSequences: req.Stop,
	}
	temp := float32(c.config.Temperature)
	if req.Temperature != nil {
		temp = float32(*req.Temperature)
	}
	out.Temperature = &temp
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	}

	for _, t := range req.Tools {
		schema := t.Function.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out.Tools = append(out.Tools, anthropic.ToolDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: schema,
		})
	}
	if len(out.Tools) > 0 {
		switch req.ToolChoice {
		case "required":
			out.ToolChoice = &anthropic.ToolChoice{Type: "any"}
		case "auto":
			out.ToolChoice = &anthropic.ToolChoice{Type: "auto"}
		}
	}
	return out
}

func isToolResultTurn(m anthropic.Message) bool {
	for _, b := range m.Content {
		if b.Type != anthropic.MessagesContentTypeToolResult {
			return false
		}
	}
	return len(m.Content) > 0
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{Messages: llm.TextMessages(prompt)})
}

// Stream sends text deltas on output and closes it when the message ends.
// Retries only cover failures before the first delta is delivered.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)

	base := c.buildRequest(req)
	model := string(base.Model)
	start := time.Now()
	delivered := false

	_, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (struct{}, error) {
		if delivered {
			return struct{}{}, nil
		}
		streamReq := anthropic.MessagesStreamRequest{
			MessagesRequest: base,
			OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
				if data.Delta.Text == nil || *data.Delta.Text == "" {
					return
				}
				delivered = true
				select {
				case output <- &llm.Response{
					Content:   *data.Delta.Text,
					Role:      llm.RoleAssistant,
					Model:     model,
					Provider:  llm.ProviderAnthropic,
					Latency:   time.Since(start),
					Timestamp: start,
				}:
				case <-ctx.Done():
				}
			},
		}
		if _, err := c.client.CreateMessagesStream(ctx, streamReq); err != nil {
			if delivered {
				e := llm.NewLLMErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeConnectionError, "stream interrupted", err)
				e.Retryable = false
				return struct{}{}, e
			}
			return struct{}{}, convertError(err)
		}
		return struct{}{}, nil
	})
	return err
}

// convertError converts Anthropic SDK errors to LLM errors
func convertError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		llmErr := llm.NewLLMErrorWithCause(llm.ProviderAnthropic, errorTypeFor(string(apiErr.Type)), apiErr.Message, err)
		llmErr.Code = string(apiErr.Type)
		return llmErr
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		llmErr := llm.ParseHTTPError(llm.ProviderAnthropic, reqErr.StatusCode, "")
		llmErr.Cause = err
		return llmErr
	}
	if ctxErr := llm.FromContextError(llm.ProviderAnthropic, err); ctxErr != nil {
		return ctxErr
	}
	return llm.NewLLMErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeConnectionError, err.Error(), err)
}

func errorTypeFor(anthropicType string) llm.ErrorType {
	switch anthropicType {
	case "rate_limit_error":
		return llm.ErrorTypeRateLimit
	case "overloaded_error", "api_error":
		return llm.ErrorTypeServerError
	case "authentication_error":
		return llm.ErrorTypeAuthentication
	case "permission_error":
		return llm.ErrorTypePermission
	case "not_found_error":
		return llm.ErrorTypeNotFound
	case "invalid_request_error":
		return llm.ErrorTypeInvalidRequest
	case "request_too_large":
		return llm.ErrorTypeContextLength
	}
	return llm.ErrorTypeUnknown
}

func (c *Client) Model() string          { return c.config.Model }
func (c *Client) Provider() llm.Provider { return llm.ProviderAnthropic }
func (c *Client) Validate() error        { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
