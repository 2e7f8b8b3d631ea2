package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KamdynS/agentflows/llm"
	"github.com/sashabaranov/go-openai"
)

// Client implements the llm.Client interface for OpenAI
type Client struct {
	client  *openai.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds OpenAI-specific configuration
type Config struct {
	APIKey       string          `json:"api_key"`
	Model        string          `json:"model"`
	BaseURL      string          `json:"base_url,omitempty"`
	Temperature  float64         `json:"temperature,omitempty"`
	MaxTokens    int             `json:"max_tokens,omitempty"`
	Timeout      time.Duration   `json:"timeout,omitempty"`
	RetryConfig  llm.RetryConfig `json:"retry_config,omitempty"`
	Organization string          `json:"organization,omitempty"`
}

// NewClient creates a new OpenAI client
func NewClient(config Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Model == "" {
		config.Model = llm.ModelGPT4oMini
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}
	if config.Organization != "" {
		oc.OrgID = config.Organization
	}
	oc.HTTPClient = &http.Client{Timeout: config.Timeout}

	return &Client{
		client:  openai.NewClientWithConfig(oc),
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}
	if config.Model != "" {
		if p, ok := llm.ProviderForModel(config.Model); ok && p != llm.ProviderOpenAI {
			return fmt.Errorf("model %s is not an OpenAI model", config.Model)
		}
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
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
	oaiReq := c.buildRequest(req)
	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		return nil, convertError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewLLMError(llm.ProviderOpenAI, llm.ErrorTypeEmptyResponse, "no choices returned")
	}
	choice := resp.Choices[0]

	var toolCalls []llm.ToolCall
	for _, tc := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:       tc.ID,
			Type:     string(tc.Type),
			Function: llm.Function{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}

	var usage *llm.Usage
	if resp.Usage.TotalTokens > 0 {
		usage = &llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	return &llm.Response{
		Content:      choice.Message.Content,
		Role:         llm.RoleAssistant,
		Model:        oaiReq.Model,
		Provider:     llm.ProviderOpenAI,
		Usage:        usage,
		FinishReason: string(choice.FinishReason),
		ToolCalls:    toolCalls,
		Meta:         map[string]string{"id": resp.ID},
	}, nil
}

// buildRequest converts a provider-neutral request, replaying assistant tool
// calls so tool results pair with their call ids.
func (c *Client) buildRequest(req *llm.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{Content: msg.Content}
		switch msg.Role {
		case llm.RoleSystem:
			m.Role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			m.Role = openai.ChatMessageRoleAssistant
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
				})
			}
		case llm.RoleTool:
			m.Role = openai.ChatMessageRoleTool
			m.ToolCallID = msg.ToolCallID
			m.Name = msg.Name
		default:
			m.Role = openai.ChatMessageRoleUser
		}
		messages = append(messages, m)
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}
	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(c.config.Temperature),
		Stop:        req.Stop,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		out.MaxTokens = *req.MaxTokens
	} else if c.config.MaxTokens > 0 {
		out.MaxTokens = c.config.MaxTokens
	}
	// Reasoning effort is the closest OpenAI knob to a thinking budget.
	if req.ThinkingBudget != nil && *req.ThinkingBudget > 0 {
		out.ReasoningEffort = reasoningEffort(*req.ThinkingBudget)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			},
		})
	}
	if len(out.Tools) > 0 && req.ToolChoice != "" {
		out.ToolChoice = req.ToolChoice
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return out
}

func reasoningEffort(budget int) string {
	switch {
	case budget < 2048:
		return "low"
	case budget < 8192:
		return "medium"
	default:
		return "high"
	}
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{Messages: llm.TextMessages(prompt)})
}

// Stream sends content deltas on output and closes it when the stream ends.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)

	oaiReq := c.buildRequest(req)
	oaiReq.Stream = true
	stream, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (*openai.ChatCompletionStream, error) {
		s, err := c.client.CreateChatCompletionStream(ctx, oaiReq)
		if err != nil {
			return nil, convertError(err)
		}
		return s, nil
	})
	if err != nil {
		return err
	}
	defer stream.Close()

	start := time.Now()
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return convertError(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		select {
		case output <- &llm.Response{
			Content:      choice.Delta.Content,
			Role:         llm.RoleAssistant,
			Model:        oaiReq.Model,
			Provider:     llm.ProviderOpenAI,
			FinishReason: string(choice.FinishReason),
			Latency:      time.Since(start),
			Timestamp:    start,
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// convertError converts OpenAI SDK errors to LLM errors
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		llmErr := llm.ParseHTTPError(llm.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
		if code, ok := apiErr.Code.(string); ok {
			llmErr.Code = code
		}
		llmErr.Cause = err
		return llmErr
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		llmErr := llm.ParseHTTPError(llm.ProviderOpenAI, reqErr.HTTPStatusCode, string(reqErr.Body))
		llmErr.Cause = err
		return llmErr
	}
	if ctxErr := llm.FromContextError(llm.ProviderOpenAI, err); ctxErr != nil {
		return ctxErr
	}
	return llm.NewLLMErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeConnectionError, err.Error(), err)
}

func (c *Client) Model() string          { return c.config.Model }
func (c *Client) Provider() llm.Provider { return llm.ProviderOpenAI }
func (c *Client) Validate() error        { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
