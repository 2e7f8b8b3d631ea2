// Package gemini implements llm.Client on the Google Gen AI SDK against the
// Gemini Developer API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentflows/llm"
	"github.com/rs/xid"
	"google.golang.org/genai"
)

// Client implements the llm.Client interface for Gemini
type Client struct {
	client  *genai.Client
	config  Config
	retrier *llm.Retrier
}

// Config holds Gemini-specific configuration
type Config struct {
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	// ThinkingBudget is the default reasoning budget; zero turns thinking off.
	ThinkingBudget *int            `json:"thinking_budget,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Timeout        time.Duration   `json:"timeout,omitempty"`
	RetryConfig    llm.RetryConfig `json:"retry_config,omitempty"`
}

// NewClient creates a new Gemini client
func NewClient(config Config) (*Client, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Model == "" {
		config.Model = llm.ModelGemini25Flash
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryConfig.MaxRetries == 0 {
		config.RetryConfig = llm.DefaultRetryConfig()
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{
		client:  client,
		config:  config,
		retrier: llm.NewRetrier(config.RetryConfig),
	}, nil
}

func validateConfig(config Config) error {
	if config.APIKey == "" {
		return errors.New("API key is required")
	}
	if config.Model != "" {
		if p, ok := llm.ProviderForModel(config.Model); ok && p != llm.ProviderGemini {
			return fmt.Errorf("model %s is not a Gemini model", config.Model)
		}
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if config.ThinkingBudget != nil && *config.ThinkingBudget < -1 {
		return errors.New("thinking_budget must be -1 (dynamic) or non-negative")
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
	model, contents, cfg := c.buildRequest(req)
	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, convertError(err)
	}
	out := toResponse(resp, model)
	if out.Content == "" && len(out.ToolCalls) == 0 {
		reason := out.FinishReason
		if reason == "" && resp.PromptFeedback != nil {
			reason = string(resp.PromptFeedback.BlockReason)
		}
		return nil, llm.NewLLMError(llm.ProviderGemini, llm.ErrorTypeEmptyResponse, "no content returned (finish reason "+reason+")")
	}
	return out, nil
}

// toResponse flattens the first candidate. Thought parts are dropped and
// function calls without an id get a generated one.
func toResponse(resp *genai.GenerateContentResponse, model string) *llm.Response {
	out := &llm.Response{
		Role:     llm.RoleAssistant,
		Model:    model,
		Provider: llm.ProviderGemini,
		Meta:     map[string]string{"id": resp.ResponseID},
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &llm.Usage{
			InputTokens:    int(u.PromptTokenCount),
			OutputTokens:   int(u.CandidatesTokenCount),
			ThinkingTokens: int(u.ThoughtsTokenCount),
			TotalTokens:    int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)

	var text strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			switch {
			case part.Thought:
			case part.FunctionCall != nil:
				args, _ := json.Marshal(part.FunctionCall.Args)
				if part.FunctionCall.Args == nil {
					args = []byte("{}")
				}
				id := part.FunctionCall.ID
				if id == "" {
					id = "call_" + xid.New().String()
				}
				out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
					ID:       id,
					Type:     "function",
					Function: llm.Function{Name: part.FunctionCall.Name, Arguments: string(args)},
				})
			case part.Text != "":
				text.WriteString(part.Text)
			}
		}
	}
	out.Content = text.String()

	if gm := cand.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			out.Citations = append(out.Citations, llm.Citation{Title: chunk.Web.Title, URL: chunk.Web.URI})
		}
		if len(gm.WebSearchQueries) > 0 {
			out.Meta["search_queries"] = strings.Join(gm.WebSearchQueries, "; ")
		}
	}
	return out
}

// buildRequest maps a provider-neutral request onto GenerateContent
// arguments. Tool results that follow one model turn are grouped into a
// single user turn, the way Gemini pairs function calls and responses.
func (c *Client) buildRequest(req *llm.ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig) {
	system := req.SystemPrompt
	contents := make([]*genai.Content, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case llm.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.NewPartFromText(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Function.Name, args))
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})
		case llm.RoleTool:
			part := genai.NewPartFromFunctionResponse(msg.Name, map[string]any{"result": msg.Content})
			if n := len(contents); n > 0 && isFunctionResponseTurn(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	model := c.config.Model
	if req.Model != "" {
		model = req.Model
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:   genai.Ptr(float32(c.config.Temperature)),
		StopSequences: req.Stop,
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	} else if c.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.config.MaxTokens)
	}

	budget := c.config.ThinkingBudget
	if req.ThinkingBudget != nil {
		budget = req.ThinkingBudget
	}
	if budget != nil && *budget == 0 && thinkingRequired(model) {
		budget = nil
	}
	if budget != nil && supportsThinking(model) {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(*budget))}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decl := &genai.FunctionDeclaration{Name: t.Function.Name, Description: t.Function.Description}
			if t.Function.Parameters != nil {
				decl.ParametersJsonSchema = t.Function.Parameters
			}
			decls = append(decls, decl)
		}
		cfg.Tools = append(cfg.Tools, &genai.Tool{FunctionDeclarations: decls})
		switch req.ToolChoice {
		case "required":
			cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAny}}
		case "none":
			cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeNone}}
		}
	}
	if req.Grounding {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		cfg.ResponseMIMEType = "application/json"
	}
	return model, contents, cfg
}

func isFunctionResponseTurn(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func supportsThinking(model string) bool {
	if m, err := llm.GetModel(model); err == nil {
		return m.Capabilities.Thinking
	}
	return strings.HasPrefix(model, "gemini-2.5")
}

// thinkingRequired reports models that reject a zero thinking budget.
func thinkingRequired(model string) bool {
	return strings.HasPrefix(model, "gemini-2.5-pro")
}

func (c *Client) Completion(ctx context.Context, prompt string) (*llm.Response, error) {
	return c.Chat(ctx, &llm.ChatRequest{Messages: llm.TextMessages(prompt)})
}

// Stream sends text deltas on output and closes it when the stream ends.
// Retries only cover failures before the first chunk arrives.
func (c *Client) Stream(ctx context.Context, req *llm.ChatRequest, output chan<- *llm.Response) error {
	defer close(output)

	model, contents, cfg := c.buildRequest(req)
	start := time.Now()
	delivered := false

	_, err := llm.Execute(c.retrier, ctx, func(ctx context.Context, attempt int) (struct{}, error) {
		for resp, err := range c.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				if delivered {
					e := llm.NewLLMErrorWithCause(llm.ProviderGemini, llm.ErrorTypeConnectionError, "stream interrupted", err)
					e.Retryable = false
					return struct{}{}, e
				}
				return struct{}{}, convertError(err)
			}
			delivered = true
			chunk := toResponse(resp, model)
			chunk.Latency = time.Since(start)
			chunk.Timestamp = start
			select {
			case output <- chunk:
			case <-ctx.Done():
				return struct{}{}, ctx.Err()
			}
		}
		return struct{}{}, nil
	})
	return err
}

// convertError converts Gen AI SDK errors to LLM errors
func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		llmErr := llm.ParseHTTPError(llm.ProviderGemini, apiErr.Code, apiErr.Message)
		llmErr.Code = apiErr.Status
		llmErr.Cause = err
		return llmErr
	}
	if ctxErr := llm.FromContextError(llm.ProviderGemini, err); ctxErr != nil {
		return ctxErr
	}
	return llm.NewLLMErrorWithCause(llm.ProviderGemini, llm.ErrorTypeConnectionError, err.Error(), err)
}

func (c *Client) Model() string          { return c.config.Model }
func (c *Client) Provider() llm.Provider { return llm.ProviderGemini }
func (c *Client) Validate() error        { return validateConfig(c.config) }

var _ llm.Client = (*Client)(nil)
