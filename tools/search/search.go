// Package search provides the web search tool and the backends it can call.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/KamdynS/agentflows/tools"
)

// Backend runs one web search.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string) (*Response, error)
}

// Result is one hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Response is what a backend returns. Answer is set by backends that
// synthesise one (Tavily, Serper answer boxes, grounded models).
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// String renders the response as the plain text handed to the model.
func (r *Response) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", r.Query)
	if r.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", r.Answer)
	}
	for i, res := range r.Results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, res.Title, res.URL)
		if res.Content != "" {
			fmt.Fprintf(&b, "   %s\n", strings.TrimSpace(res.Content))
		}
	}
	if r.Answer == "" && len(r.Results) == 0 {
		b.WriteString("No results found.\n")
	}
	return b.String()
}

// FailurePrefix starts the text the model sees when a search fails.
const FailurePrefix = "Search failed: "

const (
	DefaultName        = "search_web"
	DefaultDescription = "Search the web for current information on a query or topic " +
		"(weather, news, real-time data, general facts) and return the results as text."
)

// Tool adapts a Backend to tools.Tool.
type Tool struct {
	backend     Backend
	name        string
	description string
}

// ToolOption customises a Tool.
type ToolOption func(*Tool)

func WithName(name string) ToolOption { return func(t *Tool) { t.name = name } }

func WithDescription(desc string) ToolOption { return func(t *Tool) { t.description = desc } }

func NewTool(backend Backend, opts ...ToolOption) *Tool {
	t := &Tool{backend: backend, name: DefaultName, description: DefaultDescription}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }
func (t *Tool) Backend() Backend    { return t.backend }

func (t *Tool) Schema() map[string]interface{} {
	return tools.StringSchema("query", "The search query to execute")
}

func (t *Tool) Execute(ctx context.Context, input string) (string, error) {
	query, err := tools.StringArg(input, "query")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: empty query", tools.ErrInvalidInput)
	}
	resp, err := t.backend.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t.backend.Name(), err)
	}
	return resp.String(), nil
}

// FormatFailure renders err with the search failure marker.
func (t *Tool) FormatFailure(err error) string {
	return FailurePrefix + "Error occurred during web search: " + err.Error()
}

var (
	_ tools.Tool             = (*Tool)(nil)
	_ tools.FailureFormatter = (*Tool)(nil)
)
