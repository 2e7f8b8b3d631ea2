package search

import (
	"context"
	"errors"
	"net/http"
)

const tavilyBaseURL = "https://api.tavily.com"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey string
	cfg    httpConfig
}

func NewTavily(apiKey string, opts ...Option) (*Tavily, error) {
	if apiKey == "" {
		return nil, errors.New("tavily: API key is required")
	}
	return &Tavily{apiKey: apiKey, cfg: newHTTPConfig(tavilyBaseURL, opts)}, nil
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *Tavily) Search(ctx context.Context, query string) (*Response, error) {
	var out tavilyResponse
	header := http.Header{"Authorization": {"Bearer " + t.apiKey}}
	body := tavilyRequest{Query: query, SearchDepth: "basic", MaxResults: t.cfg.maxResults, IncludeAnswer: true}
	if err := t.cfg.do(ctx, http.MethodPost, t.cfg.baseURL+"/search", body, header, &out); err != nil {
		return nil, err
	}
	resp := &Response{Query: query, Answer: out.Answer}
	for _, r := range out.Results {
		resp.Results = append(resp.Results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return resp, nil
}

var _ Backend = (*Tavily)(nil)
