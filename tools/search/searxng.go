package search

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// SearxNG queries a self-hosted SearxNG instance through its JSON API.
type SearxNG struct {
	cfg httpConfig
}

func NewSearxNG(baseURL string, opts ...Option) (*SearxNG, error) {
	if baseURL == "" {
		return nil, errors.New("searxng: base URL is required")
	}
	return &SearxNG{cfg: newHTTPConfig(baseURL, append([]Option{WithBaseURL(baseURL)}, opts...))}, nil
}

func (s *SearxNG) Name() string { return "searxng" }

type searxngResponse struct {
	Query   string   `json:"query"`
	Answers []string `json:"answers"`
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (s *SearxNG) Search(ctx context.Context, query string) (*Response, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("safesearch", "0")
	values.Set("categories", "general")
	if s.cfg.language != "" {
		values.Set("language", s.cfg.language)
	}
	var out searxngResponse
	if err := s.cfg.do(ctx, http.MethodGet, s.cfg.baseURL+"/search?"+values.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	resp := &Response{Query: query}
	if len(out.Answers) > 0 {
		resp.Answer = out.Answers[0]
	}
	for i, r := range out.Results {
		if s.cfg.maxResults > 0 && i >= s.cfg.maxResults {
			break
		}
		resp.Results = append(resp.Results, Result{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
	}
	return resp, nil
}

var _ Backend = (*SearxNG)(nil)
