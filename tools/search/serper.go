package search

import (
	"context"
	"errors"
	"net/http"
)

const serperBaseURL = "https://google.serper.dev"

// Serper calls the Serper Google search API.
type Serper struct {
	apiKey string
	cfg    httpConfig
}

func NewSerper(apiKey string, opts ...Option) (*Serper, error) {
	if apiKey == "" {
		return nil, errors.New("serper: API key is required")
	}
	return &Serper{apiKey: apiKey, cfg: newHTTPConfig(serperBaseURL, opts)}, nil
}

func (s *Serper) Name() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string) (*Response, error) {
	var out serperResponse
	header := http.Header{"X-API-KEY": {s.apiKey}}
	body := serperRequest{Q: query, Num: s.cfg.maxResults, HL: s.cfg.language}
	if err := s.cfg.do(ctx, http.MethodPost, s.cfg.baseURL+"/search", body, header, &out); err != nil {
		return nil, err
	}
	resp := &Response{Query: query}
	if out.AnswerBox != nil {
		resp.Answer = out.AnswerBox.Answer
		if resp.Answer == "" {
			resp.Answer = out.AnswerBox.Snippet
		}
	}
	for i, r := range out.Organic {
		if s.cfg.maxResults > 0 && i >= s.cfg.maxResults {
			break
		}
		resp.Results = append(resp.Results, Result{Title: r.Title, URL: r.Link, Content: r.Snippet})
	}
	return resp, nil
}

var _ Backend = (*Serper)(nil)
