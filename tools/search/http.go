package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/agentflows/tools"
)

// Option configures an HTTP backend.
type Option func(*httpConfig)

type httpConfig struct {
	baseURL    string
	maxResults int
	language   string
	client     *http.Client
}

func WithBaseURL(u string) Option {
	return func(c *httpConfig) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithMaxResults(n int) Option { return func(c *httpConfig) { c.maxResults = n } }

func WithLanguage(lang string) Option { return func(c *httpConfig) { c.language = lang } }

func WithHTTPClient(client *http.Client) Option { return func(c *httpConfig) { c.client = client } }

func newHTTPConfig(defaultBase string, opts []Option) httpConfig {
	c := httpConfig{baseURL: defaultBase, maxResults: 5}
	for _, opt := range opts {
		opt(&c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

const maxErrorBody = 512

// do sends req and decodes a 2xx JSON body into out. Other statuses come
// back as *tools.HTTPStatusError.
func (c httpConfig) do(ctx context.Context, method, url string, body interface{}, header http.Header, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &tools.HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
