// Package webpage provides fetch_page, which reads a web page as markdown.
package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"

	"github.com/KamdynS/agentflows/tools"
)

const (
	DefaultMaxChars  = 8000
	DefaultUserAgent = "agentflows/1.0 (+https://github.com/KamdynS/agentflows)"
	maxBodyBytes     = 2 << 20
)

// FetchTool downloads a page, keeps its main content and converts it to
// markdown.
type FetchTool struct {
	client    *http.Client
	maxChars  int
	userAgent string
}

func NewFetchTool(timeout time.Duration, maxChars int) *FetchTool {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &FetchTool{
		client:    &http.Client{Timeout: timeout},
		maxChars:  maxChars,
		userAgent: DefaultUserAgent,
	}
}

func (t *FetchTool) Name() string { return "fetch_page" }

func (t *FetchTool) Description() string {
	return "Fetch a web page by URL and return its main content as markdown. " +
		"Use it to read a search result in full."
}

func (t *FetchTool) Schema() map[string]interface{} {
	return tools.StringSchema("url", "Absolute http(s) URL of the page")
}

func (t *FetchTool) Execute(ctx context.Context, input string) (string, error) {
	raw, err := tools.StringArg(input, "url")
	if err != nil {
		return "", err
	}
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: not an http(s) URL: %q", tools.ErrInvalidInput, raw)
	}

	doc, err := t.fetch(ctx, u.String())
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(doc.Find("head title").First().Text())
	md, err := htmltomarkdown.ConvertString(
		mainContent(doc),
		converter.WithDomain(u.Scheme+"://"+u.Host),
	)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	md = truncate(clean(md), t.maxChars)
	if title != "" {
		md = "# " + title + "\n\n" + md
	}
	return md, nil
}

func (t *FetchTool) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &tools.HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
}

// mainContent drops page chrome and returns the HTML of the first content
// container found.
func mainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()
	for _, sel := range []string{"main", "article", "#content, #main", ".content, .main", "body"} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if h, err := s.Html(); err == nil && strings.TrimSpace(h) != "" {
				return h
			}
		}
	}
	h, _ := doc.Html()
	return h
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func clean(md string) string {
	lines := strings.Split(md, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n\n[truncated]"
}

var _ tools.Tool = (*FetchTool)(nil)
