package memory

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// WordCounter approximates tokens by whitespace-separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int { return len(strings.Fields(text)) }

// TikTokenCounter counts tokens with a tiktoken encoding such as
// "cl100k_base" or "o200k_base".
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (c *TikTokenCounter) Count(text string) int {
	return len(c.tke.Encode(text, nil, nil))
}

// perMessageOverhead approximates role and separator tokens.
const perMessageOverhead = 4

// Window trims conversation history to a token budget, dropping the oldest
// messages first.
type Window struct {
	MaxTokens int
	Counter   TokenCounter
}

// NewWindow returns a window over counter; a nil counter counts words.
func NewWindow(maxTokens int, counter TokenCounter) *Window {
	if counter == nil {
		counter = WordCounter{}
	}
	return &Window{MaxTokens: maxTokens, Counter: counter}
}

// Tokens is the estimated size of msgs.
func (w *Window) Tokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += w.Counter.Count(m.Content) + perMessageOverhead
	}
	return total
}

// Trim returns the longest suffix of msgs within MaxTokens. The newest
// message is always kept. A non-positive MaxTokens disables trimming.
func (w *Window) Trim(msgs []Message) []Message {
	if w.MaxTokens <= 0 || len(msgs) == 0 {
		return msgs
	}
	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := w.Counter.Count(msgs[i].Content) + perMessageOverhead
		if total+cost > w.MaxTokens && start < len(msgs) {
			break
		}
		total += cost
		start = i
	}
	return msgs[start:]
}
