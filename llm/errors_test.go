package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestLLMErrorText(t *testing.T) {
	err := &LLMError{Type: ErrorTypeRateLimit, Message: "Rate limit exceeded", Provider: ProviderGemini}
	if err.Error() != "gemini: Rate limit exceeded" {
		t.Fatalf("got %q", err.Error())
	}
	err.Code = "RESOURCE_EXHAUSTED"
	if err.Error() != "gemini [RESOURCE_EXHAUSTED]: Rate limit exceeded" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestParseHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantType  ErrorType
		retryable bool
	}{
		{http.StatusBadRequest, "", ErrorTypeInvalidRequest, false},
		{http.StatusUnauthorized, "", ErrorTypeAuthentication, false},
		{http.StatusTooManyRequests, "", ErrorTypeRateLimit, true},
		{http.StatusServiceUnavailable, "", ErrorTypeServerError, true},
		{http.StatusBadRequest, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, ErrorTypeRateLimit, true},
		{http.StatusBadRequest, "context length exceeded", ErrorTypeContextLength, false},
		{http.StatusNotFound, "model not found", ErrorTypeInvalidModel, false},
		{418, "", ErrorTypeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s", tt.status, tt.body), func(t *testing.T) {
			err := ParseHTTPError(ProviderGemini, tt.status, tt.body)
			if err.Type != tt.wantType || err.Retryable != tt.retryable || err.HTTPStatus != tt.status {
				t.Fatalf("got %+v", err)
			}
		})
	}
}

func TestIsLLMErrorUnwraps(t *testing.T) {
	base := NewLLMError(ProviderOpenAI, ErrorTypeAuthentication, "bad key")
	wrapped := fmt.Errorf("agent turn: %w", base)
	if got, ok := IsLLMError(wrapped); !ok || got != base {
		t.Fatalf("IsLLMError did not unwrap")
	}
	if !IsAuthenticationError(wrapped) || IsRetryableError(wrapped) || IsRateLimitError(wrapped) {
		t.Fatalf("classification wrong")
	}
	if _, ok := IsLLMError(errors.New("plain")); ok {
		t.Fatalf("plain error matched")
	}
}

func TestFromContextError(t *testing.T) {
	if e := FromContextError(ProviderGemini, context.DeadlineExceeded); e == nil || e.Type != ErrorTypeTimeout || !e.Retryable {
		t.Fatalf("deadline: %+v", e)
	}
	if e := FromContextError(ProviderGemini, context.Canceled); e == nil || e.Retryable {
		t.Fatalf("canceled: %+v", e)
	}
	if FromContextError(ProviderGemini, errors.New("x")) != nil {
		t.Fatalf("non-context error converted")
	}
}
