package tools

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/KamdynS/agentflows/llm"
)

// Reason classifies a tool failure so callers can decide to retry, log or
// degrade.
type Reason string

const (
	ReasonTransient    Reason = "transient"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonAuth         Reason = "auth"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonNotFound     Reason = "not_found"
	ReasonUpstream     Reason = "upstream"
	ReasonCanceled     Reason = "canceled"
	ReasonUnknown      Reason = "unknown"
)

// Retryable reports whether the same call may succeed later.
func (r Reason) Retryable() bool {
	return r == ReasonTransient || r == ReasonRateLimited
}

var (
	ErrInvalidInput = errors.New("invalid tool input")
	ErrToolNotFound = errors.New("tool not found")
)

// Error is a classified tool failure.
type Error struct {
	Tool   string
	Reason Reason
	Cause  error
	// Fallback is what the model sees in place of output.
	Fallback string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Reason, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Result is the outcome of Registry.Invoke: either Output or Err is set.
type Result struct {
	Tool   string
	Output string
	Err    *Error
}

func (r Result) OK() bool { return r.Err == nil }

// Text is the string fed back to the model.
func (r Result) Text() string {
	if r.Err == nil {
		return r.Output
	}
	return r.Err.Fallback
}

// HTTPStatusError reports a non-2xx response from an upstream API.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Classify maps an error to a Reason.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Reason
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTransient
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, ErrToolNotFound):
		return ReasonNotFound
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}
	if llmErr, ok := llm.IsLLMError(err); ok {
		switch llmErr.Type {
		case llm.ErrorTypeRateLimit, llm.ErrorTypeInsufficientQuota:
			return ReasonRateLimited
		case llm.ErrorTypeAuthentication, llm.ErrorTypePermission:
			return ReasonAuth
		case llm.ErrorTypeInvalidRequest, llm.ErrorTypeContextLength:
			return ReasonInvalidInput
		case llm.ErrorTypeNotFound, llm.ErrorTypeInvalidModel:
			return ReasonNotFound
		case llm.ErrorTypeServerError, llm.ErrorTypeTimeout, llm.ErrorTypeConnectionError:
			return ReasonTransient
		}
		return ReasonUpstream
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonTransient
	}
	return ReasonUnknown
}

func classifyStatus(code int) Reason {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonAuth
	case code == http.StatusNotFound:
		return ReasonNotFound
	case code == http.StatusTooManyRequests:
		return ReasonRateLimited
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ReasonInvalidInput
	case code == http.StatusRequestTimeout || code >= 500:
		return ReasonTransient
	}
	return ReasonUpstream
}

// NewError classifies err and renders the fallback text for tool.
func NewError(tool Tool, name string, err error) *Error {
	e := &Error{Tool: name, Reason: Classify(err), Cause: err}
	if f, ok := tool.(FailureFormatter); ok {
		e.Fallback = f.FormatFailure(err)
	} else {
		e.Fallback = fmt.Sprintf("Error: %s failed: %v", name, err)
	}
	return e
}
