package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Retrier handles retry logic for LLM operations
type Retrier struct {
	config RetryConfig

	mu   sync.Mutex
	rand *rand.Rand
}

func NewRetrier(config RetryConfig) *Retrier {
	return &Retrier{
		config: config,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RetryOperation represents an operation that can be retried
type RetryOperation[T any] func(ctx context.Context, attempt int) (T, error)

// Execute runs operation until it succeeds, returns a non-retryable error,
// or the retry budget is spent.
func Execute[T any](r *Retrier, ctx context.Context, operation RetryOperation[T]) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.shouldRetry(err, attempt) {
			if attempt > 0 && attempt >= r.config.MaxRetries {
				return zero, fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
			}
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.calculateDelay(attempt, err)):
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func (r *Retrier) shouldRetry(err error, attempt int) bool {
	if attempt >= r.config.MaxRetries {
		return false
	}
	if llmErr, ok := IsLLMError(err); ok {
		return llmErr.IsRetryable()
	}
	msg := strings.ToLower(err.Error())
	for _, retryable := range r.config.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(retryable)) {
			return true
		}
	}
	return false
}

// calculateDelay is exponential backoff with +/-25% jitter, clamped to
// [InitialDelay, MaxDelay]. A provider Retry-After wins.
func (r *Retrier) calculateDelay(attempt int, err error) time.Duration {
	if llmErr, ok := IsLLMError(err); ok && llmErr.RetryAfter > 0 {
		return time.Duration(llmErr.RetryAfter) * time.Second
	}

	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt))

	r.mu.Lock()
	jitter := 0.25 * delay * (r.rand.Float64()*2 - 1)
	r.mu.Unlock()
	delay += jitter

	if ceiling := float64(r.config.MaxDelay); ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	if floor := float64(r.config.InitialDelay); delay < floor {
		delay = floor
	}
	return time.Duration(delay)
}
