package helpers

import (
	"context"
	"fmt"
	"time"

	"chart-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ChartObserverError struct {
	Message string
	Cause   error
}

func (e *ChartObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ChartObserverError) Unwrap() error {
	return e.Cause
}

type ConfigurationError struct{ ChartObserverError }

// -----------------------------------------------------------------------------

// FetchReason classifies a failed snapshot request.
type FetchReason string

const (
	FetchReasonNetwork FetchReason = "network"
	FetchReasonStatus  FetchReason = "status"
	FetchReasonPayload FetchReason = "payload"
	FetchReasonBackend FetchReason = "backend"
)

// FetchError reports a snapshot request that failed or returned a malformed payload.
type FetchError struct {
	ChartObserverError
	Reason     FetchReason
	StatusCode int
}

func NewFetchError(reason FetchReason, statusCode int, message string, cause error) *FetchError {
	return &FetchError{
		ChartObserverError: ChartObserverError{Message: message, Cause: cause},
		Reason:             reason,
		StatusCode:         statusCode,
	}
}

// -----------------------------------------------------------------------------

// DecodeError reports a stream frame that could not be decoded.
type DecodeError struct {
	ChartObserverError
	Frame string
}

const maxFrameExcerpt = 128

func NewDecodeError(frame []byte, cause error) *DecodeError {
	excerpt := string(frame)
	if len(excerpt) > maxFrameExcerpt {
		excerpt = excerpt[:maxFrameExcerpt] + "..."
	}
	return &DecodeError{
		ChartObserverError: ChartObserverError{Message: "undecodable stream frame", Cause: cause},
		Frame:              excerpt,
	}
}

// -----------------------------------------------------------------------------

// ConnectionLost reports an unexpected closure of the stream session.
type ConnectionLost struct {
	ChartObserverError
	Endpoint string
}

func NewConnectionLost(endpoint string, cause error) *ConnectionLost {
	return &ConnectionLost{
		ChartObserverError: ChartObserverError{Message: fmt.Sprintf("stream session to %s lost", endpoint), Cause: cause},
		Endpoint:           endpoint,
	}
}

// -----------------------------------------------------------------------------
// Backoff
// -----------------------------------------------------------------------------

// Backoff computes exponential delays: Base * 2^attempt, capped at Max.
type Backoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int // 0 = unlimited
}

// Delay returns the wait before the given 0-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// Exhausted reports whether attempt exceeds MaxAttempts.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	backoff := Backoff{Base: baseDelay}
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := backoff.Delay(attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}
