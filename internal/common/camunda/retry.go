package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "hajj-assistant/internal/common/errors"
)

// RetryConfig bounds how often a gateway command is re-sent after a
// transient failure.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// AttemptTimeout caps a single send. Zero leaves the caller's deadline.
	AttemptTimeout time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   2 * time.Second,
}

func (r *RetryConfig) backoff(attempt int) time.Duration {
	d := r.BaseDelay
	for i := 0; i < attempt && d < r.MaxDelay; i++ {
		d *= 2
	}
	if d <= 0 || d > r.MaxDelay {
		return r.MaxDelay
	}
	return d
}

// ExecuteWithRetry runs send until it succeeds, returns a permanent error,
// or MaxRetries re-sends are spent. The final error is a StandardError with
// code TIMEOUT_ERROR or EXTERNAL_SERVICE_ERROR.
func ExecuteWithRetry(ctx context.Context, retry *RetryConfig, operation string, send func(context.Context) error) error {
	if retry == nil {
		retry = DefaultRetryConfig
	}

	for attempt := 0; ; attempt++ {
		err := sendOnce(ctx, retry.AttemptTimeout, send)
		if err == nil {
			return nil
		}
		if !transientGatewayError(err) || attempt >= retry.MaxRetries {
			return gatewayError(operation, attempt+1, err)
		}

		t := time.NewTimer(retry.backoff(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return gatewayError(operation, attempt+1, ctx.Err())
		}
	}
}

func sendOnce(ctx context.Context, timeout time.Duration, send func(context.Context) error) error {
	if timeout <= 0 {
		return send(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return send(ctx)
}

var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"unavailable",
	"unreachable",
	"broken pipe",
	"deadline exceeded",
	"resource_exhausted",
	"resource exhausted",
}

// transientGatewayError matches the gRPC failures a re-send can cure. A
// cancelled caller context is never transient.
func transientGatewayError(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func gatewayError(operation string, attempts int, err error) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", operation, attempts, err)
	msg := strings.ToLower(err.Error())
	if stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded") {
		return apperrors.NewTimeoutError("zeebe", wrapped)
	}
	return apperrors.NewExternalServiceError("zeebe", wrapped)
}
