package backend

import (
	"context"
	"errors"
	"time"
)

// RetryConfig controls error-only retries of a backend call.
type RetryConfig struct {
	MaxAttempts int
	// ShouldRetry reports whether err is transient. Nil retries everything
	// except cancellation. A deadline is retried while the caller's ctx is live.
	ShouldRetry func(error) bool
	// Backoff returns the wait before attempt n+1. Nil means no wait.
	Backoff func(attempt int) time.Duration
}

// Retry wraps b with deterministic, error-only retries.
func Retry(b Backend, cfg RetryConfig) Backend {
	if b == nil {
		return nil
	}
	return &retrying{next: b, cfg: cfg}
}

type retrying struct {
	next Backend
	cfg  RetryConfig
}

func (r *retrying) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	attempts := normalizedAttempts(r.cfg.MaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := r.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == attempts || !shouldRetry(ctx, r.cfg, err) {
			break
		}
		if r.cfg.Backoff != nil {
			if err := sleep(ctx, r.cfg.Backoff(attempt)); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{}, lastErr
}

// ExponentialBackoff doubles base per attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt && d < max; i++ {
			d *= 2
		}
		if d > max {
			d = max
		}
		return d
	}
}

func normalizedAttempts(maxAttempts int) int {
	if maxAttempts < 1 {
		return 1
	}
	return maxAttempts
}

func shouldRetry(ctx context.Context, cfg RetryConfig, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if cfg.ShouldRetry == nil {
		return !errors.Is(err, context.Canceled)
	}
	return cfg.ShouldRetry(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithTimeout bounds every call to b by d.
func WithTimeout(b Backend, d time.Duration) Backend {
	if d <= 0 {
		return b
	}
	return Func(func(ctx context.Context, req Request) (Response, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return b.Complete(ctx, req)
	})
}
