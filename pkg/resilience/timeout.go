package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
)

// WithTimeout runs fn under a context that expires after timeout. When the
// deadline passes first the error wraps both apperrors.ErrTimeout and
// context.DeadlineExceeded; fn keeps running until it notices ctx. A
// non-positive timeout calls fn directly.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, apperrors.ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		if err != nil && errors.Is(context.Cause(ctx), apperrors.ErrTimeout) {
			return timeoutError(name, timeout)
		}
		return err
	case <-ctx.Done():
		if !errors.Is(context.Cause(ctx), apperrors.ErrTimeout) {
			return fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
		}
		return timeoutError(name, timeout)
	}
}

func timeoutError(name string, limit time.Duration) error {
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, limit, context.DeadlineExceeded)
}
