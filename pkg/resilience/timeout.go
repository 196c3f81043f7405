package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/lemma-search/pkg/errors"
)

// WithTimeout bounds fn by timeout. A run that outlives its budget returns
// an error wrapping both apperrors.ErrTimeout and context.DeadlineExceeded,
// whether fn noticed the deadline itself or was abandoned. Cancellation of
// ctx is reported as is. fn must honour its context; a late fn keeps running
// in its goroutine and its result is dropped.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	var err error
	select {
	case err = <-done:
		if err == nil || !errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return err
		}
	case <-tctx.Done():
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%s: %w", name, cerr)
	}
	return fmt.Errorf("%w: %s after %v: %w", apperrors.ErrTimeout, name, timeout, context.DeadlineExceeded)
}
