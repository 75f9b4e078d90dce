package treestore

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries.
// If retries are exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(1 * time.Second)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), task); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// errDeadline stops the retry loop once maxTime elapsed. It is never retryable.
var errDeadline = errors.New("deadline reached")

// RetryUntil runs task with a constant backoff until it succeeds, returns a
// non-retryable error, or maxTime elapses. Errors the task wants retried must be
// wrapped with retry.RetryableError. On deadline it returns ErrTimeout whose Cause
// is the last task error without its retryable wrapper.
func RetryUntil(ctx context.Context, name string, backoff time.Duration, maxTime time.Duration, task func(ctx context.Context) error) error {
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	start := Now()
	var lastErr error
	b := retry.NewConstant(backoff)
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := TimedOut(ctx, name, start, maxTime); err != nil {
			var te ErrTimeout
			if errors.As(err, &te) && te.Cause == nil {
				return errDeadline
			}
			return err
		}
		err := task(ctx)
		if err != nil {
			lastErr = err
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, errDeadline) {
		cause := lastErr
		if inner := errors.Unwrap(lastErr); inner != nil {
			cause = inner
		}
		return ErrTimeout{Name: name, MaxTime: maxTime, Cause: cause}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var te ErrTimeout
		if !errors.As(err, &te) {
			err = ErrTimeout{Name: name, MaxTime: maxTime, Cause: err}
		}
	}
	return err
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known permanent failure).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch CodeOf(err) {
	case NotFound, InvalidOperation, Denied, Capacity, Integrity, Timeout:
		return false
	}
	return true
}
