package treestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), false},
		{NewError(NotFound, "missing", nil), false},
		{NewError(Denied, "locked", nil), false},
		{NewError(Capacity, "full", nil), false},
		{NewError(Transient, "deadlock", nil), true},
		{errors.New("connection reset"), true},
	}
	for i, c := range cases {
		if got := ShouldRetry(c.err); got != c.want {
			t.Errorf("case %d (%v): got %v, want %v", i, c.err, got, c.want)
		}
	}
}

func TestTimedOutWrapsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimedOut(ctx, "lockRows", time.Now(), 5*time.Second)
	var te ErrTimeout
	if !errors.As(err, &te) || te.Name != "lockRows" || te.MaxTime != 5*time.Second {
		t.Fatalf("unexpected error %T: %v", err, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestTimedOutChecksElapsedTime(t *testing.T) {
	ctx := context.Background()
	if err := TimedOut(ctx, "op", time.Now(), time.Hour); err != nil {
		t.Errorf("fresh start timed out: %v", err)
	}
	if err := TimedOut(ctx, "op", time.Now().Add(-time.Minute), time.Second); err == nil {
		t.Error("expected a timeout")
	}
	if err := TimedOut(ctx, "op", time.Now().Add(-time.Minute), 0); err != nil {
		t.Errorf("zero max time must disable the check: %v", err)
	}
}

func TestRetryUntilStopsOnSuccess(t *testing.T) {
	var calls int32
	err := RetryUntil(context.Background(), "op", time.Millisecond, time.Second, func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return retry.RetryableError(errors.New("busy"))
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("got %v after %d calls", err, calls)
	}
}

func TestRetryUntilReturnsPermanentError(t *testing.T) {
	want := NewError(NotFound, "gone", nil)
	err := RetryUntil(context.Background(), "op", time.Millisecond, time.Second, func(context.Context) error {
		return want
	})
	if !IsCode(err, NotFound) {
		t.Fatalf("got %v", err)
	}
}

func TestRetryUntilTimesOut(t *testing.T) {
	rowBusy := errors.New("row busy")
	var attempts int32
	done := make(chan error, 1)
	go func() {
		done <- RetryUntil(context.Background(), "lockRows", time.Millisecond, 20*time.Millisecond, func(context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return retry.RetryableError(rowBusy)
		})
	}()
	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("RetryUntil with a 20ms deadline still running after 5s (%d attempts)", atomic.LoadInt32(&attempts))
	}
	var te ErrTimeout
	if !errors.As(err, &te) || te.Name != "lockRows" {
		t.Fatalf("expected ErrTimeout, got %T: %v", err, err)
	}
	if !errors.Is(err, rowBusy) || te.Cause != rowBusy {
		t.Errorf("last attempt error not kept unwrapped: %v", te.Cause)
	}
}

func TestRunConcurrently(t *testing.T) {
	var n int32
	tasks := make([]func(context.Context) error, 10)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		}
	}
	if err := RunConcurrently(context.Background(), 3, tasks...); err != nil || n != 10 {
		t.Fatalf("got %v, ran %d", err, n)
	}
	boom := errors.New("boom")
	err := RunConcurrently(context.Background(), 0, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}
}

func TestWrapErrorKeepsExistingCode(t *testing.T) {
	inner := NewError(Denied, "locked", 42)
	err := WrapError(Unknown, fmt.Errorf("ctx: %w", inner), nil)
	if CodeOf(err) != Denied {
		t.Errorf("code %v", CodeOf(err))
	}
	if WrapError(Integrity, nil, nil) != nil {
		t.Error("nil must stay nil")
	}
	if CodeOf(WrapError(Integrity, errors.New("x"), nil)) != Integrity {
		t.Error("plain error not wrapped")
	}
	if Capacity.String() != "capacity" || ErrorCode(99).String() != "code(99)" {
		t.Error("code names")
	}
}

func TestSleepEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	Sleep(ctx, time.Minute)
	if time.Since(start) > time.Second {
		t.Error("Sleep ignored a cancelled context")
	}
	Sleep(context.Background(), 0)
}
