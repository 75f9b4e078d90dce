package treestore

import (
	"context"
	"fmt"
	"time"
)

// Now is the clock used for lock expiry and timeouts. Tests may replace it.
var Now = time.Now

// NowMillis returns Now as Unix milliseconds, the unit lock rows are stored in.
func NowMillis() int64 {
	return Now().UnixMilli()
}

// ErrTimeout reports that a named operation exceeded its maximum duration or its context ended.
type ErrTimeout struct {
	Name    string
	MaxTime time.Duration
	Cause   error
}

func (e ErrTimeout) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s timed out(maxTime=%v): %v", e.Name, e.MaxTime, e.Cause)
	}
	return fmt.Sprintf("%s timed out(maxTime=%v)", e.Name, e.MaxTime)
}

func (e ErrTimeout) Unwrap() error {
	return e.Cause
}

// TimedOut returns an error if the context is done or if the elapsed time since startTime exceeds maxTime.
// A maxTime of zero or less disables the duration check.
func TimedOut(ctx context.Context, name string, startTime time.Time, maxTime time.Duration) error {
	if ctx.Err() != nil {
		return ErrTimeout{Name: name, MaxTime: maxTime, Cause: ctx.Err()}
	}
	if maxTime > 0 && Now().Sub(startTime) > maxTime {
		return ErrTimeout{Name: name, MaxTime: maxTime}
	}
	return nil
}

// Sleep blocks for the specified duration or until the context is done, whichever happens first.
func Sleep(ctx context.Context, sleepTime time.Duration) {
	if sleepTime <= 0 {
		return
	}
	sleep, cancel := context.WithTimeout(ctx, sleepTime)
	defer cancel()
	<-sleep.Done()
}
