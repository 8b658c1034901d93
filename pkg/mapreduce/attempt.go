package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/hvision/pkg/errs"
)

// ErrStalled is the cause of an attempt that stopped reporting progress.
var ErrStalled = errors.New("task stalled")

// permanent reports whether retrying cannot change the outcome.
func permanent(err error) bool {
	return errors.Is(err, errs.ErrConfiguration) ||
		errors.Is(err, errs.ErrResourceUnavailable) ||
		errors.Is(err, errs.ErrInsufficientTrainingData) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// watch runs fn under stall detection. fn must call tick whenever it makes
// progress. When fn stalls, watch cancels its context and returns ErrStalled
// without waiting, together with a channel that yields fn's eventual result
// so the caller can release resources fn still holds.
func watch(ctx context.Context, stall time.Duration, fn func(ctx context.Context, tick func()) error) (<-chan error, error) {
	actx, cancel := context.WithCancelCause(ctx)

	var last atomic.Int64
	last.Store(time.Now().UnixNano())
	tick := func() { last.Store(time.Now().UnixNano()) }

	done := make(chan error, 1)
	go func() {
		defer cancel(nil)
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panicked: %v", r)
			}
		}()
		done <- fn(actx, tick)
	}()

	if stall < 0 {
		return nil, <-done
	}

	interval := max(stall/4, time.Millisecond)
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case err := <-done:
			return nil, err
		case <-t.C:
			if time.Since(time.Unix(0, last.Load())) > stall {
				cancel(ErrStalled)
				return done, ErrStalled
			}
		}
	}
}
