// Package countdown runs the pre-practice countdown.
package countdown

import (
	"context"
	"time"
)

// DefaultSeconds is the countdown length when none is configured
const DefaultSeconds = 3

// Clock abstracts timers for tests
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Run calls tick with seconds, seconds-1, ..., 0 one second apart.
// Zero means go.
func Run(ctx context.Context, seconds int, tick func(remaining int)) error {
	return RunWithClock(ctx, realClock{}, seconds, tick)
}

// RunWithClock is Run with an injected clock
func RunWithClock(ctx context.Context, clock Clock, seconds int, tick func(remaining int)) error {
	if seconds < 0 {
		seconds = 0
	}

	for remaining := seconds; ; remaining-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		tick(remaining)
		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(time.Second):
		}
	}
}
