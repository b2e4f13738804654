// Package yield gives long row loops a cooperative checkpoint: every Interval rows the
// loop hands the processor back to the scheduler and observes cancellation.
package yield

import (
	"context"
	"runtime"
)

const Interval = 20000

// Every returns ctx.Err() on every Interval-th row and nil otherwise.
func Every(ctx context.Context, i int) error {
	if i == 0 || i%Interval != 0 {
		return nil
	}
	runtime.Gosched()
	return ctx.Err()
}
