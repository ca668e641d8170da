package renderer

import (
	"context"

	"github.com/gdamore/tcell/v2"
)

// Source is the side of a coordinator the consumer drains.
type Source interface {
	Ready() <-chan struct{}
	PerformSideEffects() int
}

// Consume delivers side effects from src whenever it signals, until ctx is
// done.
func Consume(ctx context.Context, src Source) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-src.Ready():
			src.PerformSideEffects()
		}
	}
}

// PollEvents feeds screen events to HandleEvent until the screen is
// finalized or ctx is done. Callers finalize the screen to unblock it.
func (r *Renderer) PollEvents(ctx context.Context, host Host) error {
	for {
		ev := r.screen.PollEvent()
		if ev == nil {
			return ctx.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := ev.(*tcell.EventInterrupt); ok {
			continue
		}
		r.HandleEvent(ev, host)
	}
}
