// Package renderer displays a mutation.Coordinator's output on a tcell screen.
//
// # Architecture
//
// A Renderer is the coordinator's Delegate and a MarkObserver. Side effects
// delivered by PerformSideEffects update its copy of the display state and
// redraw. The layout is a mark gutter on the left, the terminal grid, and a
// one-row status line at the bottom.
//
//	▸ $ make
//	  ok
//	  [RunningCommand] ~/src | make: 2 lines
//
// Consume runs the consumer loop: it waits for Ready and drains effects.
// HandleEvent turns tcell input into bytes for the shell.
//
// # Alerts
//
// Alert effects pause the effect queue. The renderer shows the message on
// the status line and releases the queue when the user presses Enter or
// Escape, or when Dismiss is called.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Delegate methods are called from
// the consumer goroutine; HandleEvent from the input goroutine.
package renderer
