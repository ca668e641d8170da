package sideeffect

import "sync"

// Category selects how an effect is delivered.
type Category int

const (
	// Joined effects may be delivered during a synchronous join.
	Joined Category = iota

	// Deferred effects are never delivered inside a join flush.
	Deferred

	// Paused effects block the queue until their Unpauser fires.
	Paused

	// NoDelegate effects run whether or not a delegate is attached.
	NoDelegate
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Joined:
		return "joined"
	case Deferred:
		return "deferred"
	case Paused:
		return "paused"
	case NoDelegate:
		return "no-delegate"
	default:
		return "unknown"
	}
}

// Flags annotate an effect.
type Flags uint32

const (
	// FlagLineFeed means a line feed occurred in the batch. Consumers use it
	// to decide whether to scroll.
	FlagLineFeed Flags = 1 << iota
)

// Has reports whether all of want are set.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Payload is the data of a Joined or Deferred effect.
type Payload[D any] interface {
	Perform(d D, flags Flags)
}

// PausedPayload is the data of a Paused effect. The payload must eventually
// call u.Unpause, possibly from another goroutine.
type PausedPayload[D any] interface {
	PerformPaused(d D, flags Flags, u *Unpauser)
}

// DetachedPayload is the data of a NoDelegate effect.
type DetachedPayload interface {
	PerformDetached(flags Flags)
}

// Discarder is implemented by payloads that need to know they were dropped
// because no delegate was attached.
type Discarder interface {
	Discard()
}

// Effect is an enqueued unit of work. It is not modified after enqueue.
type Effect[D any] struct {
	Category Category
	Flags    Flags
	Payload  any

	onUnpause func()
}

// Name returns a short description used in logs.
func (e Effect[D]) Name() string {
	if n, ok := e.Payload.(interface{ EffectName() string }); ok {
		return n.EffectName()
	}
	return e.Category.String()
}

// Unpauser resumes a queue blocked on a Paused effect. Only the first call
// has any effect.
type Unpauser struct {
	once sync.Once
	fn   func()
}

func newUnpauser(fn func()) *Unpauser {
	return &Unpauser{fn: fn}
}

// Unpause resumes delivery.
func (u *Unpauser) Unpause() {
	if u == nil {
		return
	}
	u.once.Do(u.fn)
}
