package sideeffect

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DrainMode limits which effects a drain delivers.
type DrainMode int

const (
	// DrainAll delivers every committed effect until the queue is empty or
	// paused.
	DrainAll DrainMode = iota

	// DrainJoined stops at the first Deferred effect. Used when flushing
	// inside a synchronous join.
	DrainJoined
)

// Queue is the ordered side-effect queue for delegate type D.
//
// The enqueue methods and Commit are called from the mutation path. Drain
// is called from the consumer context. SetDelegate may be called from
// either.
type Queue[D any] struct {
	mu       sync.Mutex
	pending  []Effect[D]
	ready    []Effect[D]
	blocked  *Unpauser
	delegate D
	attached bool
	signal   chan struct{}
	log      *zap.Logger
	draining atomic.Bool

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panicked  atomic.Uint64
}

// Option configures a Queue.
type Option[D any] func(*Queue[D])

// WithLogger sets the logger.
func WithLogger[D any](l *zap.Logger) Option[D] {
	return func(q *Queue[D]) {
		if l != nil {
			q.log = l
		}
	}
}

// New creates an empty queue with no delegate.
func New[D any](opts ...Option[D]) *Queue[D] {
	q := &Queue[D]{
		signal: make(chan struct{}, 1),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetDelegate attaches d. Committed effects waiting for a delegate become
// deliverable on the next Drain.
func (q *Queue[D]) SetDelegate(d D) {
	q.mu.Lock()
	q.delegate = d
	q.attached = true
	q.mu.Unlock()
	q.notify()
}

// ClearDelegate detaches the delegate.
func (q *Queue[D]) ClearDelegate() {
	var zero D
	q.mu.Lock()
	q.delegate = zero
	q.attached = false
	q.mu.Unlock()
}

// Joined enqueues a Joined effect.
func (q *Queue[D]) Joined(p Payload[D], flags Flags) {
	q.enqueue(Effect[D]{Category: Joined, Flags: flags, Payload: p})
}

// Deferred enqueues a Deferred effect.
func (q *Queue[D]) Deferred(p Payload[D], flags Flags) {
	q.enqueue(Effect[D]{Category: Deferred, Flags: flags, Payload: p})
}

// Paused enqueues a Paused effect. onUnpause, if not nil, runs once when the
// effect's Unpauser fires, after the queue has been released.
func (q *Queue[D]) Paused(p PausedPayload[D], flags Flags, onUnpause func()) {
	q.enqueue(Effect[D]{Category: Paused, Flags: flags, Payload: p, onUnpause: onUnpause})
}

// NoDelegate enqueues an effect that runs even with no delegate attached.
func (q *Queue[D]) NoDelegate(p DetachedPayload, flags Flags) {
	q.enqueue(Effect[D]{Category: NoDelegate, Flags: flags, Payload: p})
}

func (q *Queue[D]) enqueue(e Effect[D]) {
	if e.Payload == nil {
		panic(fmt.Sprintf("sideeffect: nil payload for %s effect", e.Category))
	}
	q.mu.Lock()
	q.pending = append(q.pending, e)
	q.mu.Unlock()
	q.enqueued.Add(1)
}

// Commit makes every pending effect visible to Drain, in enqueue order.
// It returns the number committed.
func (q *Queue[D]) Commit() int {
	q.mu.Lock()
	n := len(q.pending)
	if n > 0 {
		q.ready = append(q.ready, q.pending...)
		q.pending = q.pending[:0]
	}
	q.mu.Unlock()

	if n > 0 {
		q.notify()
	}
	return n
}

// Pending returns the number of uncommitted effects.
func (q *Queue[D]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Len returns the number of committed effects not yet delivered.
func (q *Queue[D]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}

// Blocked reports whether delivery is halted by a Paused effect.
func (q *Queue[D]) Blocked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.blocked != nil
}

// Ready returns a channel that receives a value whenever committed effects
// may be deliverable.
func (q *Queue[D]) Ready() <-chan struct{} {
	return q.signal
}

func (q *Queue[D]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Drain delivers committed effects in order until the queue is empty,
// blocked by a Paused effect, or (for DrainJoined) at a Deferred effect.
// A Drain started while another is running returns 0 immediately. Whenever
// deliverable effects remain on return, Ready is signalled again so the
// consumer's next wakeup picks them up. It returns the number of effects
// run.
func (q *Queue[D]) Drain(mode DrainMode) int {
	if !q.draining.CompareAndSwap(false, true) {
		// The running drain may already have seen an empty queue.
		q.notify()
		return 0
	}
	defer q.draining.Store(false)

	n := 0
	for {
		q.mu.Lock()
		if q.blocked != nil || len(q.ready) == 0 {
			q.mu.Unlock()
			return n
		}
		e := q.ready[0]
		if mode == DrainJoined && e.Category == Deferred {
			q.mu.Unlock()
			q.notify()
			return n
		}
		q.ready[0] = Effect[D]{}
		q.ready = q.ready[1:]

		d, attached := q.delegate, q.attached
		var u *Unpauser
		if e.Category == Paused && attached {
			u = q.unpauserFor(e)
			q.blocked = u
		}
		q.mu.Unlock()

		q.execute(e, d, attached, u)
		n++
	}
}

func (q *Queue[D]) unpauserFor(e Effect[D]) *Unpauser {
	var u *Unpauser
	u = newUnpauser(func() {
		q.mu.Lock()
		if q.blocked == u {
			q.blocked = nil
		}
		q.mu.Unlock()
		if e.onUnpause != nil {
			e.onUnpause()
		}
		q.notify()
	})
	return u
}

func (q *Queue[D]) execute(e Effect[D], d D, attached bool, u *Unpauser) {
	defer func() {
		if r := recover(); r != nil {
			q.panicked.Add(1)
			q.log.Error("side effect panicked",
				zap.String("effect", e.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			u.Unpause()
		}
	}()

	if e.Category == NoDelegate {
		if p, ok := e.Payload.(DetachedPayload); ok {
			p.PerformDetached(e.Flags)
			q.delivered.Add(1)
		}
		return
	}

	if !attached {
		q.drop(e)
		return
	}

	switch e.Category {
	case Paused:
		p, ok := e.Payload.(PausedPayload[D])
		if !ok {
			q.dropped.Add(1)
			u.Unpause()
			return
		}
		p.PerformPaused(d, e.Flags, u)
	default:
		p, ok := e.Payload.(Payload[D])
		if !ok {
			q.drop(e)
			return
		}
		p.Perform(d, e.Flags)
	}
	q.delivered.Add(1)
}

func (q *Queue[D]) drop(e Effect[D]) {
	q.dropped.Add(1)
	q.log.Debug("side effect dropped without delegate",
		zap.String("effect", e.Name()),
		zap.Stringer("category", e.Category))
	if dis, ok := e.Payload.(Discarder); ok {
		dis.Discard()
	}
	if e.Category == Paused && e.onUnpause != nil {
		e.onUnpause()
	}
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued  uint64
	Delivered uint64
	Dropped   uint64
	Panicked  uint64
}

// Stats returns the queue counters.
func (q *Queue[D]) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
		Panicked:  q.panicked.Load(),
	}
}
