// Package join provides the reentrancy gate that lets the consumer context run
// a block synchronously with the mutation path's serialization guarantee.
//
// An Arbiter owns one execution lane. Every coordinator that mutates state on
// that lane holds the lane for the duration of a batch (Exec). The consumer
// context borrows the lane with Join. The block receives a context that marks
// the join; a nested Join made with that context, on the same arbiter from any
// coordinator sharing it, runs its block directly instead of acquiring the
// lane a second time.
//
// # Thread Safety
//
// Exec and Join may be called from any goroutine. A Join whose context does
// not carry the active join waits for the lane like everyone else, so two
// goroutines never hold the lane at once. Calling Join from inside a block
// with an unrelated context deadlocks; pass the block's context down.
package join

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Arbiter gates a single execution lane shared by one or more coordinators.
// The zero value is not usable; create with NewArbiter.
type Arbiter struct {
	lane   *semaphore.Weighted
	joined atomic.Bool

	// Stats
	joins  atomic.Uint64
	nested atomic.Uint64
	execs  atomic.Uint64
}

// NewArbiter creates an arbiter whose lane admits exactly one holder.
func NewArbiter() *Arbiter {
	return &Arbiter{lane: semaphore.NewWeighted(1)}
}

// Exec runs fn while holding the lane. The mutation path calls this once per
// batch. It blocks until the lane is free or ctx is done.
func (a *Arbiter) Exec(ctx context.Context, fn func()) error {
	if err := a.lane.Acquire(ctx, 1); err != nil {
		return err
	}
	defer a.lane.Release(1)

	a.execs.Add(1)
	fn()
	return nil
}

// TryExec runs fn only if the lane is immediately available.
func (a *Arbiter) TryExec(fn func()) bool {
	if !a.lane.TryAcquire(1) {
		return false
	}
	defer a.lane.Release(1)

	a.execs.Add(1)
	fn()
	return true
}

// joinKey marks a context as running inside a join on a.
type joinKey struct{ a *Arbiter }

// Join runs fn with the lane held on behalf of the consumer context.
//
// If ctx was handed out by an active join on a, fn runs immediately without
// acquiring the lane. Otherwise Join waits for the lane; ctx bounds that
// wait. fn receives a context derived from ctx that marks the join. A panic
// in fn releases the lane and clears the joined flag before propagating.
func (a *Arbiter) Join(ctx context.Context, fn func(ctx context.Context)) error {
	if ctx.Value(joinKey{a}) != nil && a.joined.Load() {
		a.nested.Add(1)
		fn(ctx)
		return nil
	}

	if err := a.lane.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", ErrJoinTimeout, err)
	}
	defer a.lane.Release(1)

	if !a.joined.CompareAndSwap(false, true) {
		panic("join: joined flag set by another holder while the lane was acquired")
	}
	defer a.joined.Store(false)

	a.joins.Add(1)
	fn(context.WithValue(ctx, joinKey{a}, true))
	return nil
}

// Joined reports whether a join is currently active.
func (a *Arbiter) Joined() bool {
	return a.joined.Load()
}

// Stats returns counters describing lane usage.
func (a *Arbiter) Stats() Stats {
	return Stats{
		Joins:  a.joins.Load(),
		Nested: a.nested.Load(),
		Execs:  a.execs.Load(),
	}
}

// Stats contains arbiter counters.
type Stats struct {
	// Joins is the number of top-level joins that acquired the lane.
	Joins uint64

	// Nested is the number of joins made from inside an active join.
	Nested uint64

	// Execs is the number of mutation-path lane holds.
	Execs uint64
}
