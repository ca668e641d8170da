// Package mutation serializes every change to terminal state on one
// mutation path and hands the results to a consumer.
//
// # Architecture
//
// A Coordinator owns a State: the grid, color map, marks and annotations,
// prompt lifecycle, report throttle, echo probe and trigger evaluator.
// Only the mutation path touches a State. Two things cross to the
// consumer:
//
//   - Side effects, queued in order during a batch and committed when the
//     batch ends. The consumer drains them into its Delegate.
//   - Published interval tree versions, read through Snapshot.
//
// # Batches
//
// Token batches arrive through Submit and are applied by Run (or Process)
// while holding the join lane. At the end of every batch the coordinator
// queues a refresh carrying an immutable Frame, publishes the interval
// trees and commits the queued side effects, in that order.
//
// # Joins
//
// The consumer can run a block with mutation-path guarantees through
// PerformJoined. Coordinators built with the same join.Arbiter share one
// lane. The block receives a context marking the join, and a nested
// PerformJoined made with that context on any of them runs directly.
//
// # Suspension
//
// Between Suspend and Resume tokens are held and scheduled callbacks are
// redirected. Resume replays the redirected callbacks in order, then the
// held tokens, before anything submitted later. Suspend and Resume take
// effect between batches.
//
// A Paused side effect also pauses the token executor: the tokens after the
// one that queued it are held until its Unpauser fires.
package mutation
