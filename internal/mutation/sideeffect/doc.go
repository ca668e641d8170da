// Package sideeffect provides the ordered queue of work handed from the
// mutation path to the consumer context.
//
// # Categories
//
// Every effect carries one of four categories:
//
//   - Joined: delivered to the delegate, and may run during a synchronous join.
//   - Deferred: delivered to the delegate, never inside a join flush.
//   - Paused: delivered with an Unpauser; nothing after it is delivered until
//     the Unpauser fires.
//   - NoDelegate: runs even when no delegate is attached.
//
// # Batches
//
// Effects enqueued on the mutation path are pending until Commit, which the
// mutation path calls once the batch's grid and tree mutations are done and
// published. Only committed effects are visible to Drain. Delivery order is
// enqueue order.
//
// # Panic Recovery
//
// A panicking payload does not stop the drain. The panic is logged with its
// stack and, for a Paused effect, the queue is unpaused.
//
// # Usage
//
//	q := sideeffect.New[Delegate](sideeffect.WithLogger(log))
//	q.SetDelegate(renderer)
//
//	// mutation path
//	q.Joined(titleChanged{title}, 0)
//	q.Commit()
//
//	// consumer
//	<-q.Ready()
//	q.Drain(sideeffect.DrainAll)
package sideeffect
