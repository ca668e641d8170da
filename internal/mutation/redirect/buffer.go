// Package redirect captures callbacks issued while token application is
// suspended and replays them once it resumes.
package redirect

import "sync"

// Action is a captured callback. It receives the state it was redirected to.
type Action[S any] func(S)

// Buffer holds redirected actions in issuance order.
// Add is safe from any goroutine; Drain is meant for the owner of S.
type Buffer[S any] struct {
	mu      sync.Mutex
	actions []Action[S]

	executed uint64
}

// New creates an empty buffer.
func New[S any]() *Buffer[S] {
	return &Buffer[S]{}
}

// Add appends an action. Nil actions are ignored.
func (b *Buffer[S]) Add(action Action[S]) {
	if action == nil {
		return
	}
	b.mu.Lock()
	b.actions = append(b.actions, action)
	b.mu.Unlock()
}

// Len returns the number of actions waiting to run.
func (b *Buffer[S]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.actions)
}

// Drain runs every captured action exactly once, in the order added, and
// returns how many ran. Actions added while draining run after the ones that
// were already captured, within the same call.
func (b *Buffer[S]) Drain(state S) int {
	ran := 0
	for {
		b.mu.Lock()
		batch := b.actions
		b.actions = nil
		b.mu.Unlock()

		if len(batch) == 0 {
			break
		}
		for _, action := range batch {
			action(state)
			ran++
		}
	}

	b.mu.Lock()
	b.executed += uint64(ran)
	b.mu.Unlock()
	return ran
}

// Executed returns the total number of actions run by Drain.
func (b *Buffer[S]) Executed() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.executed
}
