// Package joiner coalesces repeated notifications of the same logical change.
//
// The producer calls Set for every update. Only the call that arms the joiner
// (the first since the last Take) needs to schedule a notification; later
// updates overwrite the value the notification will deliver. The consumer
// calls Take when the notification runs and receives the latest value.
package joiner

import "sync"

// Joiner holds the most recent value of a coalesced change.
type Joiner[T any] struct {
	mu      sync.Mutex
	value   T
	pending bool

	sets  uint64
	takes uint64
}

// New creates a disarmed joiner.
func New[T any]() *Joiner[T] {
	return &Joiner[T]{}
}

// Set records v as the latest value. It returns true if this call armed the
// joiner, meaning the caller must schedule exactly one notification.
func (j *Joiner[T]) Set(v T) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.value = v
	j.sets++
	if j.pending {
		return false
	}
	j.pending = true
	return true
}

// Take returns the latest value and disarms the joiner. The second result is
// false if nothing was pending.
func (j *Joiner[T]) Take() (T, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.pending {
		var zero T
		return zero, false
	}
	j.pending = false
	j.takes++
	return j.value, true
}

// Pending reports whether a notification is outstanding.
func (j *Joiner[T]) Pending() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pending
}

// Peek returns the latest value without disarming.
func (j *Joiner[T]) Peek() T {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.value
}

// Counts returns the number of Set calls and delivered Takes.
func (j *Joiner[T]) Counts() (sets, takes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sets, j.takes
}
