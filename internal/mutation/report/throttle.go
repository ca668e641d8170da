// Package report bounds the number of device status report round trips that
// may be outstanding at once.
package report

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultCeiling is the number of in-flight reports tolerated without the
// allow-next gate being armed.
const DefaultCeiling = 10

// Throttle counts in-flight reports. WillSend is called on the mutation path
// when a report is queued; DidSend is called on the consumer context once the
// report has been written. The count never goes negative.
type Throttle struct {
	pending   atomic.Int32
	allowNext atomic.Bool
	ceiling   int32

	suppressed atomic.Uint64
	underflows atomic.Uint64

	log *zap.Logger
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithCeiling sets the in-flight ceiling. Values below one are ignored.
func WithCeiling(n int) Option {
	return func(t *Throttle) {
		if n > 0 {
			t.ceiling = int32(n)
		}
	}
}

// WithLogger sets the logger used for underflow and suppression messages.
func WithLogger(l *zap.Logger) Option {
	return func(t *Throttle) {
		if l != nil {
			t.log = l
		}
	}
}

// New creates a throttle with no reports in flight.
func New(opts ...Option) *Throttle {
	t := &Throttle{
		ceiling: DefaultCeiling,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CanSend reports whether a new report may be issued.
func (t *Throttle) CanSend() bool {
	return t.allowNext.Load() || t.pending.Load() < t.ceiling
}

// WillSend records a report about to be sent and clears the allow-next gate.
func (t *Throttle) WillSend() {
	t.pending.Add(1)
	t.allowNext.Store(false)
}

// TryBegin calls WillSend if CanSend allows it. It returns false, and counts
// the suppression, otherwise.
func (t *Throttle) TryBegin() bool {
	if !t.CanSend() {
		n := t.suppressed.Add(1)
		t.log.Debug("report suppressed",
			zap.Int32("pending", t.pending.Load()),
			zap.Uint64("suppressed", n))
		return false
	}
	t.WillSend()
	return true
}

// DidSend records that a report finished. A call without a matching WillSend
// is logged and ignored; it returns false in that case.
func (t *Throttle) DidSend() bool {
	for {
		cur := t.pending.Load()
		if cur <= 0 {
			t.underflows.Add(1)
			t.log.Warn("didSendReport without a pending report")
			return false
		}
		if t.pending.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// AllowNext arms the gate so the next report is sent regardless of the
// ceiling. Hosts call this on user input.
func (t *Throttle) AllowNext() {
	t.allowNext.Store(true)
}

// AllowNextArmed reports whether the allow-next gate is set.
func (t *Throttle) AllowNextArmed() bool {
	return t.allowNext.Load()
}

// Pending returns the number of reports in flight.
func (t *Throttle) Pending() int {
	return int(t.pending.Load())
}

// Ceiling returns the configured ceiling.
func (t *Throttle) Ceiling() int {
	return int(t.ceiling)
}

// Stats returns throttle counters.
func (t *Throttle) Stats() Stats {
	return Stats{
		Pending:    int(t.pending.Load()),
		Suppressed: t.suppressed.Load(),
		Underflows: t.underflows.Load(),
	}
}

// Stats contains throttle counters.
type Stats struct {
	Pending    int
	Suppressed uint64
	Underflows uint64
}
