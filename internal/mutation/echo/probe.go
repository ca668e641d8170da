// Package echo verifies that text sent by the composer is echoed back by the
// remote program before the command is considered started.
//
// A Probe is owned by the mutation path. Begin arms it with the expected echo
// and starts a bounded wait; Feed is called with printable output as it
// arrives. The wait's timer fires on its own goroutine, so expiry is routed
// back onto the mutation path through a Scheduler.
package echo

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultWindow is how long the probe waits for the echo.
const DefaultWindow = time.Second

// Outcome is the result of a probe.
type Outcome int

const (
	// Pending means the echo is still arriving.
	Pending Outcome = iota

	// Confirmed means the output matched the expected text.
	Confirmed

	// Mismatch means the output diverged from the expected text.
	Mismatch

	// Timeout means the window elapsed before a match.
	Timeout
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Mismatch:
		return "mismatch"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Fallback is what to do when a probe fails.
type Fallback int

const (
	// FallbackAdvance treats the command as started without confirmation.
	FallbackAdvance Fallback = iota

	// FallbackReset abandons the command lifecycle.
	FallbackReset
)

// String returns the fallback name.
func (f Fallback) String() string {
	switch f {
	case FallbackAdvance:
		return "advance"
	case FallbackReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ParseFallback parses "advance" or "reset".
func ParseFallback(s string) (Fallback, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "advance", "":
		return FallbackAdvance, true
	case "reset":
		return FallbackReset, true
	default:
		return FallbackAdvance, false
	}
}

// Policy selects a fallback per failure outcome.
type Policy struct {
	OnTimeout  Fallback
	OnMismatch Fallback
}

// DefaultPolicy advances on both timeout and mismatch.
func DefaultPolicy() Policy {
	return Policy{OnTimeout: FallbackAdvance, OnMismatch: FallbackAdvance}
}

// For returns the fallback for a failure outcome.
func (p Policy) For(o Outcome) Fallback {
	if o == Timeout {
		return p.OnTimeout
	}
	return p.OnMismatch
}

// Scheduler runs work on the mutation path. Schedule must be safe to call
// from any goroutine.
type Scheduler interface {
	Schedule(fn func())
}

// Delegate receives probe results on the mutation path.
type Delegate interface {
	// EchoProbeDidConfirm is called when the echo matched.
	EchoProbeDidConfirm(expected string)

	// EchoProbeDidFail is called on timeout or mismatch with the fallback
	// the policy selected.
	EchoProbeDidFail(expected string, outcome Outcome, fallback Fallback)
}

// Probe waits for a composer-sent command to be echoed.
type Probe struct {
	window    time.Duration
	policy    Policy
	scheduler Scheduler
	delegate  Delegate
	log       *zap.Logger

	active   bool
	expected string
	received strings.Builder
	// One leading space echoed before the command is tolerated.
	ignoredLeadingSpace bool
	generation          uint64
	timer               *time.Timer
}

// Option configures a Probe.
type Option func(*Probe)

// WithWindow sets the wait window.
func WithWindow(d time.Duration) Option {
	return func(p *Probe) {
		if d > 0 {
			p.window = d
		}
	}
}

// WithPolicy sets the fallback policy.
func WithPolicy(policy Policy) Option {
	return func(p *Probe) {
		p.policy = policy
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Probe) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates an idle probe.
func New(scheduler Scheduler, delegate Delegate, opts ...Option) *Probe {
	p := &Probe{
		window:    DefaultWindow,
		policy:    DefaultPolicy(),
		scheduler: scheduler,
		delegate:  delegate,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetPolicy replaces the fallback policy.
func (p *Probe) SetPolicy(policy Policy) {
	p.policy = policy
}

// SetWindow replaces the wait window for subsequent probes.
func (p *Probe) SetWindow(d time.Duration) {
	if d > 0 {
		p.window = d
	}
}

// Active reports whether a probe is waiting.
func (p *Probe) Active() bool {
	return p.active
}

// Expected returns the text the active probe is waiting for.
func (p *Probe) Expected() string {
	return p.expected
}

// Begin arms the probe for command. Line breaks are echoed as controls, not
// text, so only the command's first line is expected; the shell echoes it
// before reading the rest. A probe already in flight is cancelled. An empty
// command confirms immediately.
func (p *Probe) Begin(command string) {
	p.Cancel()

	first, _, _ := strings.Cut(command, "\n")
	p.expected = strings.TrimRight(first, "\r")
	p.received.Reset()
	p.ignoredLeadingSpace = false
	p.active = true
	p.generation++

	p.log.Debug("echo probe started",
		zap.String("expected", p.expected),
		zap.Duration("window", p.window))

	if p.expected == "" {
		p.finish(Confirmed)
		return
	}

	gen := p.generation
	p.timer = time.AfterFunc(p.window, func() {
		p.scheduler.Schedule(func() { p.expire(gen) })
	})
}

// Feed consumes printable output. It returns the probe's outcome after the
// text is considered; Pending while more output is needed.
func (p *Probe) Feed(text string) Outcome {
	if !p.active || text == "" {
		return Pending
	}

	if p.received.Len() == 0 && !p.ignoredLeadingSpace &&
		strings.HasPrefix(text, " ") && !strings.HasPrefix(p.expected, " ") {
		p.ignoredLeadingSpace = true
		text = text[1:]
		if text == "" {
			return Pending
		}
	}

	p.received.WriteString(text)
	got := p.received.String()

	switch {
	case strings.HasPrefix(got, p.expected):
		p.finish(Confirmed)
		return Confirmed
	case strings.HasPrefix(p.expected, got):
		return Pending
	default:
		p.finish(Mismatch)
		return Mismatch
	}
}

// Cancel stops an in-flight probe without reporting an outcome.
func (p *Probe) Cancel() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.active = false
}

func (p *Probe) expire(gen uint64) {
	if !p.active || gen != p.generation {
		return
	}
	p.finish(Timeout)
}

func (p *Probe) finish(outcome Outcome) {
	expected := p.expected
	p.Cancel()

	if outcome == Confirmed {
		p.log.Debug("echo confirmed", zap.String("expected", expected))
		if p.delegate != nil {
			p.delegate.EchoProbeDidConfirm(expected)
		}
		return
	}

	fallback := p.policy.For(outcome)
	p.log.Info("echo probe failed",
		zap.String("expected", expected),
		zap.Stringer("outcome", outcome),
		zap.Stringer("fallback", fallback))
	if p.delegate != nil {
		p.delegate.EchoProbeDidFail(expected, outcome, fallback)
	}
}
