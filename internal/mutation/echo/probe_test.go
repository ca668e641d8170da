package echo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// chanScheduler hands scheduled work to the test goroutine, which plays the
// mutation path.
type chanScheduler chan func()

func (c chanScheduler) Schedule(fn func()) { c <- fn }

type result struct {
	expected string
	outcome  Outcome
	fallback Fallback
}

type recordingDelegate struct {
	results []result
}

func (d *recordingDelegate) EchoProbeDidConfirm(expected string) {
	d.results = append(d.results, result{expected: expected, outcome: Confirmed})
}

func (d *recordingDelegate) EchoProbeDidFail(expected string, o Outcome, f Fallback) {
	d.results = append(d.results, result{expected, o, f})
}

func newProbe(t *testing.T, opts ...Option) (*Probe, *recordingDelegate, chanScheduler) {
	t.Helper()
	sched := make(chanScheduler, 4)
	d := &recordingDelegate{}
	return New(sched, d, opts...), d, sched
}

func TestEchoConfirmedInPieces(t *testing.T) {
	p, d, _ := newProbe(t)
	p.Begin("ls\n")
	require.True(t, p.Active())
	assert.Equal(t, "ls", p.Expected())

	assert.Equal(t, Pending, p.Feed("l"))
	assert.Equal(t, Confirmed, p.Feed("s"))
	assert.False(t, p.Active())
	assert.Equal(t, []result{{expected: "ls", outcome: Confirmed}}, d.results)

	// Output after the probe finished is ignored.
	assert.Equal(t, Pending, p.Feed("more"))
	assert.Len(t, d.results, 1)
}

func TestEchoMultiLineCommandExpectsFirstLine(t *testing.T) {
	p, d, _ := newProbe(t)
	p.Begin("for f in *.go\r\ndo wc -l $f\r\ndone\r")
	assert.Equal(t, "for f in *.go", p.Expected())

	assert.Equal(t, Pending, p.Feed("for f in "))
	assert.Equal(t, Confirmed, p.Feed("*.go"))
	assert.Equal(t, []result{{expected: "for f in *.go", outcome: Confirmed}}, d.results)
}

func TestEchoIgnoresOneLeadingSpace(t *testing.T) {
	p, d, _ := newProbe(t)
	p.Begin("ls")

	assert.Equal(t, Confirmed, p.Feed(" ls"))
	require.Len(t, d.results, 1)
	assert.Equal(t, Confirmed, d.results[0].outcome)
}

func TestEchoMismatchUsesPolicy(t *testing.T) {
	p, d, _ := newProbe(t, WithPolicy(Policy{OnTimeout: FallbackAdvance, OnMismatch: FallbackReset}))
	p.Begin("ls")

	assert.Equal(t, Mismatch, p.Feed("password: "))
	assert.False(t, p.Active())
	assert.Equal(t, []result{{"ls", Mismatch, FallbackReset}}, d.results)
}

func TestEchoTimeoutRoutesThroughScheduler(t *testing.T) {
	p, d, sched := newProbe(t, WithWindow(10*time.Millisecond))
	p.Begin("ls\n")

	var fn func()
	select {
	case fn = <-sched:
	case <-time.After(time.Second):
		t.Fatal("timeout never scheduled")
	}
	assert.Empty(t, d.results, "expiry must wait for the mutation path")

	fn()
	assert.Equal(t, []result{{"ls", Timeout, FallbackAdvance}}, d.results)
	assert.False(t, p.Active())
}

func TestStaleTimeoutIgnored(t *testing.T) {
	p, d, sched := newProbe(t, WithWindow(10*time.Millisecond))
	p.Begin("ls")

	// The first timer fires after the probe already confirmed.
	assert.Equal(t, Confirmed, p.Feed("ls"))
	select {
	case fn := <-sched:
		fn()
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, d.results, 1)
	assert.Equal(t, Confirmed, d.results[0].outcome)
}

func TestRestartCancelsPreviousProbe(t *testing.T) {
	p, d, sched := newProbe(t, WithWindow(20*time.Millisecond))
	p.Begin("first")
	p.Begin("second")

	fn := <-sched
	fn()
	require.Len(t, d.results, 1)
	assert.Equal(t, "second", d.results[0].expected)
	assert.Equal(t, Timeout, d.results[0].outcome)

	select {
	case <-sched:
		t.Fatal("cancelled probe's timer still fired")
	case <-time.After(40 * time.Millisecond):
	}
}

func TestEmptyCommandConfirmsImmediately(t *testing.T) {
	p, d, _ := newProbe(t)
	p.Begin("\r\n")
	assert.False(t, p.Active())
	assert.Equal(t, []result{{expected: "", outcome: Confirmed}}, d.results)
}

func TestParseFallback(t *testing.T) {
	tests := []struct {
		in   string
		want Fallback
		ok   bool
	}{
		{"advance", FallbackAdvance, true},
		{"", FallbackAdvance, true},
		{" Reset ", FallbackReset, true},
		{"explode", FallbackAdvance, false},
	}
	for _, tt := range tests {
		got, ok := ParseFallback(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestPolicyFor(t *testing.T) {
	p := Policy{OnTimeout: FallbackReset, OnMismatch: FallbackAdvance}
	assert.Equal(t, FallbackReset, p.For(Timeout))
	assert.Equal(t, FallbackAdvance, p.For(Mismatch))
}
