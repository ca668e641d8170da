package sideeffect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	entries []string
	flags   []Flags
	unpause *Unpauser
}

type note string

func (n note) Perform(d *recorder, f Flags) {
	d.entries = append(d.entries, string(n))
	d.flags = append(d.flags, f)
}

type pauseNote string

func (n pauseNote) PerformPaused(d *recorder, _ Flags, u *Unpauser) {
	d.entries = append(d.entries, string(n))
	d.unpause = u
}

type detached struct{ ran *int }

func (p detached) PerformDetached(Flags) { *p.ran++ }

type discardable struct {
	note
	discarded *bool
}

func (d discardable) Discard() { *d.discarded = true }

type panicky struct{}

func (panicky) Perform(*recorder, Flags) { panic("boom") }

func newQueue(t *testing.T) (*Queue[*recorder], *recorder) {
	t.Helper()
	q := New[*recorder]()
	d := &recorder{}
	q.SetDelegate(d)
	return q, d
}

func TestDeliveredInEnqueueOrder(t *testing.T) {
	q, d := newQueue(t)
	q.Joined(note("a"), 0)
	q.Deferred(note("b"), 0)
	q.Joined(note("c"), FlagLineFeed)
	q.Deferred(note("d"), 0)
	q.Commit()

	assert.Equal(t, 4, q.Drain(DrainAll))
	assert.Equal(t, []string{"a", "b", "c", "d"}, d.entries)
	assert.True(t, d.flags[2].Has(FlagLineFeed))
	assert.False(t, d.flags[0].Has(FlagLineFeed))
}

func TestUncommittedEffectsInvisible(t *testing.T) {
	q, d := newQueue(t)
	q.Joined(note("a"), 0)

	assert.Equal(t, 0, q.Drain(DrainAll))
	assert.Empty(t, d.entries)
	assert.Equal(t, 1, q.Pending())

	q.Commit()
	select {
	case <-q.Ready():
	default:
		t.Fatal("commit did not signal")
	}
	q.Drain(DrainAll)
	assert.Equal(t, []string{"a"}, d.entries)
}

func TestPausedBlocksLaterEffects(t *testing.T) {
	q, d := newQueue(t)
	resumed := 0
	q.Paused(pauseNote("A"), 0, func() { resumed++ })
	q.Joined(note("B"), 0)
	q.Commit()

	assert.Equal(t, 1, q.Drain(DrainAll))
	assert.Equal(t, []string{"A"}, d.entries)
	require.NotNil(t, d.unpause)
	assert.True(t, q.Blocked())

	// A later batch is still withheld.
	q.Joined(note("C"), 0)
	q.Commit()
	assert.Equal(t, 0, q.Drain(DrainAll))

	d.unpause.Unpause()
	d.unpause.Unpause()
	assert.Equal(t, 1, resumed)
	assert.False(t, q.Blocked())

	assert.Equal(t, 2, q.Drain(DrainAll))
	assert.Equal(t, []string{"A", "B", "C"}, d.entries)
}

func TestJoinedDrainStopsAtDeferred(t *testing.T) {
	q, d := newQueue(t)
	q.Joined(note("a"), 0)
	q.Deferred(note("b"), 0)
	q.Joined(note("c"), 0)
	q.Commit()

	assert.Equal(t, 1, q.Drain(DrainJoined))
	assert.Equal(t, []string{"a"}, d.entries)

	q.Drain(DrainAll)
	assert.Equal(t, []string{"a", "b", "c"}, d.entries)
}

func signalled(q *Queue[*recorder]) bool {
	select {
	case <-q.Ready():
		return true
	default:
		return false
	}
}

func TestJoinedDrainResignalsLeftovers(t *testing.T) {
	q, d := newQueue(t)
	q.Joined(note("a"), 0)
	q.Deferred(note("refresh"), 0)
	q.Commit()
	require.True(t, signalled(q))

	assert.Equal(t, 1, q.Drain(DrainJoined))
	assert.True(t, signalled(q), "deferred effect left behind without a wakeup")

	assert.Equal(t, 1, q.Drain(DrainAll))
	assert.Equal(t, []string{"a", "refresh"}, d.entries)
	assert.False(t, signalled(q))
}

func TestNoDelegateEffectsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	q := New[*recorder](WithLogger[*recorder](zap.New(core)))

	ran := 0
	discarded := false
	resumed := false
	q.NoDelegate(detached{&ran}, 0)
	q.Joined(discardable{note("x"), &discarded}, 0)
	q.Paused(pauseNote("p"), 0, func() { resumed = true })
	q.Commit()

	assert.Equal(t, 3, q.Drain(DrainAll))
	assert.Equal(t, 1, ran)
	assert.True(t, discarded)
	assert.True(t, resumed, "paused effect without delegate must not stall the executor")
	assert.False(t, q.Blocked())
	assert.Equal(t, 2, logs.FilterMessage("side effect dropped without delegate").Len())

	st := q.Stats()
	assert.Equal(t, uint64(3), st.Enqueued)
	assert.Equal(t, uint64(1), st.Delivered)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestPanicDoesNotStopDrain(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	q := New[*recorder](WithLogger[*recorder](zap.New(core)))
	d := &recorder{}
	q.SetDelegate(d)

	q.Joined(panicky{}, 0)
	q.Joined(note("after"), 0)
	q.Commit()

	assert.Equal(t, 2, q.Drain(DrainAll))
	assert.Equal(t, []string{"after"}, d.entries)
	assert.Equal(t, uint64(1), q.Stats().Panicked)
	assert.Equal(t, 1, logs.FilterMessage("side effect panicked").Len())
}

type redrain struct{ q *Queue[*recorder] }

func (r redrain) Perform(d *recorder, _ Flags) {
	d.entries = append(d.entries, "outer")
	d.entries = append(d.entries, "nested="+string(rune('0'+r.q.Drain(DrainAll))))
}

func TestNestedDrainIsNoop(t *testing.T) {
	q, d := newQueue(t)
	q.Joined(redrain{q}, 0)
	q.Joined(note("next"), 0)
	q.Commit()

	q.Drain(DrainAll)
	assert.Equal(t, []string{"outer", "nested=0", "next"}, d.entries)
}

// swallow consumes the Ready signal the way a consumer woken mid-drain
// would, then tries to drain.
type swallow struct {
	q       *Queue[*recorder]
	drained *int
}

func (s swallow) Perform(*recorder, Flags) {
	select {
	case <-s.q.Ready():
	default:
	}
	*s.drained = s.q.Drain(DrainAll)
}

func TestRefusedDrainKeepsWakeup(t *testing.T) {
	q, _ := newQueue(t)
	drained := -1
	q.Joined(swallow{q, &drained}, 0)
	q.Commit()
	require.True(t, signalled(q))

	q.Drain(DrainAll)
	assert.Equal(t, 0, drained)
	assert.True(t, signalled(q), "refused drain consumed the only wakeup")
}

func TestNilPayloadPanics(t *testing.T) {
	q := New[*recorder]()
	assert.Panics(t, func() { q.Joined(nil, 0) })
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "no-delegate", NoDelegate.String())
	assert.Equal(t, "paused", Paused.String())
}
