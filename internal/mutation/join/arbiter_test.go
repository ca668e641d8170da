package join

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestJoinRunsBlock(t *testing.T) {
	a := NewArbiter()
	ran := false

	err := a.Join(context.Background(), func(context.Context) {
		ran = true
		assert.True(t, a.Joined())
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, a.Joined())
	assert.Equal(t, uint64(1), a.Stats().Joins)
}

func TestNestedJoinDoesNotDeadlock(t *testing.T) {
	a := NewArbiter()
	depth := 0

	err := a.Join(context.Background(), func(ctx context.Context) {
		depth++
		err := a.Join(ctx, func(ctx context.Context) {
			depth++
			err := a.Join(ctx, func(context.Context) { depth++ })
			assert.NoError(t, err)
		})
		assert.NoError(t, err)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, depth)
	stats := a.Stats()
	assert.Equal(t, uint64(1), stats.Joins)
	assert.Equal(t, uint64(2), stats.Nested)
}

func TestJoinSharedAcrossHolders(t *testing.T) {
	// Two logical coordinators sharing one arbiter: a join on the first
	// makes a join on the second reentrant.
	shared := NewArbiter()
	first, second := shared, shared

	var order []string
	err := first.Join(context.Background(), func(ctx context.Context) {
		order = append(order, "first")
		_ = second.Join(ctx, func(context.Context) {
			order = append(order, "second")
		})
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestJoinWaitsForExec(t *testing.T) {
	a := NewArbiter()
	release := make(chan struct{})
	holding := make(chan struct{})
	execDone := make(chan struct{})

	go func() {
		defer close(execDone)
		_ = a.Exec(context.Background(), func() {
			close(holding)
			<-release
		})
	}()
	<-holding

	joined := make(chan struct{})
	go func() {
		_ = a.Join(context.Background(), func(context.Context) {})
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("join acquired the lane while a batch was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-execDone
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("join never acquired the lane")
	}
}

func TestConcurrentJoinsSerialize(t *testing.T) {
	a := NewArbiter()
	var inside, maxInside atomic.Int32
	enter := func() {
		n := inside.Add(1)
		for {
			m := maxInside.Load()
			if n <= m || maxInside.CompareAndSwap(m, n) {
				break
			}
		}
	}

	release := make(chan struct{})
	holding := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- a.Join(context.Background(), func(context.Context) {
			enter()
			close(holding)
			<-release
			inside.Add(-1)
		})
	}()
	<-holding

	// A join from another goroutine is not nested, even though the
	// arbiter is joined.
	secondRan := make(chan struct{})
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- a.Join(context.Background(), func(context.Context) {
			enter()
			close(secondRan)
			inside.Add(-1)
		})
	}()

	select {
	case <-secondRan:
		t.Fatal("second join ran while the first held the lane")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.Equal(t, int32(1), maxInside.Load())

	stats := a.Stats()
	assert.Equal(t, uint64(2), stats.Joins)
	assert.Zero(t, stats.Nested)
}

func TestStaleJoinContextIsNotNested(t *testing.T) {
	a := NewArbiter()
	var leaked context.Context
	require.NoError(t, a.Join(context.Background(), func(ctx context.Context) { leaked = ctx }))

	require.NoError(t, a.Join(leaked, func(context.Context) {
		assert.True(t, a.Joined())
	}))
	assert.Equal(t, uint64(2), a.Stats().Joins)
	assert.Zero(t, a.Stats().Nested)
}

func TestJoinBoundedByContext(t *testing.T) {
	a := NewArbiter()
	release := make(chan struct{})
	holding := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = a.Exec(context.Background(), func() {
			close(holding)
			<-release
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := a.Join(ctx, func(context.Context) { t.Error("block ran without the lane") })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJoinTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	<-done
}

func TestJoinPanicReleasesLane(t *testing.T) {
	a := NewArbiter()

	assert.Panics(t, func() {
		_ = a.Join(context.Background(), func(context.Context) { panic("boom") })
	})
	assert.False(t, a.Joined())
	assert.True(t, a.TryExec(func() {}))
}

func TestTryExec(t *testing.T) {
	a := NewArbiter()

	ok := a.TryExec(func() {
		assert.False(t, a.TryExec(func() { t.Error("second holder ran") }))
	})
	assert.True(t, ok)
	assert.Equal(t, uint64(1), a.Stats().Execs)
}
