package multiplayer

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startActor(t *testing.T) *actor {
	t.Helper()
	a := newActor(log.New(io.Discard), 0)
	go a.run()
	t.Cleanup(a.stop)
	return a
}

func TestActorRecoversFromPanic(t *testing.T) {
	a := startActor(t)
	ctx := context.Background()

	require.True(t, a.post(func() { panic("boom") }))

	err := a.call(ctx, func() error { panic("again") })
	assert.ErrorIs(t, err, errHandlerPanic)

	// The loop is still serving.
	ran := false
	require.NoError(t, a.call(ctx, func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestActorRunsInOrder(t *testing.T) {
	a := startActor(t)

	var got []int
	for i := 0; i < 50; i++ {
		a.post(func() { got = append(got, i) })
	}
	require.NoError(t, a.call(context.Background(), func() error { return nil }))

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestActorAfterEachRunsForEveryMessage(t *testing.T) {
	a := newActor(log.New(io.Discard), 0)
	var count int
	a.afterEach = func() { count++ }
	go a.run()
	defer a.stop()

	a.post(func() {})
	a.post(func() { panic("x") })
	var seen int
	require.NoError(t, a.call(context.Background(), func() error {
		seen = count
		return nil
	}))
	assert.Equal(t, 2, seen)
}

func TestActorScheduleAndCancel(t *testing.T) {
	a := startActor(t)

	var fired atomic.Int32
	a.schedule(10*time.Millisecond, func() { fired.Add(1) })
	cancel := a.schedule(10*time.Millisecond, func() { fired.Add(100) })
	cancel()
	cancel() // idempotent

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, a.pendingTimers())
}

func TestActorStopCancelsPendingWork(t *testing.T) {
	a := newActor(log.New(io.Discard), 0)
	go a.run()

	var fired atomic.Bool
	cancel := a.schedule(20*time.Millisecond, func() { fired.Store(true) })
	stopped := false
	a.onStop = func() { stopped = true }

	a.stop()
	a.stop()
	cancel()

	<-a.Done()
	time.Sleep(40 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.True(t, stopped)
	assert.Equal(t, 0, a.pendingTimers())

	assert.False(t, a.post(func() {}))
	assert.ErrorIs(t, a.call(context.Background(), func() error { return nil }), ErrRoomClosed)

	// Scheduling on a stopped actor is a no-op.
	a.schedule(time.Millisecond, func() { fired.Store(true) })()
	assert.ErrorIs(t, a.ctx.Err(), context.Canceled)
}

func TestActorTicks(t *testing.T) {
	a := newActor(log.New(io.Discard), 5*time.Millisecond)
	var ticks atomic.Int32
	a.onTick = func() { ticks.Add(1) }
	go a.run()
	defer a.stop()

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
