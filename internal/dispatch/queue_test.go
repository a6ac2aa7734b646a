package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"capbench/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startQueue(t *testing.T) (*Queue, context.CancelFunc) {
	t.Helper()

	q := NewQueue(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-q.Done()
	})
	return q, cancel
}

func TestQueueRunsInOrder(t *testing.T) {
	q, _ := startQueue(t)

	var order []int
	var active atomic.Int32
	var overlap atomic.Bool
	finished := make(chan struct{})

	for i := 0; i < 100; i++ {
		i := i
		require.True(t, q.TryEnqueue(func() {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			order = append(order, i)
			active.Add(-1)
			if i == 99 {
				close(finished)
			}
		}))
	}

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queued work")
	}

	assert.False(t, overlap.Load())
	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestQueueShutdownRunsTeardown(t *testing.T) {
	q := NewQueue(logger.Nop())
	go q.Run(context.Background())

	var ran atomic.Int32
	q.OnTeardown(func() { ran.Add(1) })
	unregister := q.OnTeardown(func() { ran.Add(10) })
	unregister()

	q.Shutdown()
	q.Shutdown()

	select {
	case <-q.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("queue did not tear down")
	}

	assert.Equal(t, int32(1), ran.Load())
	assert.False(t, q.TryEnqueue(func() {}))
}

func TestTimerTicksOnQueue(t *testing.T) {
	q, _ := startQueue(t)

	ticks := make(chan int, 10)
	var n int
	timer := q.NewTimer(5*time.Millisecond, func(tm *Timer) {
		n++
		ticks <- n
		if n == 3 {
			tm.Stop()
		}
	})
	timer.Start()
	timer.Start()

	for want := 1; want <= 3; want++ {
		select {
		case got := <-ticks:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d never arrived", want)
		}
	}

	assert.False(t, timer.Running())

	select {
	case extra := <-ticks:
		t.Fatalf("unexpected tick %d after stop", extra)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestTeardownStopsTimers(t *testing.T) {
	q := NewQueue(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	timer := q.NewTimer(time.Millisecond, func(*Timer) {})
	timer.Start()
	require.True(t, timer.Running())

	cancel()
	<-q.Done()

	assert.False(t, timer.Running())
}
