package email

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-books/aurora-api/internal/logging"
)

// newTestDispatcher builds a dispatcher with a millisecond backoff so retry
// tests do not sleep for real.
func newTestDispatcher() *Dispatcher {
	d := &Dispatcher{
		tasks:   make(chan task, queueSize),
		logger:  logging.NewLogger(true),
		backoff: time.Millisecond,
		done:    make(chan struct{}),
	}
	go d.worker()
	return d
}

func TestDispatcher_RunsTask(t *testing.T) {
	d := newTestDispatcher()

	ran := make(chan struct{})
	d.Enqueue("test task", func(ctx context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task was never run")
	}

	d.Close()
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := newTestDispatcher()

	var attempts atomic.Int32
	done := make(chan struct{})
	d.Enqueue("flaky task", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}

	d.Close()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	d := newTestDispatcher()

	var attempts atomic.Int32
	d.Enqueue("doomed task", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent failure")
	})

	d.Close()
	assert.Equal(t, int32(maxAttempts), attempts.Load())
}

func TestDispatcher_CloseDrainsQueue(t *testing.T) {
	d := newTestDispatcher()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		d.Enqueue("drain task", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	d.Close()

	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}
}

func TestDispatcher_EnqueueNeverBlocksWhenFull(t *testing.T) {
	// No worker: the queue fills up and stays full.
	d := &Dispatcher{
		tasks:   make(chan task, 2),
		logger:  logging.NewLogger(true),
		backoff: time.Millisecond,
		done:    make(chan struct{}),
	}

	for i := 0; i < 5; i++ {
		d.Enqueue("overflow task", func(ctx context.Context) error { return nil })
	}

	assert.Len(t, d.tasks, 2)
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := newTestDispatcher()

	d.Close()
	assert.NotPanics(t, func() { d.Close() })
}

func TestDispatcher_TaskContextHasDeadline(t *testing.T) {
	d := newTestDispatcher()

	deadlines := make(chan bool, 1)
	d.Enqueue("deadline task", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadlines <- ok
		return nil
	})

	d.Close()

	select {
	case ok := <-deadlines:
		assert.True(t, ok, "task context should carry a send timeout")
	default:
		t.Fatal("task was never run")
	}
}
