package email

import (
	"context"
	"sync"
	"time"

	"github.com/aurora-books/aurora-api/internal/logging"
)

const (
	queueSize    = 64
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
	sendTimeout  = 30 * time.Second
)

type task struct {
	description string
	run         func(ctx context.Context) error
}

// Dispatcher runs best-effort sends (welcome, goodbye and similar) off the
// request path. Tasks are retried a few times and failures are logged, never
// surfaced to the originating request.
type Dispatcher struct {
	tasks   chan task
	logger  *logging.Logger
	backoff time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(logger *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		tasks:   make(chan task, queueSize),
		logger:  logger,
		backoff: retryBackoff,
		done:    make(chan struct{}),
	}
	go d.worker()
	return d
}

// Enqueue hands a task to the worker. When the queue is full the task is
// dropped with a log line rather than blocking the request.
func (d *Dispatcher) Enqueue(description string, run func(ctx context.Context) error) {
	select {
	case d.tasks <- task{description: description, run: run}:
	default:
		d.logger.Warn("notification queue full, dropping task", "task", description)
	}
}

// Close stops accepting tasks and waits until queued tasks are drained.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.tasks)
	})
	<-d.done
}

func (d *Dispatcher) worker() {
	defer close(d.done)

	for t := range d.tasks {
		d.attempt(t)
	}
}

func (d *Dispatcher) attempt(t task) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = t.run(ctx)
		cancel()

		if err == nil {
			return
		}

		d.logger.Warn("notification task failed",
			"task", t.description,
			"attempt", attempt,
			"error", err,
		)

		if attempt < maxAttempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}

	d.logger.Error("notification task abandoned", "task", t.description, "error", err)
}
