// Package retry implements the cross-cutting Retry Manager (spec §3/§5):
// a bounded in-memory FIFO of generic retry tasks, drained on a ticker,
// backing off per task. It generalizes the teacher's RetrySink
// (internal/sink/retry.go) — a synchronous "retry inline, sleep between
// attempts" decorator around one Sink call — into an asynchronous queue
// for work that can fail transiently (in this repository only the batch
// writer uses one; the RPC client retries in place), using
// other_examples/ce3dcd1e_hubsen1980-oasis-core__go-client-client.go.go's
// cenkalti/backoff/v4 schedule instead of a fixed sleep between retries.
package retry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Task is one generic unit of retryable work.
type Task[T any] struct {
	Payload       T
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time

	backoff *backoff.ExponentialBackOff
}

// Handler performs one attempt at the task's work, returning an error if
// the attempt should be retried.
type Handler[T any] func(ctx context.Context, payload T) error

// Manager owns one bounded FIFO queue of Task[T] and drains it on a
// timer, invoking Handler per due task.
type Manager[T any] struct {
	handler    Handler[T]
	maxSize    int
	maxRetries int
	maxAge     time.Duration

	backoffInitial    time.Duration
	backoffMax        time.Duration
	backoffMultiplier float64

	log *logrus.Entry

	mu    sync.Mutex
	tasks []*Task[T]

	dropped atomic.Int64
	evicted atomic.Int64

	// OnDrop, if set, is invoked with the payload of every task dropped
	// for exhausting MaxRetries or MaxAge — a dead-letter hook so callers
	// (the batch writer, routing to its poison collection) can observe a
	// task that will never succeed instead of losing it silently.
	OnDrop func(payload T)
}

// Config groups a Manager's tunables, taken directly from the
// PipelineConfig fields named in spec §6.
type Config struct {
	MaxSize           int
	MaxRetries        int
	MaxAge            time.Duration
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMultiplier float64
}

// NewManager builds a Manager around handler.
func NewManager[T any](handler Handler[T], cfg Config, log *logrus.Entry) *Manager[T] {
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	return &Manager[T]{
		handler:           handler,
		maxSize:           cfg.MaxSize,
		maxRetries:        cfg.MaxRetries,
		maxAge:            cfg.MaxAge,
		backoffInitial:    cfg.BackoffInitial,
		backoffMax:        cfg.BackoffMax,
		backoffMultiplier: cfg.BackoffMultiplier,
		log:               log,
	}
}

// Enqueue adds payload to the back of the queue, retried on the next
// drain tick. If the queue is already at capacity, the oldest task is
// evicted to make room — newer failures matter more than stale ones.
func (m *Manager[T]) Enqueue(payload T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize > 0 && len(m.tasks) >= m.maxSize {
		evicted := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.evicted.Add(1)
		m.log.WithField("queue_size", m.maxSize).Warn("retry queue full, evicting oldest task")
		_ = evicted
	}

	now := time.Now()
	m.tasks = append(m.tasks, &Task[T]{
		Payload:       payload,
		CreatedAt:     now,
		NextAttemptAt: now,
		backoff:       m.newBackoff(),
	})
}

func (m *Manager[T]) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.backoffInitial
	b.MaxInterval = m.backoffMax
	b.Multiplier = m.backoffMultiplier
	b.MaxElapsedTime = 0
	return b
}

// Run blocks, draining due tasks every tickInterval, until ctx is
// cancelled.
func (m *Manager[T]) Run(ctx context.Context, tickInterval time.Duration) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.drain(ctx)
		}
	}
}

// drain processes every task whose NextAttemptAt has passed, requeuing
// on failure with its next backoff delay, dropping tasks that exceed
// MaxRetries or MaxAge.
func (m *Manager[T]) drain(ctx context.Context) {
	now := time.Now()

	m.mu.Lock()
	var due []*Task[T]
	var pending []*Task[T]
	for _, task := range m.tasks {
		if now.Sub(task.CreatedAt) > m.maxAge {
			m.dropped.Add(1)
			m.log.WithField("attempts", task.Attempts).Warn("retry task exceeded max age, dropping")
			if m.OnDrop != nil {
				m.OnDrop(task.Payload)
			}
			continue
		}
		if !task.NextAttemptAt.After(now) {
			due = append(due, task)
		} else {
			pending = append(pending, task)
		}
	}
	m.tasks = pending
	m.mu.Unlock()

	for _, task := range due {
		err := m.handler(ctx, task.Payload)
		if err == nil {
			continue
		}

		task.Attempts++
		if m.maxRetries > 0 && task.Attempts >= m.maxRetries {
			m.dropped.Add(1)
			m.log.WithError(err).WithField("attempts", task.Attempts).Warn("retry task exhausted max retries, dropping")
			if m.OnDrop != nil {
				m.OnDrop(task.Payload)
			}
			continue
		}

		task.NextAttemptAt = now.Add(task.backoff.NextBackOff())
		m.mu.Lock()
		m.tasks = append(m.tasks, task)
		m.mu.Unlock()
	}
}

// Len reports the current queue depth, for health reporting.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// DroppedCount is the total number of tasks dropped for exceeding
// MaxRetries or MaxAge.
func (m *Manager[T]) DroppedCount() int64 { return m.dropped.Load() }

// EvictedCount is the total number of tasks evicted to make room under
// MaxSize.
func (m *Manager[T]) EvictedCount() int64 { return m.evicted.Load() }
