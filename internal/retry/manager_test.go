package retry

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestManager_Enqueue_EvictsOldestWhenFull(t *testing.T) {
	m := NewManager[int](func(ctx context.Context, p int) error { return nil }, Config{
		MaxSize:    2,
		MaxRetries: 5,
	}, testLogger())

	m.Enqueue(1)
	m.Enqueue(2)
	m.Enqueue(3)

	require.Equal(t, 2, m.Len())
	require.Equal(t, int64(1), m.EvictedCount())
}

func TestManager_Drain_SucceedsAndRemovesTask(t *testing.T) {
	var calls atomic.Int64
	m := NewManager[string](func(ctx context.Context, p string) error {
		calls.Add(1)
		return nil
	}, Config{MaxSize: 10, MaxRetries: 3}, testLogger())

	m.Enqueue("payload")
	m.drain(context.Background())

	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 0, m.Len())
}

func TestManager_Drain_RequeuesOnFailureUntilMaxRetries(t *testing.T) {
	var calls atomic.Int64
	m := NewManager[string](func(ctx context.Context, p string) error {
		calls.Add(1)
		return errors.New("still failing")
	}, Config{MaxSize: 10, MaxRetries: 2, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, testLogger())

	m.Enqueue("payload")

	m.drain(context.Background())
	require.Equal(t, 1, m.Len())

	time.Sleep(5 * time.Millisecond)
	m.drain(context.Background())

	require.Equal(t, 0, m.Len())
	require.Equal(t, int64(1), m.DroppedCount())
	require.EqualValues(t, 2, calls.Load())
}

func TestManager_Drain_InvokesOnDropForExhaustedTasks(t *testing.T) {
	m := NewManager[string](func(ctx context.Context, p string) error {
		return errors.New("still failing")
	}, Config{MaxSize: 10, MaxRetries: 1, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, testLogger())

	var dropped []string
	m.OnDrop = func(p string) { dropped = append(dropped, p) }

	m.Enqueue("poison-me")
	m.drain(context.Background())

	require.Equal(t, []string{"poison-me"}, dropped)
}

func TestManager_Drain_DropsTasksOlderThanMaxAge(t *testing.T) {
	m := NewManager[string](func(ctx context.Context, p string) error {
		return errors.New("fails")
	}, Config{MaxSize: 10, MaxRetries: 99, MaxAge: time.Millisecond}, testLogger())

	m.Enqueue("payload")
	time.Sleep(5 * time.Millisecond)
	m.drain(context.Background())

	require.Equal(t, 0, m.Len())
	require.Equal(t, int64(1), m.DroppedCount())
}
