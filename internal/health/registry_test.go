package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRetryQueue struct{ depth int }

func (f fakeRetryQueue) Len() int { return f.depth }

func TestRegistry_Snapshot_UnknownProgramReturnsFalse(t *testing.T) {
	r := NewRegistry(30*time.Second, nil)
	_, ok := r.Snapshot("unknown")
	require.False(t, ok)
}

func TestRegistry_Snapshot_HealthyWhenMessageRecent(t *testing.T) {
	r := NewRegistry(30*time.Second, nil)
	r.RecordMessage("prog1", time.Now())

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.True(t, snap.Healthy)
}

func TestRegistry_Snapshot_UnhealthyWhenMessageStaleAndNoRecentBackfill(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	r.RecordMessage("prog1", time.Now().Add(-10*time.Second))

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.False(t, snap.Healthy)
}

func TestRegistry_Snapshot_HealthyWhenMessageStaleButBackfillRanRecently(t *testing.T) {
	r := NewRegistry(time.Second, nil)
	r.RecordMessage("prog1", time.Now().Add(-10*time.Second))
	r.RecordBackfillCycle("prog1", time.Now())

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.True(t, snap.Healthy)
}

func TestRegistry_Snapshot_IncludesRetryQueueDepth(t *testing.T) {
	r := NewRegistry(30*time.Second, fakeRetryQueue{depth: 7})
	r.RecordMessage("prog1", time.Now())

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.Equal(t, 7, snap.RetryQueueDepth)
}

func TestRegistry_RecordDecodedAndPersisted_Accumulate(t *testing.T) {
	r := NewRegistry(30*time.Second, nil)
	r.RecordMessage("prog1", time.Now())
	r.RecordDecoded("prog1", 3)
	r.RecordDecoded("prog1", 2)
	r.RecordPersisted("prog1", 4)

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.EqualValues(t, 5, snap.EventsDecoded)
	require.EqualValues(t, 4, snap.EventsPersisted)
}

func TestRegistry_SetReconnects_Overwrites(t *testing.T) {
	r := NewRegistry(30*time.Second, nil)
	r.RecordMessage("prog1", time.Now())
	r.SetReconnects("prog1", 2)
	r.SetReconnects("prog1", 5)

	snap, ok := r.Snapshot("prog1")
	require.True(t, ok)
	require.EqualValues(t, 5, snap.Reconnects)
}

func TestRegistry_Programs_ListsTrackedPrograms(t *testing.T) {
	r := NewRegistry(30*time.Second, nil)
	r.RecordMessage("prog1", time.Now())
	r.RecordMessage("prog2", time.Now())

	progs := r.Programs()
	require.ElementsMatch(t, []string{"prog1", "prog2"}, progs)
}
