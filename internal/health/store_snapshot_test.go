package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solana-event-core/internal/store"
)

func TestSnapshotFromStore_UnknownProgramReturnsFalse(t *testing.T) {
	st := store.NewMemStore()
	_, ok, err := SnapshotFromStore(context.Background(), st, "prog1", 30*time.Second)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSnapshotFromStore_DerivesLastMessageAtFromLatestCheckpoint(t *testing.T) {
	st := store.NewMemStore()
	now := time.Now().UTC()
	_, _, err := st.InsertMany(context.Background(), checkpointCollection, []interface{}{
		map[string]interface{}{"program_id": "prog1", "event_name": "DepositEvent", "updated_at": now},
	})
	require.NoError(t, err)

	snap, ok, err := SnapshotFromStore(context.Background(), st, "prog1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.WithinDuration(t, now, snap.LastMessageAt, time.Second)
	require.True(t, snap.Healthy)
}

func TestSnapshotFromStore_IncludesMostRecentCompletedScan(t *testing.T) {
	st := store.NewMemStore()
	completed := time.Now().UTC()
	_, _, err := st.InsertMany(context.Background(), scanRecordCollection, []interface{}{
		map[string]interface{}{"status": "Completed", "program_filters": "prog1", "completed_at": completed},
	})
	require.NoError(t, err)

	snap, ok, err := SnapshotFromStore(context.Background(), st, "prog1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.WithinDuration(t, completed, snap.BackfillLastCycle, time.Second)
}
