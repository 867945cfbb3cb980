package health

import (
	"context"
	"fmt"
	"time"

	"solana-event-core/internal/store"
)

// checkpointCollection and scanRecordCollection mirror the literal names
// internal/checkpoint and internal/backfill persist to; health has no
// import-time dependency on either package, only on the documents they
// leave behind.
const (
	checkpointCollection = "EventScannerCheckpoints"
	scanRecordCollection = "ScanRecords"
)

// SnapshotFromStore rebuilds a program's health snapshot directly from
// durable state, for a cmd/api process running independently of the
// listener that owns the in-memory Registry (so health can still be
// queried if the listener itself is down). It can only recover what the
// store actually holds: last_message_at is approximated from the most
// recently updated checkpoint, reconnects/events_decoded/
// events_persisted are unavailable outside the listener process and
// report zero.
func SnapshotFromStore(ctx context.Context, st store.Store, programID string, syncInterval time.Duration) (Snapshot, bool, error) {
	var checkpoints []struct {
		UpdatedAt time.Time `bson:"updated_at"`
	}
	err := st.Find(ctx, checkpointCollection,
		map[string]interface{}{"program_id": programID},
		store.FindOptions{Sort: map[string]int{"updated_at": -1}, Limit: 1},
		&checkpoints)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("health: query checkpoints: %w", err)
	}

	var scans []struct {
		CompletedAt *time.Time `bson:"completed_at"`
		ProgramFilters []string `bson:"program_filters"`
	}
	err = st.Find(ctx, scanRecordCollection,
		map[string]interface{}{"program_filters": programID, "status": "Completed"},
		store.FindOptions{Sort: map[string]int{"completed_at": -1}, Limit: 1},
		&scans)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("health: query scan records: %w", err)
	}

	if len(checkpoints) == 0 && len(scans) == 0 {
		return Snapshot{}, false, nil
	}

	snap := Snapshot{ProgramID: programID}
	if len(checkpoints) > 0 {
		snap.LastMessageAt = checkpoints[0].UpdatedAt
	}
	if len(scans) > 0 && scans[0].CompletedAt != nil {
		snap.BackfillLastCycle = *scans[0].CompletedAt
	}

	reg := &Registry{syncInterval: syncInterval}
	snap.Healthy = reg.isHealthy(snap)
	return snap, true, nil
}
