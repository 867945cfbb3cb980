// Package checkpoint tracks, per (program, event type), the highest
// slot/signature the pipeline has durably persisted, so a restart or a
// backfill scan knows where to resume (spec §4.D). The periodic flush
// job is grounded on ClusterCockpit's
// internal/taskManager/retentionService.go gocron registration pattern,
// adapted from a daily retention sweep to a short-interval dirty-flush.
package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"solana-event-core/internal/store"
	"solana-event-core/internal/types"
)

// Manager caches the current checkpoint per (program, event) key,
// flushing dirty entries to the store on an interval rather than on
// every advance, so a hot event type doesn't turn into a write per
// message.
type Manager struct {
	st  store.Store
	log *logrus.Entry

	mu    sync.RWMutex
	cache map[types.CheckpointKey]*types.Checkpoint
	dirty map[types.CheckpointKey]struct{}

	scheduler gocron.Scheduler
}

const checkpointCollection = "EventScannerCheckpoints"

// NewManager builds a Manager backed by st.
func NewManager(st store.Store, log *logrus.Entry) *Manager {
	return &Manager{
		st:    st,
		log:   log,
		cache: make(map[types.CheckpointKey]*types.Checkpoint),
		dirty: make(map[types.CheckpointKey]struct{}),
	}
}

// LoadAll reloads every checkpoint from the store into the cache, used
// once at startup before any subscriber or backfill job runs.
func (m *Manager) LoadAll(ctx context.Context) error {
	var rows []types.Checkpoint
	if err := m.st.Find(ctx, checkpointCollection, map[string]interface{}{}, store.FindOptions{}, &rows); err != nil {
		return fmt.Errorf("checkpoint: load all: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rows {
		cp := rows[i]
		key := types.CheckpointKey{ProgramID: cp.ProgramID, EventName: cp.EventName}
		m.cache[key] = &cp
	}
	m.log.WithField("count", len(rows)).Info("checkpoints loaded")
	return nil
}

// Get returns the cached checkpoint for (programID, eventName), and
// whether one exists yet.
func (m *Manager) Get(programID, eventName string) (types.Checkpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.cache[types.CheckpointKey{ProgramID: programID, EventName: eventName}]
	if !ok {
		return types.Checkpoint{}, false
	}
	return *cp, true
}

// Advance records (signature, slot) as persisted for (programID,
// eventName). It never decreases the cached slot: a late-arriving
// duplicate delivery of an older event cannot roll the watermark back
// (spec §3 invariant 1).
func (m *Manager) Advance(programID, eventName string, signature types.Signature, slot types.Slot) {
	key := types.CheckpointKey{ProgramID: programID, EventName: eventName}
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	cp, ok := m.cache[key]
	if !ok {
		m.cache[key] = &types.Checkpoint{
			ProgramID:     programID,
			EventName:     eventName,
			LastSignature: signature.String(),
			Slot:          slot,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		m.dirty[key] = struct{}{}
		return
	}

	if slot <= cp.Slot {
		return
	}
	cp.LastSignature = signature.String()
	cp.Slot = slot
	cp.UpdatedAt = now
	m.dirty[key] = struct{}{}
}

// StartFlushJob registers a recurring gocron job that flushes dirty
// checkpoints to the store every interval, following the same
// gocron.NewJob(gocron.DurationJob(...), gocron.NewTask(...))
// registration shape as the teacher's retention sweep.
func (m *Manager) StartFlushJob(ctx context.Context, interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("checkpoint: build scheduler: %w", err)
	}
	m.scheduler = sched

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := m.FlushDirty(ctx); err != nil {
				m.log.WithError(err).Error("checkpoint flush failed")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: register flush job: %w", err)
	}

	sched.Start()
	return nil
}

// StopFlushJob shuts the scheduler down, flushing one last time.
func (m *Manager) StopFlushJob(ctx context.Context) error {
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			m.log.WithError(err).Warn("checkpoint scheduler shutdown error")
		}
	}
	return m.FlushDirty(ctx)
}

// FlushDirty persists every checkpoint touched since the last flush
// using a $max upsert, so a concurrent flush racing an in-flight Advance
// can never move the persisted slot backwards either.
func (m *Manager) FlushDirty(ctx context.Context) error {
	m.mu.Lock()
	keys := make([]types.CheckpointKey, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.mu.RLock()
		cp, ok := m.cache[key]
		m.mu.RUnlock()
		if !ok {
			continue
		}

		filter := map[string]interface{}{
			"program_id": cp.ProgramID,
			"event_name": cp.EventName,
		}
		update := map[string]interface{}{
			"$max": map[string]interface{}{"slot": float64(cp.Slot)},
			"$set": map[string]interface{}{
				"last_signature": cp.LastSignature,
				"updated_at":     cp.UpdatedAt,
			},
			"$setOnInsert": map[string]interface{}{
				"program_id": cp.ProgramID,
				"event_name": cp.EventName,
				"created_at": cp.CreatedAt,
			},
		}

		if err := m.st.UpdateOne(ctx, checkpointCollection, filter, update, true); err != nil {
			return fmt.Errorf("checkpoint: flush %s/%s: %w", cp.ProgramID, cp.EventName, err)
		}

		m.mu.Lock()
		delete(m.dirty, key)
		m.mu.Unlock()
	}
	return nil
}
