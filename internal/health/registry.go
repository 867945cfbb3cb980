// Package health tracks the per-program operational snapshot spec.md §7
// requires every running program to expose: last message time, reconnect
// count, decode/persist counters, last backfill cycle, and retry queue
// depth. It generalizes the teacher's JobStatus (internal/api/models.go)
// — a single mutex-guarded status struct per job, read by the API layer
// — from one-shot ETL jobs to long-lived per-program counters that
// several goroutines update concurrently.
package health

import (
	"sync"
	"time"
)

// Snapshot is the per-program payload spec.md §7 names verbatim.
type Snapshot struct {
	ProgramID         string    `json:"program_id"`
	LastMessageAt     time.Time `json:"last_message_at"`
	Reconnects        int64     `json:"reconnects"`
	EventsDecoded     int64     `json:"events_decoded"`
	EventsPersisted   int64     `json:"events_persisted"`
	BackfillLastCycle time.Time `json:"backfill_last_cycle"`
	RetryQueueDepth   int       `json:"retry_queue_depth"`
	Healthy           bool      `json:"healthy"`
}

// entry is the mutable state backing one program's Snapshot.
type entry struct {
	mu                sync.RWMutex
	lastMessageAt     time.Time
	reconnects        int64
	eventsDecoded     int64
	eventsPersisted   int64
	backfillLastCycle time.Time
}

// RetryQueueDepther reports the current depth of a retry queue, so
// Registry can fold it into a program's snapshot without importing
// internal/retry's generic Manager[T] (which can't be named without its
// type parameter).
type RetryQueueDepther interface {
	Len() int
}

// Registry is the process-wide per-program health tracker; the API layer
// reads it to answer /health/{program}. In cmd/listener only the
// per-program subscriber goroutines write to it. The backfill scheduler
// does not call RecordBackfillCycle, so BackfillLastCycle stays zero there.
type Registry struct {
	syncInterval time.Duration
	retryQueue   RetryQueueDepther

	mu       sync.RWMutex
	programs map[string]*entry
}

// NewRegistry builds a Registry. syncInterval is the configured
// EVENT_SYNC_INTERVAL_SECS, used to derive the unhealthy threshold (5x,
// spec §7). retryQueue may be nil if no shared retry manager is wired
// yet; RetryQueueDepth then reports zero.
func NewRegistry(syncInterval time.Duration, retryQueue RetryQueueDepther) *Registry {
	return &Registry{
		syncInterval: syncInterval,
		retryQueue:   retryQueue,
		programs:     make(map[string]*entry),
	}
}

func (r *Registry) entryFor(programID string) *entry {
	r.mu.RLock()
	e, ok := r.programs[programID]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.programs[programID]; ok {
		return e
	}
	e = &entry{}
	r.programs[programID] = e
	return e
}

// RecordMessage marks that a log message just arrived for programID.
func (r *Registry) RecordMessage(programID string, at time.Time) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.lastMessageAt = at
	e.mu.Unlock()
}

// RecordReconnect increments programID's reconnect counter.
func (r *Registry) RecordReconnect(programID string) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.reconnects++
	e.mu.Unlock()
}

// SetReconnects overwrites programID's reconnect counter to n, for
// callers (cmd/listener) that poll a Subscriber's own cumulative
// counter rather than calling RecordReconnect per event.
func (r *Registry) SetReconnects(programID string, n int64) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.reconnects = n
	e.mu.Unlock()
}

// RecordDecoded adds n to programID's decoded-event counter.
func (r *Registry) RecordDecoded(programID string, n int64) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.eventsDecoded += n
	e.mu.Unlock()
}

// RecordPersisted adds n to programID's persisted-event counter.
func (r *Registry) RecordPersisted(programID string, n int64) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.eventsPersisted += n
	e.mu.Unlock()
}

// RecordBackfillCycle marks that a backfill cycle just completed for
// programID.
func (r *Registry) RecordBackfillCycle(programID string, at time.Time) {
	e := r.entryFor(programID)
	e.mu.Lock()
	e.backfillLastCycle = at
	e.mu.Unlock()
}

// Snapshot returns programID's current snapshot and whether any data
// has been recorded for it at all.
func (r *Registry) Snapshot(programID string) (Snapshot, bool) {
	r.mu.RLock()
	e, ok := r.programs[programID]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}

	e.mu.RLock()
	s := Snapshot{
		ProgramID:         programID,
		LastMessageAt:     e.lastMessageAt,
		Reconnects:        e.reconnects,
		EventsDecoded:     e.eventsDecoded,
		EventsPersisted:   e.eventsPersisted,
		BackfillLastCycle: e.backfillLastCycle,
	}
	e.mu.RUnlock()

	if r.retryQueue != nil {
		s.RetryQueueDepth = r.retryQueue.Len()
	}
	s.Healthy = r.isHealthy(s)
	return s, true
}

// isHealthy implements spec §7's rule verbatim: unhealthy if
// last_message_at is older than 5x the sync interval AND no backfill
// cycle ran within that same window.
func (r *Registry) isHealthy(s Snapshot) bool {
	if s.LastMessageAt.IsZero() {
		// No message has ever arrived: unhealthy at once (whatever the
		// backfill state), unless no sync interval is configured.
		return r.syncInterval <= 0
	}

	threshold := 5 * r.syncInterval
	staleMessages := time.Since(s.LastMessageAt) > threshold
	if !staleMessages {
		return true
	}
	backfillRecent := !s.BackfillLastCycle.IsZero() && time.Since(s.BackfillLastCycle) <= threshold
	return backfillRecent
}

// Programs lists every program currently tracked, for the liveness
// handler's summary view.
func (r *Registry) Programs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.programs))
	for p := range r.programs {
		out = append(out, p)
	}
	return out
}
