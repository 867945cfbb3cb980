// Package writer implements the Batch Writer (spec §4.C): it buffers
// decoded events per target collection, flushes on size or time, and
// advances checkpoints for whatever it durably persists. It generalizes
// the teacher's sink.Sink — a single-event Write(Event) call decorated
// by RetrySink for transient failures (internal/sink/retry.go) and
// lazily keyed per-file the way CSVSink keys per event name
// (internal/sink/csv.go) — from one-row-at-a-time CSV appends to
// hash-sharded, size/time-flushed Mongo batches.
package writer

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-event-core/internal/checkpoint"
	"solana-event-core/internal/retry"
	"solana-event-core/internal/store"
	"solana-event-core/internal/types"
)

// PoisonCollection is where records that persistently fail to persist
// end up, per spec.md's "poison event" glossary entry.
const PoisonCollection = "PoisonEvents"

// Config groups the Writer's batching/concurrency tunables, taken from
// the EVENT_BATCH_WRITE_* env vars (spec §6).
type Config struct {
	BatchSize      int
	MaxWait        time.Duration
	BufferSize     int
	ConcurrentSinks int
}

// batchTask is one collection's buffered batch, handed to the retry
// manager on a transient store failure.
type batchTask struct {
	collection string
	events     []types.DecodedEvent
}

// Writer buffers DecodedEvents per collection and flushes each
// collection's buffer through a disjoint hash-bucketed shard, so no two
// shards ever write the same collection concurrently (spec §5's
// per-collection FIFO ordering guarantee).
type Writer struct {
	st    store.Store
	cp    *checkpoint.Manager
	cfg   Config
	log   *logrus.Entry
	retry *retry.Manager[batchTask]

	shards []*shard

	insertedTotal  int64
	duplicateTotal int64
	poisonTotal    int64
	mu             sync.Mutex
}

// shard owns a disjoint subset of collections (by fnv32a hash) and the
// buffer for each, flushing its own collections independently of every
// other shard.
type shard struct {
	w  *Writer
	id int

	mu      sync.Mutex
	buffers map[string][]types.DecodedEvent
	oldest  map[string]time.Time
}

// New builds a Writer around st, persisting checkpoints via cp. Callers
// must follow with SetRetryManager before Submit is used, since the
// retry manager's handler closes over the Writer itself.
func New(st store.Store, cp *checkpoint.Manager, cfg Config, log *logrus.Entry) *Writer {
	if cfg.ConcurrentSinks <= 0 {
		cfg.ConcurrentSinks = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 2 * time.Second
	}

	w := &Writer{st: st, cp: cp, cfg: cfg, log: log}
	w.shards = make([]*shard, cfg.ConcurrentSinks)
	for i := range w.shards {
		w.shards[i] = &shard{
			w:       w,
			id:      i,
			buffers: make(map[string][]types.DecodedEvent),
			oldest:  make(map[string]time.Time),
		}
	}
	return w
}

// SetRetryManager wires the retry.Manager[batchTask] a Writer hands
// failed flushes to, re-attempting through flushBatch and, on final
// exhaustion, poisoning every event the batch still held.
func (w *Writer) SetRetryManager(cfg retry.Config, log *logrus.Entry) *retry.Manager[batchTask] {
	mgr := retry.NewManager(func(ctx context.Context, task batchTask) error {
		err := w.flushBatch(ctx, task.collection, task.events)
		if err == nil {
			w.advanceCheckpoints(task.events)
		}
		return err
	}, cfg, log)
	mgr.OnDrop = func(task batchTask) {
		for _, ev := range task.events {
			w.Poison(context.Background(), ev, "retry budget exhausted")
		}
	}
	w.retry = mgr
	return mgr
}

func shardFor(shards []*shard, collection string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(collection))
	return shards[int(h.Sum32())%len(shards)]
}

// Submit buffers events for later flush, routing each to the shard that
// owns its target collection. A collection's buffer flushes immediately
// once it reaches cfg.BatchSize.
func (w *Writer) Submit(ctx context.Context, events []types.DecodedEvent) {
	byShard := make(map[*shard][]types.DecodedEvent)
	for _, ev := range events {
		s := shardFor(w.shards, ev.Collection())
		byShard[s] = append(byShard[s], ev)
	}
	for s, evs := range byShard {
		s.add(ctx, evs)
	}
}

func (s *shard) add(ctx context.Context, events []types.DecodedEvent) {
	s.mu.Lock()
	flushNow := make(map[string][]types.DecodedEvent)
	for _, ev := range events {
		col := ev.Collection()
		if _, ok := s.oldest[col]; !ok {
			s.oldest[col] = time.Now()
		}
		s.buffers[col] = append(s.buffers[col], ev)
		if len(s.buffers[col]) >= s.w.cfg.BatchSize {
			flushNow[col] = s.buffers[col]
			delete(s.buffers, col)
			delete(s.oldest, col)
		}
	}
	s.mu.Unlock()

	for col, evs := range flushNow {
		s.w.flushAndAdvance(ctx, col, evs)
	}
}

// Run starts every shard's flush-on-timeout loop, returning once ctx is
// cancelled and every shard has performed one final flush (spec §5's
// 30s drain-on-shutdown).
func (w *Writer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range w.shards {
		wg.Add(1)
		go func(s *shard) {
			defer wg.Done()
			s.runTicker(ctx)
		}(s)
	}
	wg.Wait()
}

func (s *shard) runTicker(ctx context.Context) {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flushAllDue(context.Background(), true)
			return
		case <-t.C:
			s.flushAllDue(ctx, false)
		}
	}
}

// flushAllDue flushes every collection whose oldest buffered event has
// waited longer than MaxWait, or every collection unconditionally when
// force is true (final shutdown drain).
func (s *shard) flushAllDue(ctx context.Context, force bool) {
	now := time.Now()

	s.mu.Lock()
	due := make(map[string][]types.DecodedEvent)
	cols := make([]string, 0, len(s.buffers))
	for col := range s.buffers {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if force || now.Sub(s.oldest[col]) >= s.w.cfg.MaxWait {
			due[col] = s.buffers[col]
			delete(s.buffers, col)
			delete(s.oldest, col)
		}
	}
	s.mu.Unlock()

	for col, evs := range due {
		s.w.flushAndAdvance(ctx, col, evs)
	}
}

// flushAndAdvance persists one collection's batch and, on success,
// advances the checkpoint for every (program, event) represented in it
// to the highest slot/signature actually written.
func (w *Writer) flushAndAdvance(ctx context.Context, collection string, events []types.DecodedEvent) {
	if err := w.flushBatch(ctx, collection, events); err != nil {
		w.log.WithError(err).WithField("collection", collection).Warn("batch flush failed, enqueueing for retry")
		w.retry.Enqueue(batchTask{collection: collection, events: events})
		return
	}
	w.advanceCheckpoints(events)
}

// flushBatch performs one InsertMany for collection. Duplicate-key
// errors are counted as success (spec §4.C: idempotent ingest); any
// other error is surfaced so the caller can route the batch through the
// retry manager without advancing checkpoints for it.
func (w *Writer) flushBatch(ctx context.Context, collection string, events []types.DecodedEvent) error {
	docs := make([]interface{}, len(events))
	for i, ev := range events {
		docs[i] = ev.Document()
	}

	inserted, dupErrs, err := w.st.InsertMany(ctx, collection, docs)

	w.mu.Lock()
	w.insertedTotal += int64(inserted)
	w.duplicateTotal += int64(len(dupErrs))
	w.mu.Unlock()

	if err != nil {
		return err
	}
	return nil
}

// advanceCheckpoints walks events and advances the checkpoint for each
// distinct (program, event type) pair to its highest slot/signature.
func (w *Writer) advanceCheckpoints(events []types.DecodedEvent) {
	type key struct{ program, event string }
	best := make(map[key]types.EventMeta)

	for _, ev := range events {
		k := key{program: ev.SourceProgramID(), event: ev.EventType()}
		m := ev.Meta()
		if cur, ok := best[k]; !ok || m.Slot > cur.Slot {
			best[k] = m
		}
	}

	for k, m := range best {
		w.cp.Advance(k.program, k.event, m.Signature, m.Slot)
	}
}

// Poison persists a record that has exhausted its retry budget to the
// poison-event collection, tagged with the reason, rather than losing
// it silently (spec §4.C, §4.F "poison event" glossary entry).
func (w *Writer) Poison(ctx context.Context, ev types.DecodedEvent, reason string) {
	doc := ev.Document()
	doc["_poison_reason"] = reason
	doc["_poison_collection"] = ev.Collection()
	doc["_poison_event_type"] = ev.EventType()

	w.mu.Lock()
	w.poisonTotal++
	w.mu.Unlock()

	if _, _, err := w.st.InsertMany(ctx, PoisonCollection, []interface{}{doc}); err != nil {
		w.log.WithError(err).Error("failed to persist poison event")
	}
}

// InsertedTotal is the running count of documents actually inserted,
// for health reporting.
func (w *Writer) InsertedTotal() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.insertedTotal
}

// DuplicateTotal is the running count of duplicate-key writes treated
// as success.
func (w *Writer) DuplicateTotal() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.duplicateTotal
}

// PoisonTotal is the running count of records routed to the poison
// collection.
func (w *Writer) PoisonTotal() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.poisonTotal
}
