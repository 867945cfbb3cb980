// Package backfill implements the gap-filling Backfill Scheduler (spec
// §4.E): one independent periodic loop per configured event type, each
// walking the chain node's signature history between the checkpoint and
// the latest known event, fetching full transactions for anything
// missing, and feeding them through the same Parser→Writer path live
// events use. The per-event-type gocron job registration is grounded on
// ClusterCockpit's taskManager package (the same pattern
// internal/checkpoint uses for its flush job); signature pagination and
// missing-signature lookup is grounded on the renproject-lightnode
// watcher's GetSignaturesForAddress usage (falls back gracefully when a
// signature no longer resolves).
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"solana-event-core/internal/checkpoint"
	"solana-event-core/internal/metadata"
	"solana-event-core/internal/parser"
	"solana-event-core/internal/rpcclient"
	"solana-event-core/internal/store"
	"solana-event-core/internal/types"
	"solana-event-core/internal/writer"
)

// signaturesPageLimit bounds one get_signatures_for_address call (spec
// §4.E step 4).
const signaturesPageLimit = 1000

// missingCheckChunkSize bounds how many signatures are checked for
// presence in one store query (spec §4.E step 5).
const missingCheckChunkSize = 50

// progressUpdateEvery controls how often an in-flight ScanRecord is
// flushed to the store while backfilling (spec §4.E step 6d).
const progressUpdateEvery = 10

const scanRecordCollection = "ScanRecords"

// EventJob is one entry of the per-event-type configuration named in
// spec §4.E.
type EventJob struct {
	EventType     string
	ProgramID     solana.PublicKey
	Enabled       bool
	CheckInterval time.Duration
}

// Scheduler runs one independent periodic loop per configured EventJob.
type Scheduler struct {
	rpc        *rpcclient.Client
	registry   *parser.Registry
	metadata   *metadata.Provider
	writer     *writer.Writer
	cp         *checkpoint.Manager
	st         store.Store
	commitment rpc.CommitmentType
	log        *logrus.Entry

	jobs      []EventJob
	scheduler gocron.Scheduler
}

// New builds a Scheduler around its collaborators. jobs should already
// be filtered/expanded from config.BackfillConfig.
func New(
	rpcClient *rpcclient.Client,
	registry *parser.Registry,
	metadataProvider *metadata.Provider,
	w *writer.Writer,
	cp *checkpoint.Manager,
	st store.Store,
	commitment rpc.CommitmentType,
	jobs []EventJob,
	log *logrus.Entry,
) *Scheduler {
	return &Scheduler{
		rpc:        rpcClient,
		registry:   registry,
		metadata:   metadataProvider,
		writer:     w,
		cp:         cp,
		st:         st,
		commitment: commitment,
		jobs:       jobs,
		log:        log,
	}
}

// Start registers one recurring gocron job per enabled EventJob and
// begins running them. Each loop proceeds independently and concurrently
// (spec §4.E: "multiple loops proceed concurrently").
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("backfill: build scheduler: %w", err)
	}
	s.scheduler = sched

	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		job := job
		_, err := sched.NewJob(
			gocron.DurationJob(job.CheckInterval),
			gocron.NewTask(func() {
				s.runCycle(ctx, job)
			}),
		)
		if err != nil {
			return fmt.Errorf("backfill: register job for %s: %w", job.EventType, err)
		}
	}

	sched.Start()
	return nil
}

// Stop shuts the scheduler down, letting any in-flight cycle's RPC calls
// complete before returning (spec §5's "completes any in-flight RPC then
// aborts").
func (s *Scheduler) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// bound is one end of a scan range: a signature plus the slot it was
// last known at, used to re-advance the checkpoint without an extra RPC
// round trip.
type bound struct {
	Signature solana.Signature
	Slot      uint64
}

func (b bound) isZero() bool { return types.IsZeroSignature(b.Signature) }

// runCycle executes one complete pass of the spec §4.E 8-step algorithm
// for a single (program, event) pair. Errors from signature fetching
// mark the ScanRecord Failed without panicking the job; the scheduler's
// next tick simply tries again.
func (s *Scheduler) runCycle(ctx context.Context, job EventJob) {
	log := s.log.WithField("program", job.ProgramID.String()).WithField("event", job.EventType)

	collection, ok := types.CollectionForEventType(job.EventType)
	if !ok {
		log.Error("backfill: unrecognized event type, skipping cycle")
		return
	}

	until, before, err := s.determineRange(ctx, job.ProgramID.String(), job.EventType, collection)
	if err != nil {
		log.WithError(err).Warn("backfill: failed to determine scan range")
		return
	}

	if !until.isZero() && !before.isZero() && until.Signature == before.Signature {
		return // nothing new since the last cycle
	}
	if until.isZero() && before.isZero() {
		// First-ever run against an empty collection: scan from the tip
		// with no lower bound (spec §4.E step 1's "zero-signature
		// sentinel means scan from the earliest available chain history",
		// approached here from the newest end since that's all the RPC
		// exposes without a prior anchor).
	}

	scan := &types.ScanRecord{
		ScanID:          uuid.NewString(),
		UntilSignature:  until.Signature.String(),
		BeforeSignature: before.Signature.String(),
		Status:          types.ScanRunning,
		StartedAt:       time.Now().UTC(),
		ProgramFilters:  []string{job.ProgramID.String()},
	}
	s.persistScan(ctx, scan)

	fetched, newest, err := s.fetchSignatures(ctx, job.ProgramID, before, until)
	if err != nil {
		scan.Status = types.ScanFailed
		scan.ErrorMessage = err.Error()
		s.completeScan(ctx, scan)
		log.WithError(err).Warn("backfill: signature fetch failed")
		return
	}
	scan.EventsFound = len(fetched)

	missing, err := s.findMissing(ctx, collection, fetched)
	if err != nil {
		scan.Status = types.ScanFailed
		scan.ErrorMessage = err.Error()
		s.completeScan(ctx, scan)
		log.WithError(err).Warn("backfill: missing-signature lookup failed")
		return
	}

	for i, sig := range missing {
		if err := s.backfillOne(ctx, sig, job.ProgramID); err != nil {
			log.WithError(err).WithField("signature", sig.Signature.String()).Warn("backfill: transaction did not resolve, skipping")
			continue
		}
		scan.EventsBackfilledCount++
		scan.EventsBackfilledSignatures = append(scan.EventsBackfilledSignatures, sig.Signature.String())
		if (i+1)%progressUpdateEvery == 0 {
			s.persistScan(ctx, scan)
		}
	}

	scan.Status = types.ScanCompleted
	s.completeScan(ctx, scan)

	advanceTo := before
	if advanceTo.isZero() {
		advanceTo = newest
	}
	if !advanceTo.isZero() {
		s.cp.Advance(job.ProgramID.String(), job.EventType, advanceTo.Signature, advanceTo.Slot)
	}
}

// determineRange implements spec §4.E step 1.
func (s *Scheduler) determineRange(ctx context.Context, programID, eventType, collection string) (until, before bound, err error) {
	cp, ok := s.cp.Get(programID, eventType)
	if ok {
		sig, perr := solana.SignatureFromBase58(cp.LastSignature)
		if perr != nil {
			return bound{}, bound{}, fmt.Errorf("backfill: parse checkpoint signature: %w", perr)
		}
		until = bound{Signature: sig, Slot: cp.Slot}

		latest, found, ferr := s.collectionBound(ctx, collection, store.FindOptions{Sort: map[string]int{"slot": -1}, Limit: 1})
		if ferr != nil {
			return bound{}, bound{}, ferr
		}
		if found {
			before = latest
		} else {
			before = until
		}
		return until, before, nil
	}

	oldest, hasOldest, err := s.collectionBound(ctx, collection, store.FindOptions{Sort: map[string]int{"slot": 1}, Limit: 1})
	if err != nil {
		return bound{}, bound{}, err
	}
	latest, hasLatest, err := s.collectionBound(ctx, collection, store.FindOptions{Sort: map[string]int{"slot": -1}, Limit: 1})
	if err != nil {
		return bound{}, bound{}, err
	}
	if hasOldest && hasLatest {
		return oldest, latest, nil
	}
	return bound{}, bound{}, nil // empty collection: both sentinels zero
}

func (s *Scheduler) collectionBound(ctx context.Context, collection string, opts store.FindOptions) (bound, bool, error) {
	var rows []struct {
		Signature string `bson:"signature"`
		Slot      uint64 `bson:"slot"`
	}
	if err := s.st.Find(ctx, collection, map[string]interface{}{}, opts, &rows); err != nil {
		return bound{}, false, fmt.Errorf("backfill: query %s: %w", collection, err)
	}
	if len(rows) == 0 {
		return bound{}, false, nil
	}
	sig, err := solana.SignatureFromBase58(rows[0].Signature)
	if err != nil {
		return bound{}, false, fmt.Errorf("backfill: parse stored signature: %w", err)
	}
	return bound{Signature: sig, Slot: rows[0].Slot}, true, nil
}

// fetchSignatures pages through get_signatures_for_address from before
// down to until, returning every signature seen and the newest one
// fetched (used to advance the checkpoint when before was unbounded).
func (s *Scheduler) fetchSignatures(ctx context.Context, programID solana.PublicKey, before, until bound) ([]rpcclient.SignatureInfo, bound, error) {
	var all []rpcclient.SignatureInfo
	var newest bound
	cursor := before.Signature

	for {
		page, err := s.rpc.GetSignaturesForAddress(ctx, programID, cursor, until.Signature, signaturesPageLimit, s.commitment)
		if err != nil {
			return nil, bound{}, err
		}
		if len(page) == 0 {
			break
		}
		if newest.isZero() {
			newest = bound{Signature: page[0].Signature, Slot: page[0].Slot}
		}
		all = append(all, page...)
		if len(page) < signaturesPageLimit {
			break
		}
		cursor = page[len(page)-1].Signature
	}
	return all, newest, nil
}

// findMissing checks fetched signatures against collection in chunks of
// missingCheckChunkSize, returning those absent (spec §4.E step 5).
func (s *Scheduler) findMissing(ctx context.Context, collection string, fetched []rpcclient.SignatureInfo) ([]rpcclient.SignatureInfo, error) {
	var missing []rpcclient.SignatureInfo

	for start := 0; start < len(fetched); start += missingCheckChunkSize {
		end := start + missingCheckChunkSize
		if end > len(fetched) {
			end = len(fetched)
		}
		chunk := fetched[start:end]

		wanted := make([]interface{}, len(chunk))
		for i, sig := range chunk {
			wanted[i] = sig.Signature.String()
		}

		var present []struct {
			Signature string `bson:"signature"`
		}
		filter := map[string]interface{}{"signature": map[string]interface{}{"$in": wanted}}
		if err := s.st.Find(ctx, collection, filter, store.FindOptions{}, &present); err != nil {
			return nil, fmt.Errorf("backfill: find existing signatures: %w", err)
		}

		have := make(map[string]struct{}, len(present))
		for _, p := range present {
			have[p.Signature] = struct{}{}
		}
		for _, sig := range chunk {
			if _, ok := have[sig.Signature.String()]; !ok {
				missing = append(missing, sig)
			}
		}
	}
	return missing, nil
}

// backfillOne fetches one transaction's logs and feeds them through the
// same Parser→Writer path live events use (spec §4.E step 6).
func (s *Scheduler) backfillOne(ctx context.Context, sig rpcclient.SignatureInfo, programID solana.PublicKey) error {
	tx, err := s.rpc.GetTransaction(ctx, sig.Signature, s.commitment)
	if err != nil {
		return err
	}

	events, err := s.registry.Parse(tx.LogLines, tx.Signature, tx.Slot)
	if err != nil {
		s.log.WithError(err).Warn("backfill: parse error, skipping log line")
	}
	if len(events) == 0 {
		return nil
	}

	events = parser.Enrich(ctx, events, s.metadata)
	s.writer.Submit(ctx, events)
	return nil
}

func (s *Scheduler) persistScan(ctx context.Context, scan *types.ScanRecord) {
	doc := scanDocument(scan)
	filter := map[string]interface{}{"scan_id": scan.ScanID}
	if err := s.st.UpdateOne(ctx, scanRecordCollection, filter, map[string]interface{}{"$set": doc}, true); err != nil {
		s.log.WithError(err).Warn("backfill: failed to persist scan record progress")
	}
}

func (s *Scheduler) completeScan(ctx context.Context, scan *types.ScanRecord) {
	now := time.Now().UTC()
	scan.CompletedAt = &now
	s.persistScan(ctx, scan)
}

func scanDocument(scan *types.ScanRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"scan_id":                      scan.ScanID,
		"until_signature":              scan.UntilSignature,
		"before_signature":             scan.BeforeSignature,
		"status":                       scan.Status,
		"events_found":                 scan.EventsFound,
		"events_backfilled_count":      scan.EventsBackfilledCount,
		"events_backfilled_signatures": scan.EventsBackfilledSignatures,
		"started_at":                   scan.StartedAt,
		"error_message":                scan.ErrorMessage,
		"program_filters":              scan.ProgramFilters,
	}
	if scan.CompletedAt != nil {
		doc["completed_at"] = *scan.CompletedAt
	}
	return doc
}
