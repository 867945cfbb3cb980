// Command listener is the ingestion core's main process: it subscribes
// to every configured program's log stream, decodes and persists
// events, runs the backfill scheduler against gaps, and serves the
// operational health API. It follows the teacher's cmd/indexer.go
// shutdown shape (a cancellable context fed by os/signal, torn down on
// SIGINT/SIGTERM) scaled from one RPC client/sink pair to the full
// per-program fan-out this core requires.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"solana-event-core/internal/api"
	"solana-event-core/internal/backfill"
	"solana-event-core/internal/checkpoint"
	"solana-event-core/internal/config"
	"solana-event-core/internal/health"
	"solana-event-core/internal/metadata"
	"solana-event-core/internal/parser"
	"solana-event-core/internal/retry"
	"solana-event-core/internal/rpcclient"
	"solana-event-core/internal/store"
	"solana-event-core/internal/subscriber"
	"solana-event-core/internal/telemetry"
	"solana-event-core/internal/writer"
)

func main() {
	telemetry.Init(envOr("LOG_DEBUG", "") == "true")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down gracefully…")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("listener terminated with error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := store.Dial(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB, cfg.Store.MongoMaxConns, cfg.Store.MongoMinConns)
	if err != nil {
		return fmt.Errorf("connect to store: %w", err)
	}
	defer st.Close(context.Background())

	cp := checkpoint.NewManager(st, telemetry.For("checkpoint"))
	if err := cp.LoadAll(ctx); err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	if err := cp.StartFlushJob(ctx, time.Duration(cfg.Pipeline.CheckpointIntervalSecs)*time.Second); err != nil {
		return fmt.Errorf("start checkpoint flush job: %w", err)
	}

	registry := buildRegistry()

	commitment := parseCommitment(cfg.Solana.Commitment)
	rpcClient := rpcclient.New(cfg.Solana.RPCURL)

	onChain := metadata.NewMetaplexResolver(rpcClient, commitment)
	metadataProvider, err := metadata.NewProvider(onChain, nil)
	if err != nil {
		return fmt.Errorf("build metadata provider: %w", err)
	}

	w := writer.New(st, cp, writer.Config{
		BatchSize:       cfg.Pipeline.BatchWriteSize,
		MaxWait:         time.Duration(cfg.Pipeline.BatchWriteWaitMS) * time.Millisecond,
		BufferSize:      cfg.Pipeline.BatchWriteBufferSize,
		ConcurrentSinks: cfg.Pipeline.BatchWriteConcurrent,
	}, telemetry.For("writer"))
	writerRetry := w.SetRetryManager(retry.Config{
		MaxSize:        cfg.Pipeline.SignatureCacheSize,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		BackoffInitial: time.Duration(cfg.Pipeline.RetryDelayMS) * time.Millisecond,
		BackoffMax:     time.Minute,
	}, telemetry.For("retry"))

	healthRegistry := health.NewRegistry(time.Duration(cfg.Pipeline.SyncIntervalSecs)*time.Second, writerRetry)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		writerRetry.Run(ctx, time.Second)
	}()

	subs := make([]*subscriber.Subscriber, 0, len(cfg.Solana.ProgramIDs))
	for _, programStr := range cfg.Solana.ProgramIDs {
		programID, err := solana.PublicKeyFromBase58(programStr)
		if err != nil {
			return fmt.Errorf("parse program id %q: %w", programStr, err)
		}
		log := telemetry.For("subscriber").WithField("program", programStr)
		sub := subscriber.New(programID, cfg.Solana.WSURL, commitment, cfg.Reconnect, log)
		subs = append(subs, sub)

		wg.Add(1)
		go func(programStr string, sub *subscriber.Subscriber) {
			defer wg.Done()
			runSubscriber(ctx, programStr, sub, registry, metadataProvider, w, healthRegistry, log)
		}(programStr, sub)

		wg.Add(1)
		go func(sub *subscriber.Subscriber, log *logrus.Entry) {
			defer wg.Done()
			watchSubscriberFatal(ctx, cancel, sub, log)
		}(sub, log)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		pollSubscriberHealth(ctx, subs, cfg.Solana.ProgramIDs, healthRegistry)
	}()

	var sched *backfill.Scheduler
	if cfg.Backfill.Enabled {
		jobs := buildBackfillJobs(cfg)
		sched = backfill.New(rpcClient, registry, metadataProvider, w, cp, st, commitment, jobs, telemetry.For("backfill"))
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start backfill scheduler: %w", err)
		}
	}

	apiSrv := api.NewServer(healthRegistry, telemetry.For("api"))
	apiPort := envOr("API_PORT", "8080")
	go func() {
		if err := apiSrv.Run(apiPort); err != nil {
			logrus.WithError(err).Warn("health API server stopped")
		}
	}()

	<-ctx.Done()

	for _, sub := range subs {
		sub.Stop()
	}
	if sched != nil {
		if err := sched.Stop(); err != nil {
			logrus.WithError(err).Warn("backfill scheduler shutdown error")
		}
	}
	if err := cp.StopFlushJob(context.Background()); err != nil {
		logrus.WithError(err).Warn("checkpoint flush job shutdown error")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer drainCancel()
	drainDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(drainDone)
	}()
	select {
	case <-drainDone:
	case <-drainCtx.Done():
		logrus.Warn("shutdown drain timed out after 30s")
	}

	return nil
}

// runSubscriber feeds one program's raw log stream through the parser
// registry, metadata enrichment, and the writer, recording health
// signals as it goes.
func runSubscriber(
	ctx context.Context,
	programID string,
	sub *subscriber.Subscriber,
	registry *parser.Registry,
	metadataProvider *metadata.Provider,
	w *writer.Writer,
	healthRegistry *health.Registry,
	log *logrus.Entry,
) {
	for batch := range sub.Start(ctx) {
		healthRegistry.RecordMessage(programID, time.Now())

		if batch.Err != nil {
			continue
		}

		events, err := registry.Parse(batch.Logs, batch.Signature, batch.Slot)
		if err != nil {
			log.WithError(err).WithField("signature", batch.Signature.String()).Warn("parse error")
		}
		if len(events) == 0 {
			continue
		}

		healthRegistry.RecordDecoded(programID, int64(len(events)))
		events = parser.Enrich(ctx, events, metadataProvider)
		w.Submit(ctx, events)
		// Submit may only buffer the events, so events_persisted counts
		// events handed to the writer, including ones a later flush skips
		// as duplicates or sends to the retry queue.
		healthRegistry.RecordPersisted(programID, int64(len(events)))
	}
}

// watchSubscriberFatal escalates a subscriber's exhausted-reconnect
// condition (spec §4.A) to the process supervisor: it cancels the shared
// context, which drives the same graceful 30s-drain shutdown path a
// SIGTERM triggers, rather than killing the process outright.
func watchSubscriberFatal(ctx context.Context, cancel context.CancelFunc, sub *subscriber.Subscriber, log *logrus.Entry) {
	select {
	case <-ctx.Done():
	case err := <-sub.Fatal():
		log.WithError(err).Error("subscriber escalated a fatal condition, shutting down")
		cancel()
	}
}

// pollSubscriberHealth periodically copies each Subscriber's cumulative
// reconnect counter into the shared health registry; Subscriber itself
// has no reference to health.Registry, keeping the two packages
// independent of each other.
func pollSubscriberHealth(ctx context.Context, subs []*subscriber.Subscriber, programIDs []string, reg *health.Registry) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for i, sub := range subs {
				reg.SetReconnects(programIDs[i], sub.ReconnectsTotal())
			}
		}
	}
}

// buildRegistry registers every known event decoder. A collision here is
// a startup-stopping configuration error, so MustRegister is used.
func buildRegistry() *parser.Registry {
	r := parser.NewRegistry()
	r.MustRegister(parser.TokenCreationDecoder{})
	r.MustRegister(parser.PoolCreationDecoder{})
	r.MustRegister(parser.NftClaimDecoder{})
	r.MustRegister(parser.RewardDistributionDecoder{})
	r.MustRegister(parser.LpChangeDecoder{})
	r.MustRegister(parser.DepositDecoder{})
	r.MustRegister(parser.LaunchDecoder{})
	r.MustRegister(parser.SwapDecoder{})
	return r
}

// buildBackfillJobs expands BACKFILL_EVENT_<i>_* overrides into one
// EventJob per (program, registered event type), defaulting unlisted
// combinations to cfg.Backfill.Enabled/DefaultCheckInterval (spec §6).
func buildBackfillJobs(cfg *config.Config) []backfill.EventJob {
	type jobKey struct{ eventType, programID string }
	overrides := make(map[jobKey]config.BackfillEventOverride, len(cfg.Backfill.Overrides))
	for _, o := range cfg.Backfill.Overrides {
		overrides[jobKey{eventType: o.EventType, programID: o.ProgramID}] = o
	}

	var jobs []backfill.EventJob
	for _, eventType := range registeredEventTypes {
		for _, programStr := range cfg.Solana.ProgramIDs {
			programID, err := solana.PublicKeyFromBase58(programStr)
			if err != nil {
				continue
			}

			job := backfill.EventJob{
				EventType:     eventType,
				ProgramID:     programID,
				Enabled:       cfg.Backfill.Enabled,
				CheckInterval: cfg.Backfill.DefaultCheckInterval,
			}
			if o, ok := overrides[jobKey{eventType: eventType, programID: programStr}]; ok {
				job.Enabled = o.Enabled
				if o.CheckInterval > 0 {
					job.CheckInterval = o.CheckInterval
				}
			}
			jobs = append(jobs, job)
		}
	}
	return jobs
}

var registeredEventTypes = []string{
	"TokenCreationEvent",
	"PoolCreationEvent",
	"NftClaimEvent",
	"RewardDistributionEvent",
	"LpChangeEvent",
	"DepositEvent",
	"LaunchEvent",
	"SwapEvent",
}

func parseCommitment(s string) rpc.CommitmentType {
	switch s {
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentFinalized
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
