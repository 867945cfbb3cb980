// Command api is the thin, listener-independent HTTP process spec.md's
// "external HTTP front-end" names as out of scope for business queries
// but §7 still requires for the operational health surface. Unlike
// cmd/listener's embedded server, it rebuilds each snapshot from
// durable store state rather than an in-process Registry, so health can
// still be queried when the listener itself isn't running. Mirrors the
// teacher's cmd/api.go: a tiny main wiring one server struct and calling
// Run.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"solana-event-core/internal/api"
	"solana-event-core/internal/config"
	"solana-event-core/internal/health"
	"solana-event-core/internal/store"
	"solana-event-core/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	telemetry.Init(false)

	st, err := store.Dial(context.Background(), cfg.Store.MongoURI, cfg.Store.MongoDB, cfg.Store.MongoMaxConns, cfg.Store.MongoMinConns)
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}

	source := &storeSource{
		st:           st,
		programIDs:   cfg.Solana.ProgramIDs,
		syncInterval: time.Duration(cfg.Pipeline.SyncIntervalSecs) * time.Second,
	}

	port := envOr("API_PORT", "8080")
	srv := api.NewServer(source, telemetry.For("api"))
	logrus.WithField("port", port).Info("API server starting")
	if err := srv.Run(port); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}

// storeSource implements api.Source by rebuilding a program's health
// snapshot from the store on every request (health.SnapshotFromStore),
// rather than holding listener state in memory.
type storeSource struct {
	st           store.Store
	programIDs   []string
	syncInterval time.Duration
}

func (s *storeSource) Snapshot(programID string) (health.Snapshot, bool) {
	snap, ok, err := health.SnapshotFromStore(context.Background(), s.st, programID, s.syncInterval)
	if err != nil {
		logrus.WithError(err).WithField("program", programID).Warn("api: failed to rebuild snapshot from store")
		return health.Snapshot{}, false
	}
	return snap, ok
}

func (s *storeSource) Programs() []string {
	return s.programIDs
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
