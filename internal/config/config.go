// Package config loads and validates the environment-variable configuration
// surface described in the event core's specification.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ReconnectMode selects how a Subscriber recovers from a dropped WebSocket.
type ReconnectMode int

const (
	// ReconnectFixed reconnects after a constant delay, unbounded attempts.
	ReconnectFixed ReconnectMode = iota
	// ReconnectBackoff reconnects with exponential backoff, optionally capped.
	ReconnectBackoff
)

// SolanaConfig groups the chain-facing connection settings.
type SolanaConfig struct {
	RPCURL      string
	WSURL       string
	Commitment  string // "confirmed" or "finalized"
	ProgramIDs  []string
	PrivateKey  string // optional, unused by the ingestion core itself
}

// StoreConfig groups document-store connection settings.
type StoreConfig struct {
	MongoURI           string
	MongoDB            string
	MongoMaxConns      uint64
	MongoMinConns      uint64
}

// PipelineConfig groups the batching/retry/backfill tunables.
type PipelineConfig struct {
	EventBatchSize           int
	SyncIntervalSecs         int
	MaxRetries               int
	RetryDelayMS             int
	SignatureCacheSize       int
	CheckpointIntervalSecs   int
	BatchWriteSize           int
	BatchWriteWaitMS         int
	BatchWriteBufferSize     int
	BatchWriteConcurrent     int
}

// ReconnectConfig groups the subscriber reconnection tunables.
type ReconnectConfig struct {
	Mode             ReconnectMode
	SimpleIntervalMS int
	BackoffInitialMS int
	BackoffMaxMS     int
	BackoffMultiplier float64
	BackoffMaxRetries int // 0 means unbounded
}

// BackfillEventOverride is one of the indexed BACKFILL_EVENT_<i>_* triples.
type BackfillEventOverride struct {
	EventType     string
	ProgramID     string
	Enabled       bool
	CheckInterval time.Duration
}

// BackfillConfig groups the gap-filling scheduler tunables.
type BackfillConfig struct {
	Enabled             bool
	DefaultCheckInterval time.Duration
	Overrides           []BackfillEventOverride
}

// Config is the fully parsed, validated configuration surface.
type Config struct {
	Solana    SolanaConfig
	Store     StoreConfig
	Pipeline  PipelineConfig
	Reconnect ReconnectConfig
	Backfill  BackfillConfig
}

// Load selects the right .env file for CARGO_ENV (development, production,
// test, falling back to .env), then reads and validates every recognized
// environment variable. A missing .env file is not an error: the process
// environment may already carry everything it needs (e.g. in containers).
func Load() (*Config, error) {
	loadDotEnv()

	programIDs, err := parseProgramIDs(os.Getenv("SUBSCRIBED_PROGRAM_IDS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Solana: SolanaConfig{
			RPCURL:     os.Getenv("RPC_URL"),
			WSURL:      os.Getenv("WS_URL"),
			Commitment: envOr("SOLANA_COMMITMENT", "finalized"),
			ProgramIDs: programIDs,
			PrivateKey: os.Getenv("PRIVATE_KEY"),
		},
		Store: StoreConfig{
			MongoURI:      os.Getenv("MONGO_URI"),
			MongoDB:       os.Getenv("MONGO_DB"),
			MongoMaxConns: envUint(os.Getenv("MONGO_MAX_CONNECTIONS"), 100),
			MongoMinConns: envUint(os.Getenv("MONGO_MIN_CONNECTIONS"), 5),
		},
		Pipeline: PipelineConfig{
			EventBatchSize:         envInt(os.Getenv("EVENT_BATCH_SIZE"), 100),
			SyncIntervalSecs:       envInt(os.Getenv("EVENT_SYNC_INTERVAL_SECS"), 30),
			MaxRetries:             envInt(os.Getenv("EVENT_MAX_RETRIES"), 5),
			RetryDelayMS:           envInt(os.Getenv("EVENT_RETRY_DELAY_MS"), 1000),
			SignatureCacheSize:     envInt(os.Getenv("EVENT_SIGNATURE_CACHE_SIZE"), 10000),
			CheckpointIntervalSecs: envInt(os.Getenv("EVENT_CHECKPOINT_INTERVAL_SECS"), 15),
			BatchWriteSize:         envInt(os.Getenv("EVENT_BATCH_WRITE_SIZE"), 100),
			BatchWriteWaitMS:       envInt(os.Getenv("EVENT_BATCH_WRITE_WAIT_MS"), 2000),
			BatchWriteBufferSize:   envInt(os.Getenv("EVENT_BATCH_WRITE_BUFFER_SIZE"), 5000),
			BatchWriteConcurrent:   envInt(os.Getenv("EVENT_BATCH_WRITE_CONCURRENT"), 4),
		},
		Reconnect: ReconnectConfig{
			SimpleIntervalMS:  envInt(os.Getenv("WEBSOCKET_RECONNECT_INTERVAL_MS"), 5000),
			BackoffInitialMS:  envInt(os.Getenv("EVENT_BACKOFF_INITIAL_MS"), 500),
			BackoffMaxMS:      envInt(os.Getenv("EVENT_BACKOFF_MAX_MS"), 60000),
			BackoffMultiplier: envFloat(os.Getenv("EVENT_BACKOFF_MULTIPLIER"), 2.0),
			BackoffMaxRetries: envInt(os.Getenv("EVENT_BACKOFF_MAX_RETRIES"), 0),
		},
		Backfill: BackfillConfig{
			Enabled:              envBool(os.Getenv("BACKFILL_ENABLED"), true),
			DefaultCheckInterval: time.Duration(envInt(os.Getenv("BACKFILL_CHECK_INTERVAL_SECS"), 300)) * time.Second,
		},
	}

	if envBool(os.Getenv("WEBSOCKET_SIMPLE_RECONNECT"), false) {
		cfg.Reconnect.Mode = ReconnectFixed
	} else {
		cfg.Reconnect.Mode = ReconnectBackoff
	}

	cfg.Backfill.Overrides = parseBackfillOverrides(cfg.Backfill.DefaultCheckInterval)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv picks .env.<CARGO_ENV> (development|production|test), falling
// back to .env. Missing files are ignored; this mirrors the source
// environment selector rather than treating it as fatal.
func loadDotEnv() {
	env := strings.ToLower(os.Getenv("CARGO_ENV"))
	switch env {
	case "development", "production", "test":
		if err := godotenv.Load(".env." + env); err == nil {
			return
		}
	}
	_ = godotenv.Load()
}

func (c *Config) validate() error {
	n := len(c.Solana.ProgramIDs)
	if n == 0 {
		return fmt.Errorf("config: SUBSCRIBED_PROGRAM_IDS must contain at least one program id")
	}
	if n > 10 {
		return fmt.Errorf("config: SUBSCRIBED_PROGRAM_IDS lists %d programs, max is 10", n)
	}
	if c.Solana.RPCURL == "" {
		return fmt.Errorf("config: RPC_URL is required")
	}
	if c.Solana.WSURL == "" {
		return fmt.Errorf("config: WS_URL is required")
	}
	if c.Solana.Commitment != "confirmed" && c.Solana.Commitment != "finalized" {
		return fmt.Errorf("config: SOLANA_COMMITMENT must be 'confirmed' or 'finalized', got %q", c.Solana.Commitment)
	}
	if c.Store.MongoURI == "" {
		return fmt.Errorf("config: MONGO_URI is required")
	}
	if c.Store.MongoDB == "" {
		return fmt.Errorf("config: MONGO_DB is required")
	}
	if c.Reconnect.Mode == ReconnectBackoff && c.Reconnect.BackoffInitialMS > c.Reconnect.BackoffMaxMS {
		return fmt.Errorf("config: EVENT_BACKOFF_INITIAL_MS (%d) exceeds EVENT_BACKOFF_MAX_MS (%d)", c.Reconnect.BackoffInitialMS, c.Reconnect.BackoffMaxMS)
	}
	return nil
}

// parseProgramIDs splits the comma-separated list and rejects duplicates.
// Duplicate detection happens here rather than downstream so a
// misconfigured process fails before it subscribes to anything.
func parseProgramIDs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			return nil, fmt.Errorf("config: SUBSCRIBED_PROGRAM_IDS contains duplicate program id %q", p)
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// parseBackfillOverrides reads BACKFILL_EVENT_<i>_{TYPE,PROGRAM_ID,ENABLED,INTERVAL}
// for i in 1..10, skipping indices whose TYPE is unset.
func parseBackfillOverrides(defaultInterval time.Duration) []BackfillEventOverride {
	var out []BackfillEventOverride
	for i := 1; i <= 10; i++ {
		prefix := fmt.Sprintf("BACKFILL_EVENT_%d_", i)
		eventType := os.Getenv(prefix + "TYPE")
		if eventType == "" {
			continue
		}
		out = append(out, BackfillEventOverride{
			EventType:     eventType,
			ProgramID:     os.Getenv(prefix + "PROGRAM_ID"),
			Enabled:       envBool(os.Getenv(prefix+"ENABLED"), true),
			CheckInterval: time.Duration(envInt(os.Getenv(prefix+"INTERVAL"), int(defaultInterval.Seconds()))) * time.Second,
		})
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envUint(raw string, fallback uint64) uint64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
