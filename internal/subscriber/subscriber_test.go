package subscriber

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/config"
	"solana-event-core/internal/errs"
	"solana-event-core/internal/types"
)

func newTestSubscriber(mode config.ReconnectMode) *Subscriber {
	cfg := config.ReconnectConfig{
		Mode:              mode,
		SimpleIntervalMS:  10,
		BackoffInitialMS:  5,
		BackoffMaxMS:      40,
		BackoffMultiplier: 2.0,
	}
	return New(solana.PublicKey{}, "ws://127.0.0.1:0", rpc.CommitmentFinalized, cfg, logrus.NewEntry(logrus.New()))
}

func TestSubscriber_LastMessageAt_ZeroBeforeAnyMessage(t *testing.T) {
	s := newTestSubscriber(config.ReconnectFixed)
	require.True(t, s.LastMessageAt().IsZero())
}

func TestSubscriber_BackoffDelay_GrowsWithFailures(t *testing.T) {
	s := newTestSubscriber(config.ReconnectBackoff)

	first := s.backoffDelay()
	s.consecutiveFailures.Store(3)
	later := s.backoffDelay()

	require.Greater(t, later, first)
	require.LessOrEqual(t, later, time.Duration(s.cfg.BackoffMaxMS)*time.Millisecond)
}

func TestSubscriber_Wait_ReturnsFalseWhenStopped(t *testing.T) {
	s := newTestSubscriber(config.ReconnectFixed)
	s.cfg.SimpleIntervalMS = 60_000
	s.Stop()

	done := make(chan bool, 1)
	go func() { done <- s.wait(context.Background()) }()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("wait did not return promptly after Stop")
	}
}

func TestSubscriber_Run_EscalatesAfterBackoffMaxRetriesExhausted(t *testing.T) {
	s := newTestSubscriber(config.ReconnectBackoff)
	s.cfg.BackoffMaxRetries = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan types.RawLogBatch, 1)
	done := make(chan struct{})
	go func() {
		s.run(ctx, out)
		close(done)
	}()

	select {
	case err := <-s.Fatal():
		require.ErrorIs(t, err, errs.ErrReconnectExhausted)
	case <-ctx.Done():
		t.Fatal("subscriber did not escalate before context deadline")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run loop did not exit after escalating")
	}
}

func TestSubscriber_Wait_FixedModeHonorsConfiguredInterval(t *testing.T) {
	s := newTestSubscriber(config.ReconnectFixed)

	start := time.Now()
	ok := s.wait(context.Background())
	elapsed := time.Since(start)

	require.True(t, ok)
	require.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
}
