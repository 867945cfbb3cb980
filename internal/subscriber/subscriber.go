// Package subscriber maintains one long-lived WebSocket logsSubscribe
// stream per configured program, generalizing the teacher's rpc.Dial
// retry loop (internal/rpc/client.go) from a one-shot HTTP dial into a
// reconnecting streaming subscription, in the shape shown by
// oasis-core's client.go (cenkalti/backoff) and the bookYEA oracle
// watcher's ws.Connect/LogsSubscribeMentions/sub.Recv pattern.
package subscriber

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sirupsen/logrus"

	"solana-event-core/internal/config"
	"solana-event-core/internal/errs"
	"solana-event-core/internal/types"
)

// Subscriber owns a single program's log stream and reconnects it
// according to the configured ReconnectMode.
type Subscriber struct {
	programID  solana.PublicKey
	wsURL      string
	commitment rpc.CommitmentType
	cfg        config.ReconnectConfig
	log        *logrus.Entry

	lastMessageAt       atomic.Int64 // unix nanos
	consecutiveFailures atomic.Int64
	currentBackoff      atomic.Int64 // nanos, informational only
	reconnectsTotal     atomic.Int64

	mu     sync.Mutex
	conn   *ws.Client
	closed chan struct{}
	fatal  chan error
}

// New builds a Subscriber for programID. log should already be tagged
// with the program's address by the caller.
func New(programID solana.PublicKey, wsURL string, commitment rpc.CommitmentType, cfg config.ReconnectConfig, log *logrus.Entry) *Subscriber {
	return &Subscriber{
		programID:  programID,
		wsURL:      wsURL,
		commitment: commitment,
		cfg:        cfg,
		log:        log,
		closed:     make(chan struct{}),
		fatal:      make(chan error, 1),
	}
}

// LastMessageAt is the time of the most recently received log message,
// the zero Time if none has arrived yet.
func (s *Subscriber) LastMessageAt() time.Time {
	nanos := s.lastMessageAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// ConsecutiveFailures is the number of reconnect attempts since the last
// successful subscription.
func (s *Subscriber) ConsecutiveFailures() int64 { return s.consecutiveFailures.Load() }

// ReconnectsTotal is the cumulative number of reconnect attempts since
// the subscriber started, for the per-program health snapshot.
func (s *Subscriber) ReconnectsTotal() int64 { return s.reconnectsTotal.Load() }

// CurrentBackoff is the delay before the next reconnect attempt, for
// health reporting.
func (s *Subscriber) CurrentBackoff() time.Duration {
	return time.Duration(s.currentBackoff.Load())
}

// Fatal yields an error exactly once if, in ReconnectBackoff mode with a
// configured BackoffMaxRetries cap, the subscriber exhausts its allotted
// attempts without a successful subscription (spec §4.A: "subscription
// setup errors after max attempts (if bounded) escalate to the
// supervisor"). The run loop exits after sending here; callers should
// select on this alongside ctx and react by cancelling the process.
func (s *Subscriber) Fatal() <-chan error { return s.fatal }

// Start connects and begins streaming RawLogBatch values on the returned
// channel until ctx is cancelled or Stop is called. The channel is
// closed on exit.
func (s *Subscriber) Start(ctx context.Context) <-chan types.RawLogBatch {
	out := make(chan types.RawLogBatch, 256)
	go s.run(ctx, out)
	return out
}

// Stop signals the subscriber's run loop to exit.
func (s *Subscriber) Stop() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

func (s *Subscriber) run(ctx context.Context, out chan<- types.RawLogBatch) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}

		if err := s.subscribeOnce(ctx, out); err != nil {
			failures := s.consecutiveFailures.Add(1)
			s.reconnectsTotal.Add(1)
			s.log.WithError(err).Warn("subscription ended, reconnecting")

			if s.cfg.Mode == config.ReconnectBackoff && s.cfg.BackoffMaxRetries > 0 && failures >= int64(s.cfg.BackoffMaxRetries) {
				fatalErr := fmt.Errorf("%w: %d consecutive failures reached BackoffMaxRetries=%d: %v", errs.ErrReconnectExhausted, failures, s.cfg.BackoffMaxRetries, err)
				s.log.WithError(fatalErr).Error("reconnect attempts exhausted, escalating to supervisor")
				select {
				case s.fatal <- fatalErr:
				default:
				}
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		default:
		}

		if !s.wait(ctx) {
			return
		}
	}
}

// wait blocks for the reconnect delay dictated by cfg.Mode, returning
// false if ctx/closed fired during the wait.
func (s *Subscriber) wait(ctx context.Context) bool {
	var delay time.Duration

	switch s.cfg.Mode {
	case config.ReconnectFixed:
		delay = time.Duration(s.cfg.SimpleIntervalMS) * time.Millisecond
	default:
		delay = s.backoffDelay()
	}
	s.currentBackoff.Store(int64(delay))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.closed:
		return false
	case <-t.C:
		return true
	}
}

// backoffDelay derives the next exponential-backoff delay from the
// consecutive-failure count. The interval is capped at BackoffMax before
// backoff's default ±50% jitter is applied, so one delay can reach
// 1.5×BackoffMax.
func (s *Subscriber) backoffDelay() time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(s.cfg.BackoffInitialMS) * time.Millisecond
	b.MaxInterval = time.Duration(s.cfg.BackoffMaxMS) * time.Millisecond
	b.Multiplier = s.cfg.BackoffMultiplier
	b.MaxElapsedTime = 0

	var d time.Duration
	for i := int64(0); i < s.consecutiveFailures.Load(); i++ {
		d = b.NextBackOff()
	}
	if d <= 0 {
		d = b.InitialInterval
	}
	return d
}

// subscribeOnce opens one WebSocket connection, subscribes to program
// logs, and forwards messages until the stream errors or closes.
func (s *Subscriber) subscribeOnce(ctx context.Context, out chan<- types.RawLogBatch) error {
	conn, err := ws.Connect(ctx, s.wsURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	sub, err := conn.LogsSubscribeMentions(s.programID, s.commitment)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	s.consecutiveFailures.Store(0)
	s.log.Info("subscribed to program logs")

	for {
		got, err := sub.Recv(ctx)
		if err != nil {
			return err
		}

		s.lastMessageAt.Store(time.Now().UnixNano())

		batch := types.RawLogBatch{
			Signature: got.Value.Signature,
			Slot:      got.Context.Slot,
			Logs:      got.Value.Logs,
		}
		if got.Value.Err != nil {
			batch.Err = errTransactionFailed
		}

		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		}
	}
}

var errTransactionFailed = &txFailedErr{}

type txFailedErr struct{}

func (*txFailedErr) Error() string { return "subscriber: transaction reported an on-chain error" }
