package writer

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/checkpoint"
	"solana-event-core/internal/retry"
	"solana-event-core/internal/store"
	"solana-event-core/internal/types"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestWriter(t *testing.T, st store.Store, batchSize int) (*Writer, *checkpoint.Manager) {
	t.Helper()
	cp := checkpoint.NewManager(st, testLogger())
	w := New(st, cp, Config{BatchSize: batchSize, MaxWait: time.Hour, ConcurrentSinks: 2}, testLogger())
	w.SetRetryManager(retry.Config{MaxSize: 100, MaxRetries: 3, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, testLogger())
	return w, cp
}

// testProgramID is shared by every event depositEvent builds, so events
// in one test advance the same checkpoint.
var testProgramID = solana.NewWallet().PublicKey()

func depositEvent(sig solana.Signature, slot uint64, user solana.PublicKey) types.DecodedEvent {
	return types.DepositEvent{
		EventMeta: types.EventMeta{Signature: sig, Slot: slot, ProcessedAt: time.Now().UTC()},
		ProgramID: testProgramID,
		User:      user,
		Vault:     solana.NewWallet().PublicKey(),
		Mint:      solana.NewWallet().PublicKey(),
		Amount:    10,
	}
}

func TestWriter_Submit_FlushesOnBatchSizeAndAdvancesCheckpoint(t *testing.T) {
	st := store.NewMemStore()
	w, cp := newTestWriter(t, st, 2)

	user := solana.NewWallet().PublicKey()
	ev1 := depositEvent(solana.Signature{1}, 10, user)
	ev2 := depositEvent(solana.Signature{2}, 20, user)

	progID := ev1.SourceProgramID()
	w.Submit(context.Background(), []types.DecodedEvent{ev1, ev2})

	n, err := st.Count(context.Background(), "DepositEvents", map[string]interface{}{})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, ok := cp.Get(progID, "DepositEvent")
	require.True(t, ok)
	require.EqualValues(t, 20, got.Slot)
}

func TestWriter_Submit_DuplicateEventsCountAsSuccessNotFailure(t *testing.T) {
	st := store.NewMemStore()
	require.NoError(t, st.CreateIndex(context.Background(), "DepositEvents", store.IndexSpec{
		Keys: map[string]int{"user": 1, "signature": 1}, Unique: true,
	}))
	w, _ := newTestWriter(t, st, 1)

	user := solana.NewWallet().PublicKey()
	ev := depositEvent(solana.Signature{9}, 5, user)

	w.Submit(context.Background(), []types.DecodedEvent{ev})
	w.Submit(context.Background(), []types.DecodedEvent{ev})

	n, err := st.Count(context.Background(), "DepositEvents", map[string]interface{}{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.EqualValues(t, 1, w.DuplicateTotal())
}

func TestWriter_Run_FlushesBufferedEventsBelowBatchSizeOnTimeout(t *testing.T) {
	st := store.NewMemStore()
	cp := checkpoint.NewManager(st, testLogger())
	w := New(st, cp, Config{BatchSize: 100, MaxWait: 10 * time.Millisecond, ConcurrentSinks: 1}, testLogger())
	w.SetRetryManager(retry.Config{MaxSize: 10, MaxRetries: 3, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	user := solana.NewWallet().PublicKey()
	w.Submit(context.Background(), []types.DecodedEvent{depositEvent(solana.Signature{3}, 7, user)})

	<-done

	n, err := st.Count(context.Background(), "DepositEvents", map[string]interface{}{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestWriter_Poison_PersistsToPoisonCollection(t *testing.T) {
	st := store.NewMemStore()
	w, _ := newTestWriter(t, st, 1)

	ev := depositEvent(solana.Signature{4}, 1, solana.NewWallet().PublicKey())
	w.Poison(context.Background(), ev, "store rejected shape")

	n, err := st.Count(context.Background(), PoisonCollection, map[string]interface{}{})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.EqualValues(t, 1, w.PoisonTotal())
}
