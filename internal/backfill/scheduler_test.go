package backfill

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"solana-event-core/internal/checkpoint"
	"solana-event-core/internal/rpcclient"
	"solana-event-core/internal/store"
	"solana-event-core/internal/types"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestScheduler(t *testing.T, st store.Store) *Scheduler {
	t.Helper()
	cp := checkpoint.NewManager(st, testLogger())
	return &Scheduler{cp: cp, st: st, log: testLogger()}
}

func insertDeposit(t *testing.T, st store.Store, sig solana.Signature, slot uint64) {
	t.Helper()
	_, _, err := st.InsertMany(context.Background(), "DepositEvents", []interface{}{
		map[string]interface{}{"signature": sig.String(), "slot": slot, "user": "u1"},
	})
	require.NoError(t, err)
}

func TestDetermineRange_NoCheckpointEmptyCollection_BothZero(t *testing.T) {
	s := newTestScheduler(t, store.NewMemStore())

	until, before, err := s.determineRange(context.Background(), "prog", "DepositEvent", "DepositEvents")
	require.NoError(t, err)
	require.True(t, until.isZero())
	require.True(t, before.isZero())
}

func TestDetermineRange_NoCheckpointNonEmptyCollection_SpansOldestToLatest(t *testing.T) {
	st := store.NewMemStore()
	sigOld := solana.Signature{1}
	sigNew := solana.Signature{2}
	insertDeposit(t, st, sigOld, 10)
	insertDeposit(t, st, sigNew, 20)

	s := newTestScheduler(t, st)
	until, before, err := s.determineRange(context.Background(), "prog", "DepositEvent", "DepositEvents")
	require.NoError(t, err)
	require.Equal(t, sigOld, until.Signature)
	require.Equal(t, sigNew, before.Signature)
}

func TestDetermineRange_WithCheckpoint_UntilIsCheckpointBeforeIsLatestKnown(t *testing.T) {
	st := store.NewMemStore()
	sigNew := solana.Signature{2}
	insertDeposit(t, st, sigNew, 20)

	s := newTestScheduler(t, st)
	cpSig := solana.Signature{9}
	s.cp.Advance("prog", "DepositEvent", cpSig, 5)

	until, before, err := s.determineRange(context.Background(), "prog", "DepositEvent", "DepositEvents")
	require.NoError(t, err)
	require.Equal(t, cpSig, until.Signature)
	require.Equal(t, sigNew, before.Signature)
}

func TestFindMissing_ReturnsOnlyAbsentSignatures(t *testing.T) {
	st := store.NewMemStore()
	present := solana.Signature{1}
	missing := solana.Signature{2}
	insertDeposit(t, st, present, 10)

	s := newTestScheduler(t, st)
	fetched := []rpcclient.SignatureInfo{
		{Signature: present, Slot: 10},
		{Signature: missing, Slot: 11},
	}

	result, err := s.findMissing(context.Background(), "DepositEvents", fetched)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, missing, result[0].Signature)
}

func TestFindMissing_ChunksAcrossMultipleOf50(t *testing.T) {
	st := store.NewMemStore()
	s := newTestScheduler(t, st)

	var fetched []rpcclient.SignatureInfo
	for i := 0; i < 120; i++ {
		var sig solana.Signature
		sig[0] = byte(i)
		sig[1] = byte(i >> 8)
		fetched = append(fetched, rpcclient.SignatureInfo{Signature: sig, Slot: uint64(i)})
	}

	result, err := s.findMissing(context.Background(), "DepositEvents", fetched)
	require.NoError(t, err)
	require.Len(t, result, 120)
}

func TestScanDocument_IncludesCompletedAtOnlyWhenSet(t *testing.T) {
	scan := &types.ScanRecord{ScanID: "abc", Status: types.ScanRunning, StartedAt: time.Now().UTC()}
	doc := scanDocument(scan)
	_, hasCompleted := doc["completed_at"]
	require.False(t, hasCompleted)

	now := time.Now().UTC()
	scan.CompletedAt = &now
	doc = scanDocument(scan)
	require.Equal(t, now, doc["completed_at"])
}
