package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/registry"
	"github.com/roach88/actionstore/internal/store"
	"github.com/roach88/actionstore/internal/testutil"
	"github.com/roach88/actionstore/internal/txn"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func testRecord(id string, seq int64) txn.OperationRecord {
	return txn.OperationRecord{
		ID:         id,
		Seq:        seq,
		Mode:       txn.ModeAuto,
		Stores:     []string{"A", "B"},
		Outcome:    txn.OutcomeRolledBack,
		Code:       txn.ErrCodeHandlerFailed,
		Reason:     "boom",
		Before:     map[string]any{"A": 1, "B": 2},
		After:      map[string]any{"A": 1, "B": 2},
		StartedAt:  testutil.Epoch,
		FinishedAt: testutil.Epoch.Add(1e9),
	}
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTestJournal(t)

	mode, err := j.pragma("journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	version, err := j.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestRecord_ReadBack(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testRecord("op-1", 1)))

	op, err := j.ReadOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", op.ID)
	assert.Equal(t, int64(1), op.Seq)
	assert.Equal(t, "auto", op.Mode)
	assert.Equal(t, "rolled_back", op.Outcome)
	assert.Equal(t, "HANDLER_FAILED", op.Code)
	assert.Equal(t, "boom", op.Reason)
	assert.Equal(t, []string{"A", "B"}, op.Stores)
	assert.JSONEq(t, `{"A":1,"B":2}`, string(op.Before))
	assert.Equal(t, `{"A":1,"B":2}`, string(op.After), "values are canonical JSON")
	assert.True(t, op.StartedAt.Equal(testutil.Epoch))
	assert.True(t, op.FinishedAt.Equal(testutil.Epoch.Add(1e9)))
}

func TestRecord_DuplicateIDIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testRecord("op-1", 1)))
	dup := testRecord("op-1", 99)
	dup.Reason = "second"
	require.NoError(t, j.Record(ctx, dup))

	ops, err := j.ReadOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "boom", ops[0].Reason)
}

func TestRecord_NilValuesStoredAsNull(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := testRecord("op-1", 1)
	rec.Before, rec.After = nil, nil
	rec.Outcome = txn.OutcomeFailed
	require.NoError(t, j.Record(ctx, rec))

	op, err := j.ReadOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Nil(t, op.Before)
	assert.Nil(t, op.After)
}

func TestRecord_UnencodableValueFallsBackToText(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := testRecord("op-1", 1)
	rec.Before = map[string]any{"A": 1, "ch": make(chan int)}
	require.NoError(t, j.Record(ctx, rec))

	op, err := j.ReadOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Contains(t, string(op.Before), `"A":1`)
	assert.Contains(t, string(op.Before), `"ch":"0x`)
}

func TestReadOperations_OrderAndLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, testRecord("op-c", 3)))
	require.NoError(t, j.Record(ctx, testRecord("op-a", 1)))
	require.NoError(t, j.Record(ctx, testRecord("op-b", 2)))

	ops, err := j.ReadOperations(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	assert.Equal(t, []string{"op-a", "op-b", "op-c"}, ids)

	limited, err := j.ReadOperations(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReadOperations_EmptyIsNotNil(t *testing.T) {
	j := openTestJournal(t)

	ops, err := j.ReadOperations(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, ops)
	assert.Empty(t, ops)
}

func TestReadOperation_NotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.ReadOperation(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestJournal_AsCoordinatorRecorder(t *testing.T) {
	j := openTestJournal(t)

	reg := registry.New("test")
	a := store.New("A", 1)
	reg.Register("A", a)
	ctx := registry.WithRegistry(context.Background(), reg)

	c := txn.New([]string{"A"},
		txn.WithRecorder(j),
		txn.WithIDGenerator(testutil.NewSequentialIDGenerator("op")),
		txn.WithClock(clock.New()),
		txn.WithNow(testutil.NewStepTime().Now),
	)

	require.NoError(t, c.Run(ctx, nil, nil, func(context.Context, any, *txn.Controller) error {
		a.SetValue(2)
		return nil
	}))
	require.Error(t, c.Run(ctx, nil, nil, func(context.Context, any, *txn.Controller) error {
		a.SetValue(3)
		return errors.New("fail")
	}))

	ops, err := j.ReadOperations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "committed", ops[0].Outcome)
	assert.Equal(t, `{"A":2}`, string(ops[0].After))
	assert.Equal(t, "rolled_back", ops[1].Outcome)
	assert.Equal(t, `{"A":2}`, string(ops[1].After))

	counts, err := j.CountByOutcome(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"committed": 1, "rolled_back": 1}, counts)
}
