package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/actionstore/internal/canon"
	"github.com/roach88/actionstore/internal/txn"
)

var _ txn.Recorder = (*Journal)(nil)

// Record appends an operation record. Uses ON CONFLICT(id) DO NOTHING, so
// recording the same operation twice is a no-op.
func (j *Journal) Record(ctx context.Context, rec txn.OperationRecord) error {
	stores, err := canon.Marshal(toAnySlice(rec.Stores))
	if err != nil {
		return fmt.Errorf("record operation %s: stores: %w", rec.ID, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO operations
		(id, seq, mode, outcome, code, reason, stores, before_values, after_values, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		string(rec.Mode),
		string(rec.Outcome),
		string(rec.Code),
		rec.Reason,
		string(stores),
		marshalValues(rec.Before),
		marshalValues(rec.After),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record operation %s: %w", rec.ID, err)
	}
	return nil
}

func toAnySlice(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

// marshalValues encodes a store-value map as canonical JSON. Values that
// have no JSON form (funcs, channels, NaN) are stored as their %v text so
// one odd store never drops the whole row. A nil map is stored as NULL.
func marshalValues(values map[string]any) any {
	if values == nil {
		return nil
	}
	safe := make(map[string]any, len(values))
	for k, v := range values {
		if _, err := canon.Marshal(v); err != nil {
			safe[k] = fmt.Sprintf("%v", v)
			continue
		}
		safe[k] = v
	}
	b, err := canon.Marshal(safe)
	if err != nil {
		return nil
	}
	return string(b)
}
