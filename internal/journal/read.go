package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by ReadOperation for an unknown ID.
var ErrNotFound = errors.New("operation not found")

// Operation is one journal row. Before and After hold canonical JSON
// objects keyed by store name, or nil when the operation failed before
// capturing anything.
type Operation struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Mode       string          `json:"mode"`
	Outcome    string          `json:"outcome"`
	Code       string          `json:"code,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Stores     []string        `json:"stores"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

const selectOperation = `
	SELECT id, seq, mode, outcome, code, reason, stores, before_values, after_values, started_at, finished_at
	FROM operations
`

// ReadOperations returns up to limit operations ordered by seq ASC, id ASC.
// limit <= 0 returns every row. Returns an empty slice, not nil, when the
// journal is empty.
func (j *Journal) ReadOperations(ctx context.Context, limit int) ([]Operation, error) {
	query := selectOperation + ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

// ReadOperation returns the operation with the given ID.
func (j *Journal) ReadOperation(ctx context.Context, id string) (Operation, error) {
	row := j.db.QueryRowContext(ctx, selectOperation+` WHERE id = ?`, id)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Operation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return op, err
}

// CountByOutcome returns the number of recorded operations per outcome.
func (j *Journal) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM operations GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count operations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(s scanner) (Operation, error) {
	var (
		op                Operation
		stores            string
		before, after     sql.NullString
		started, finished string
	)
	if err := s.Scan(&op.ID, &op.Seq, &op.Mode, &op.Outcome, &op.Code, &op.Reason,
		&stores, &before, &after, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Operation{}, err
		}
		return Operation{}, fmt.Errorf("scan operation: %w", err)
	}

	if err := json.Unmarshal([]byte(stores), &op.Stores); err != nil {
		return Operation{}, fmt.Errorf("operation %s: decode stores: %w", op.ID, err)
	}
	if before.Valid {
		op.Before = json.RawMessage(before.String)
	}
	if after.Valid {
		op.After = json.RawMessage(after.String)
	}

	var err error
	if op.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Operation{}, fmt.Errorf("operation %s: started_at: %w", op.ID, err)
	}
	if op.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Operation{}, fmt.Errorf("operation %s: finished_at: %w", op.ID, err)
	}
	return op, nil
}
