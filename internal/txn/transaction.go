package txn

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/actionstore/internal/store"
)

type captured struct {
	name   string
	handle store.Handle
}

type capturedValue struct {
	captured
	prior any
}

func captureValues(targets []captured) []capturedValue {
	out := make([]capturedValue, len(targets))
	for i, t := range targets {
		out[i] = capturedValue{captured: t, prior: t.handle.Any()}
	}
	return out
}

// restore writes every captured value back through SetAny. Equality gating
// keeps stores that already hold their prior value silent.
func restore(values []capturedValue) error {
	var errs []error
	for _, v := range values {
		if _, err := v.handle.SetAny(v.prior); err != nil {
			errs = append(errs, fmt.Errorf("restore %q: %w", v.name, err))
		}
	}
	return errors.Join(errs...)
}

func valueMap(values []capturedValue) map[string]any {
	m := make(map[string]any, len(values))
	for _, v := range values {
		m[v.name] = v.prior
	}
	return m
}

// Transaction is the explicit begin/commit/rollback API over a fixed set of
// stores.
//
// State machine: Idle -(Begin)-> Active -(Commit|Rollback)-> Idle. Begin
// while Active and Commit while Idle are misuse errors; Rollback while Idle
// is a no-op.
//
// Thread-safety: all methods are safe for concurrent use.
type Transaction struct {
	mu       sync.Mutex
	opID     string
	targets  []captured
	snapshot []capturedValue
	active   bool

	rolledBack bool
}

func newTransaction(opID string, targets []captured) *Transaction {
	return &Transaction{opID: opID, targets: targets}
}

func (tx *Transaction) names() []string {
	names := make([]string, len(tx.targets))
	for i, t := range tx.targets {
		names[i] = t.name
	}
	return names
}

func (tx *Transaction) misuse(msg string) *Error {
	return &Error{Code: ErrCodeMisuse, Message: msg, OpID: tx.opID, Stores: tx.names()}
}

// Begin captures the current value of every store and marks the
// transaction active.
func (tx *Transaction) Begin() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.active {
		return tx.misuse("begin called while a transaction is active")
	}
	tx.snapshot = captureValues(tx.targets)
	tx.active = true
	return nil
}

// Commit accepts the current state and discards the captured values.
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.active {
		return tx.misuse("commit called without an active transaction")
	}
	tx.snapshot = nil
	tx.active = false
	return nil
}

// Rollback restores the captured values. It is a no-op when no
// transaction is active.
func (tx *Transaction) Rollback() error {
	tx.mu.Lock()
	if !tx.active {
		tx.mu.Unlock()
		return nil
	}
	snap := tx.snapshot
	tx.snapshot = nil
	tx.active = false
	tx.rolledBack = true
	tx.mu.Unlock()

	return restore(snap)
}

// InTransaction reports whether a transaction is active.
func (tx *Transaction) InTransaction() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.active
}

// wasRolledBack reports whether any rollback restored values.
func (tx *Transaction) wasRolledBack() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.rolledBack
}
