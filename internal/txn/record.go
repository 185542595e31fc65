package txn

import (
	"context"
	"time"
)

// Mode identifies how an operation was coordinated.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeExplicit Mode = "explicit"
)

// Outcome is the terminal state of a coordinated operation.
type Outcome string

const (
	// OutcomeCommitted: every captured store kept its new value.
	OutcomeCommitted Outcome = "committed"

	// OutcomeRolledBack: every captured store was restored.
	OutcomeRolledBack Outcome = "rolled_back"

	// OutcomeFailed: the operation failed without restoring anything,
	// either during setup or after an explicit commit.
	OutcomeFailed Outcome = "failed"
)

// OperationRecord describes one finished coordinated operation.
type OperationRecord struct {
	ID         string
	Seq        int64
	Mode       Mode
	Stores     []string
	Outcome    Outcome
	Code       ErrorCode
	Reason     string
	Before     map[string]any
	After      map[string]any
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder receives a record of every coordinated operation.
//
// Recording is diagnostic only: a Recorder failure is logged and never
// changes the operation's result.
type Recorder interface {
	Record(ctx context.Context, rec OperationRecord) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec OperationRecord) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, rec OperationRecord) error {
	return f(ctx, rec)
}
