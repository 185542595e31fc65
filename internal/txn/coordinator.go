package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/registry"
)

// Handler is the action-pipeline invocation contract. ctrl.Abort is the
// only way for a handler to cancel its operation.
type Handler func(ctx context.Context, payload any, ctrl *Controller) error

// TxHandler is a Handler that drives an explicit Transaction.
type TxHandler func(ctx context.Context, payload any, ctrl *Controller, tx *Transaction) error

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder sets the operation recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithIDGenerator sets the operation ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Coordinator) {
		c.ids = g
	}
}

// WithClock sets the logical clock used to sequence operations.
func WithClock(cl *clock.Clock) Option {
	return func(c *Coordinator) {
		c.clock = cl
	}
}

// WithNow sets the wall-time source for operation records.
func WithNow(now clock.NowFunc) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// Coordinator runs handlers over a fixed set of named stores with
// snapshot-and-restore semantics.
//
// The registry is resolved from the context of each call
// (registry.WithRegistry). Two modes are offered:
//   - Run (auto-rollback): values are captured before the handler; a
//     returned error, a panic, or ctrl.Abort restores them all.
//   - RunTx (explicit): the handler drives Begin/Commit/Rollback; returning
//     with an open transaction forces a rollback and reports TX_MISUSE.
//
// Operations are not isolated from each other: two operations touching the
// same store race, and the last SetValue wins. No timeout is applied; ctx is
// passed to the handler unchanged.
type Coordinator struct {
	names    []string
	recorder Recorder
	ids      IDGenerator
	clock    *clock.Clock
	now      clock.NowFunc
}

// New creates a coordinator over the given store names.
func New(names []string, opts ...Option) *Coordinator {
	c := &Coordinator{
		names: append([]string(nil), names...),
		ids:   UUIDv7Generator{},
		clock: clock.Default(),
		now:   clock.SystemNow,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns the coordinated store names.
func (c *Coordinator) Names() []string {
	return append([]string(nil), c.names...)
}

type operation struct {
	id      string
	seq     int64
	mode    Mode
	started time.Time
	targets []captured
	before  []capturedValue
}

// resolve looks up the registry and every coordinated store. Nothing is
// captured when it fails.
func (c *Coordinator) resolve(ctx context.Context, opID string) ([]captured, error) {
	reg, ok := registry.FromContext(ctx)
	if !ok {
		return nil, &Error{
			Code:    ErrCodeRegistryUnavailable,
			Message: "no store registry in context; use registry.WithRegistry",
			OpID:    opID,
			Stores:  c.Names(),
		}
	}

	targets := make([]captured, 0, len(c.names))
	var missing []string
	for _, name := range c.names {
		h, ok := reg.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		targets = append(targets, captured{name: name, handle: h})
	}
	if len(missing) > 0 {
		return nil, &Error{
			Code:    ErrCodeStoreNotFound,
			Message: fmt.Sprintf("stores not registered in %q: %s", reg.Name(), strings.Join(missing, ", ")),
			OpID:    opID,
			Stores:  c.Names(),
		}
	}
	return targets, nil
}

func (c *Coordinator) start(ctx context.Context, mode Mode) (*operation, error) {
	op := &operation{
		id:      c.ids.Generate(),
		seq:     c.clock.Next(),
		mode:    mode,
		started: c.now(),
	}
	targets, err := c.resolve(ctx, op.id)
	if err != nil {
		c.finish(ctx, op, OutcomeFailed, err, "")
		return nil, err
	}
	op.targets = targets
	op.before = captureValues(targets)

	slog.Debug("coordinated operation started",
		"op", op.id,
		"seq", op.seq,
		"mode", mode,
		"stores", c.names,
	)
	return op, nil
}

func (c *Coordinator) finish(ctx context.Context, op *operation, outcome Outcome, err error, reason string) {
	rec := OperationRecord{
		ID:         op.id,
		Seq:        op.seq,
		Mode:       op.mode,
		Stores:     c.Names(),
		Outcome:    outcome,
		Reason:     reason,
		StartedAt:  op.started,
		FinishedAt: c.now(),
	}
	var te *Error
	if errors.As(err, &te) {
		rec.Code = te.Code
	}
	if rec.Reason == "" && err != nil {
		rec.Reason = err.Error()
	}
	if op.before != nil {
		rec.Before = valueMap(op.before)
		rec.After = valueMap(captureValues(op.targets))
	}

	switch outcome {
	case OutcomeRolledBack:
		slog.Warn("coordinated operation rolled back",
			"op", op.id,
			"code", rec.Code,
			"reason", rec.Reason,
		)
	case OutcomeFailed:
		slog.Warn("coordinated operation failed",
			"op", op.id,
			"code", rec.Code,
			"reason", rec.Reason,
		)
	default:
		slog.Debug("coordinated operation committed", "op", op.id)
	}

	if c.recorder == nil {
		return
	}
	if rerr := c.recorder.Record(ctx, rec); rerr != nil {
		slog.Warn("failed to record operation",
			"op", op.id,
			"error", rerr,
		)
	}
}

// invoke runs fn, converting a panic into an error.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn()
}

// Run executes h in auto-rollback mode.
//
// A nil ctrl is replaced with a fresh Controller. Abort restores the
// captured values synchronously; the values are restored again when the
// handler returns so later writes by an aborted handler do not survive.
func (c *Coordinator) Run(ctx context.Context, payload any, ctrl *Controller, h Handler) error {
	if ctrl == nil {
		ctrl = NewController()
	}
	op, err := c.start(ctx, ModeAuto)
	if err != nil {
		return err
	}

	var (
		mu       sync.Mutex
		abortErr error
	)
	unbind := ctrl.bind(func(string) {
		rerr := restore(op.before)
		mu.Lock()
		abortErr = rerr
		mu.Unlock()
	})

	var herr error
	if !ctrl.Aborted() {
		herr = invoke(func() error { return h(ctx, payload, ctrl) })
	}
	unbind()

	switch {
	case ctrl.Aborted():
		rerr := restore(op.before)
		mu.Lock()
		cause := errors.Join(herr, abortErr, rerr)
		mu.Unlock()
		e := &Error{
			Code:    ErrCodeAborted,
			Message: "operation aborted: " + ctrl.Reason(),
			OpID:    op.id,
			Stores:  c.Names(),
			Cause:   cause,
		}
		c.finish(ctx, op, OutcomeRolledBack, e, ctrl.Reason())
		return e

	case herr != nil:
		rerr := restore(op.before)
		e := &Error{
			Code:    ErrCodeHandlerFailed,
			Message: "handler failed, stores restored",
			OpID:    op.id,
			Stores:  c.Names(),
			Cause:   errors.Join(herr, rerr),
		}
		c.finish(ctx, op, OutcomeRolledBack, e, "")
		return e
	}

	c.finish(ctx, op, OutcomeCommitted, nil, "")
	return nil
}

// RunTx executes h in explicit transaction mode.
//
// Abort rolls back an active transaction synchronously. A handler error
// rolls back an active transaction and is reported as HANDLER_FAILED; a
// nil return with an active transaction is rolled back and reported as
// TX_MISUSE.
func (c *Coordinator) RunTx(ctx context.Context, payload any, ctrl *Controller, h TxHandler) error {
	if ctrl == nil {
		ctrl = NewController()
	}
	op, err := c.start(ctx, ModeExplicit)
	if err != nil {
		return err
	}
	tx := newTransaction(op.id, op.targets)

	var (
		mu       sync.Mutex
		abortErr error
	)
	unbind := ctrl.bind(func(string) {
		rerr := tx.Rollback()
		mu.Lock()
		abortErr = rerr
		mu.Unlock()
	})

	var herr error
	if !ctrl.Aborted() {
		herr = invoke(func() error { return h(ctx, payload, ctrl, tx) })
	}
	unbind()

	open := tx.InTransaction()
	rerr := tx.Rollback()
	mu.Lock()
	rerr = errors.Join(abortErr, rerr)
	mu.Unlock()

	outcome := OutcomeCommitted
	if tx.wasRolledBack() {
		outcome = OutcomeRolledBack
	}

	var e *Error
	switch {
	case ctrl.Aborted():
		e = &Error{
			Code:    ErrCodeAborted,
			Message: "operation aborted: " + ctrl.Reason(),
			Cause:   errors.Join(herr, rerr),
		}
	case IsMisuse(herr):
		e = &Error{
			Code:    ErrCodeMisuse,
			Message: "transaction misused by handler",
			Cause:   errors.Join(herr, rerr),
		}
	case herr != nil:
		e = &Error{
			Code:    ErrCodeHandlerFailed,
			Message: "handler failed",
			Cause:   errors.Join(herr, rerr),
		}
	case open:
		e = &Error{
			Code:    ErrCodeMisuse,
			Message: "handler returned with an open transaction; rolled back",
			Cause:   rerr,
		}
	}

	if e == nil {
		c.finish(ctx, op, outcome, nil, "")
		return nil
	}
	e.OpID = op.id
	e.Stores = c.Names()
	if outcome == OutcomeCommitted {
		outcome = OutcomeFailed
	}
	c.finish(ctx, op, outcome, e, ctrl.Reason())
	return e
}

// Open resolves the coordinated stores and returns an idle Transaction
// for callers that manage boundaries themselves. Open is not recorded.
func (c *Coordinator) Open(ctx context.Context) (*Transaction, error) {
	id := c.ids.Generate()
	targets, err := c.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return newTransaction(id, targets), nil
}

// Wrap adapts h into a Handler that runs in auto-rollback mode.
func (c *Coordinator) Wrap(h Handler) Handler {
	return func(ctx context.Context, payload any, ctrl *Controller) error {
		return c.Run(ctx, payload, ctrl, h)
	}
}

// WrapTx adapts h into a Handler that runs in explicit transaction mode.
func (c *Coordinator) WrapTx(h TxHandler) Handler {
	return func(ctx context.Context, payload any, ctrl *Controller) error {
		return c.RunTx(ctx, payload, ctrl, h)
	}
}
