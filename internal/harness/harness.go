package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/actionstore/internal/clock"
	"github.com/roach88/actionstore/internal/config"
	"github.com/roach88/actionstore/internal/eventbus"
	"github.com/roach88/actionstore/internal/registry"
	"github.com/roach88/actionstore/internal/store"
	"github.com/roach88/actionstore/internal/testutil"
	"github.com/roach88/actionstore/internal/txn"
)

// Option configures a scenario run.
type Option func(*runner)

// WithRecorder forwards every operation record to rec, e.g. a journal.
func WithRecorder(rec txn.Recorder) Option {
	return func(r *runner) {
		r.forward = rec
	}
}

// WithIDGenerator replaces the sequential op-N operation IDs.
func WithIDGenerator(g txn.IDGenerator) Option {
	return func(r *runner) {
		r.ids.gen = g
	}
}

// trackingIDs remembers the last generated ID so the trace can name the
// operation a handler runs in.
type trackingIDs struct {
	gen  txn.IDGenerator
	last string
}

func (t *trackingIDs) Generate() string {
	t.last = t.gen.Generate()
	return t.last
}

type runner struct {
	scenario *Scenario
	clock    *clock.Clock
	now      clock.NowFunc
	reg      *registry.Registry
	bus      *eventbus.Bus
	ids      *trackingIDs
	forward  txn.Recorder
	last     txn.OperationRecord
	seq      int64
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each run builds a fresh registry from the scenario's declarations, with
// its own logical clock and a stepping time source, so traces are
// reproducible. Failed expectations are reported in Result.Errors; the
// returned error is reserved for scenarios that cannot be set up.
func Run(s *Scenario, opts ...Option) (*Result, error) {
	r := &runner{
		scenario: s,
		clock:    clock.New(),
		now:      testutil.NewStepTime().Now,
		ids:      &trackingIDs{gen: testutil.NewSequentialIDGenerator("op")},
		result:   NewResult(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.reg = registry.New(s.Name, registry.WithClock(r.clock), registry.WithNow(r.now))
	if err := config.Apply(r.reg, s.seed(), store.WithClock(r.clock), store.WithNow(r.now)); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	r.bus = eventbus.New(eventbus.WithClock(r.clock), eventbus.WithNow(r.now))

	for _, name := range r.reg.Names() {
		name := name
		h, _ := r.reg.Get(name)
		h.Subscribe(func() {
			r.trace(TraceEvent{Type: EventNotify, Store: name, Value: h.Any()})
		})
	}

	ctx := registry.WithRegistry(context.Background(), r.reg)
	for i := range s.Steps {
		r.step(ctx, fmt.Sprintf("steps[%d]", i), &s.Steps[i])
	}

	for _, name := range r.reg.Names() {
		h, _ := r.reg.Get(name)
		r.result.Final[name] = h.Any()
	}
	for _, a := range s.Assertions {
		if err := r.check(a); err != nil {
			r.result.AddError(err.Error())
		}
	}

	slog.Debug("harness: scenario finished",
		"scenario", s.Name,
		"pass", r.result.Pass,
		"events", len(r.result.Trace),
	)
	return r.result, nil
}

func (r *runner) trace(e TraceEvent) {
	r.seq++
	e.Seq = r.seq
	r.result.Trace = append(r.result.Trace, e)
}

func (r *runner) step(ctx context.Context, path string, step *Step) {
	switch {
	case step.Set != nil:
		h, ok := r.reg.Get(step.Set.Store)
		if !ok {
			r.result.AddError(fmt.Sprintf("%s: store %q not registered", path, step.Set.Store))
			return
		}
		r.trace(TraceEvent{Type: EventSet, Store: step.Set.Store, Value: step.Set.Value})
		if _, err := h.SetAny(step.Set.Value); err != nil {
			r.result.AddError(fmt.Sprintf("%s: %v", path, err))
		}

	case step.Emit != nil:
		r.trace(TraceEvent{Type: EventEmit, Event: step.Emit.Event, Data: step.Emit.Data})
		r.bus.Emit(step.Emit.Event, step.Emit.Data)

	case step.Unregister != "":
		r.trace(TraceEvent{Type: EventUnregister, Store: step.Unregister})
		if !r.reg.Unregister(step.Unregister) {
			r.result.AddError(fmt.Sprintf("%s: store %q not registered", path, step.Unregister))
		}

	case step.Tx != nil:
		r.tx(ctx, path+".tx", step.Tx)
	}
}

func (r *runner) record(ctx context.Context, rec txn.OperationRecord) error {
	r.last = rec
	if r.forward == nil {
		return nil
	}
	return r.forward.Record(ctx, rec)
}

func (r *runner) tx(ctx context.Context, path string, step *TxStep) {
	coord := txn.New(step.Stores,
		txn.WithIDGenerator(r.ids),
		txn.WithClock(r.clock),
		txn.WithNow(r.now),
		txn.WithRecorder(txn.RecorderFunc(r.record)),
	)
	begin := func() {
		r.trace(TraceEvent{Type: EventTxBegin, Mode: step.Mode, Op: r.ids.last, Stores: step.Stores})
		for i := range step.Steps {
			r.step(ctx, fmt.Sprintf("%s.steps[%d]", path, i), &step.Steps[i])
		}
	}

	r.last = txn.OperationRecord{}
	var err error
	switch txn.Mode(step.Mode) {
	case txn.ModeAuto:
		err = coord.Run(ctx, nil, nil, func(ctx context.Context, _ any, ctrl *txn.Controller) error {
			begin()
			return r.settle(step, ctrl)
		})
	case txn.ModeExplicit:
		err = coord.RunTx(ctx, nil, nil, func(ctx context.Context, _ any, ctrl *txn.Controller, tx *txn.Transaction) error {
			if err := tx.Begin(); err != nil {
				return err
			}
			begin()
			if err := r.settle(step, ctrl); err != nil {
				return err
			}
			if step.SkipCommit || ctrl.Aborted() {
				return nil
			}
			return tx.Commit()
		})
	}

	r.trace(TraceEvent{
		Type:    EventTxEnd,
		Op:      r.last.ID,
		Outcome: string(r.last.Outcome),
		Code:    string(r.last.Code),
	})
	if msg := expectMismatch(step.Expect, err); msg != "" {
		r.result.AddError(fmt.Sprintf("%s: %s", path, msg))
	}
}

// settle applies the step's abort and fail directives.
func (r *runner) settle(step *TxStep, ctrl *txn.Controller) error {
	if step.Abort != "" {
		r.trace(TraceEvent{Type: EventAbort, Reason: step.Abort})
		ctrl.Abort(step.Abort)
	}
	if step.Fail != "" {
		r.trace(TraceEvent{Type: EventFail, Reason: step.Fail})
		return errors.New(step.Fail)
	}
	return nil
}

// expectMismatch describes how err differs from the expected code, or
// returns "" when it matches.
func expectMismatch(want string, err error) string {
	if want == "" {
		if err != nil {
			return fmt.Sprintf("expected success, got %v", err)
		}
		return ""
	}
	if err == nil {
		return fmt.Sprintf("expected %s, got success", want)
	}
	var te *txn.Error
	if !errors.As(err, &te) {
		return fmt.Sprintf("expected %s, got %v", want, err)
	}
	if string(te.Code) != want {
		return fmt.Sprintf("expected %s, got %s", want, te.Code)
	}
	return ""
}
