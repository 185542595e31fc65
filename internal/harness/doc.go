// Package harness runs YAML scenarios against a registry of stores and
// records a deterministic trace of what happened.
//
// A scenario declares stores and computed stores (the same declarations a
// config seed file uses), a list of steps, and assertions over the final
// state and the trace:
//
//	name: rollback_exactness
//	description: a failing handler leaves no partial writes
//	stores:
//	  - name: A
//	    initial: 1
//	  - name: B
//	    initial: 2
//	steps:
//	  - tx:
//	      mode: auto
//	      stores: [A, B]
//	      steps:
//	        - set: {store: A, value: 5}
//	        - set: {store: B, value: 9}
//	      fail: boom
//	      expect: HANDLER_FAILED
//	assertions:
//	  - type: store_equals
//	    store: A
//	    equals: 1
//
// # Steps
//
//   - set: writes a value to a store
//   - emit: emits an event on the scenario's event bus
//   - unregister: removes a store from the registry
//   - tx: runs nested set/emit steps inside a coordinated operation, in
//     auto or explicit mode, optionally failing or aborting it
//
// # Assertion Types
//
//   - store_equals: the store's final value deep-equals the given value
//   - notify_count: the store notified its subscribers exactly N times
//   - event_count: the event was emitted exactly N times (bounded by the
//     bus history size)
//
// # Determinism
//
// Each run uses a fresh logical clock, a stepping time source starting at
// testutil.Epoch and sequential operation IDs (op-1, op-2, ...), so the
// trace of a scenario is identical across runs. RunWithGolden compares
// that trace, as canonical JSON, against testdata/golden/<name>.golden.
package harness
