// Package store provides the reactive single-value container that backs
// every named model in the registry.
//
// A Store holds exactly one immutable Snapshot and an ordered set of
// zero-argument listeners (pull model: listeners read Snapshot() themselves).
//
// # Change Semantics
//
//   - SetValue is gated by the comparison engine (package compare). An equal
//     value is a no-op: no new snapshot, no notification.
//   - Accepted changes allocate a new Snapshot stamped with a logical clock
//     seq and wall time, then notify listeners in subscription order before
//     SetValue returns.
//   - A panicking listener is logged and skipped; it cannot block the others
//     or corrupt the store.
//
// # Comparison Options
//
// The effective options are the per-store override (WithComparison) when
// present, otherwise compare.GlobalOptions() read at call time.
package store
