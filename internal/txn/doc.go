// Package txn coordinates operations that span several named stores.
//
// Before a coordinated operation runs, the coordinator captures the current
// value of every named store. On failure it restores those values (it does
// not replay or undo individual writes), so the only observable results are
// "all stores at their new values" or "all stores at their prior values".
//
// # Error Taxonomy
//
//   - REGISTRY_UNAVAILABLE, STORE_NOT_FOUND: setup errors, raised before
//     anything is captured
//   - HANDLER_FAILED: the handler returned an error or panicked
//   - ABORTED: the handler called Controller.Abort
//   - TX_MISUSE: a Transaction state-machine violation; reported distinctly
//     from data failures, with a forced rollback
//
// Each operation receives an ID and a logical sequence number and may be
// reported to a Recorder (see package journal).
package txn
