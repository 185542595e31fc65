// Package compare implements the equality strategies that gate store
// notifications.
//
// Four strategies are supported:
//   - reference: identity (NaN equals NaN, +0 differs from -0)
//   - shallow: one level of container contents, compared by reference
//   - deep: recursive structural equality with optional depth cap and
//     visited-pairs cycle guard
//   - custom: caller-supplied predicate
//
// Equal never panics. Failures are logged with slog and degrade to reference
// equality for that single call.
//
// A process-wide default is held behind SetGlobalOptions/GlobalOptions.
// Per-store options (store.WithComparison) always take precedence.
package compare
