// Package registry provides the named directory of stores.
//
// The registry is observable in its own right: Subscribe/Snapshot expose the
// ordered [name, store] pairs, recomputed on every Register, Unregister and
// Clear. Inner store value changes do not notify registry listeners.
//
// Coordinated operations (package txn) resolve the active registry from the
// context.Context threaded into every handler (WithRegistry/FromContext)
// rather than from ambient global state.
package registry
