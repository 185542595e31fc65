// Package computed provides derived stores.
//
// A Computed store subscribes to every dependency and recomputes from the
// current values of all of them on any change. The result goes through the
// ordinary equality-gated SetValue, so listeners fire only when the derived
// value actually changes.
//
// Replacing the compute function must release the old subscriptions first:
// use Rebind, or call Cleanup before discarding an instance.
package computed
