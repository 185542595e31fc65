package harness

import (
	"fmt"

	"github.com/roach88/actionstore/internal/compare"
)

// check evaluates one assertion against the finished run.
func (r *runner) check(a Assertion) error {
	switch a.Type {
	case AssertStoreEquals:
		got, ok := r.result.Final[a.Store]
		if !ok {
			return fmt.Errorf("store_equals: store %q not registered", a.Store)
		}
		if !compare.Deep(got, a.Equals, 0, false) {
			return fmt.Errorf("store_equals: store %q is %v, expected %v", a.Store, got, a.Equals)
		}

	case AssertNotifyCount:
		if n := r.result.Count(EventNotify, a.Store); n != a.Count {
			return fmt.Errorf("notify_count: store %q notified %d times, expected %d", a.Store, n, a.Count)
		}

	case AssertEventCount:
		if n := len(r.bus.HistoryFor(a.Event)); n != a.Count {
			return fmt.Errorf("event_count: event %q emitted %d times, expected %d", a.Event, n, a.Count)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
