package store

import (
	"log/slog"
	"reflect"
	"sync"
)

// Listener is a subscriber with a stable identity.
//
// SubscribeListener deduplicates listeners that compare equal (typically the
// same pointer), so registering one twice yields a single notification.
type Listener interface {
	OnChange()
}

type registration struct {
	id  uint64
	fn  func()
	key any // comparable Listener identity, nil for plain func subscriptions
}

// Notifier is an ordered set of zero-argument listeners.
//
// Listeners are invoked synchronously in subscription order. A panicking
// listener is recovered and logged; the remaining listeners still run.
//
// Thread-safety: all methods are safe for concurrent use. The registration
// slice is copy-on-write so Notify iterates a stable view without holding
// the lock while listeners run.
type Notifier struct {
	owner  string
	mu     sync.Mutex
	nextID uint64
	regs   []registration
}

// NewNotifier creates an empty listener set. owner names the store or
// registry in log output.
func NewNotifier(owner string) *Notifier {
	return &Notifier{owner: owner}
}

// Subscribe registers fn and returns a function that removes exactly this
// registration. Calling the returned function more than once is a no-op.
//
// Go func values have no identity, so every call creates a new registration.
// Use SubscribeListener for deduplicated subscriptions.
func (n *Notifier) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.add(registration{fn: fn})
	n.mu.Unlock()
	return n.unsubscriber(id)
}

// SubscribeListener registers l. A listener already present (by equality)
// is not added again; the returned function removes the shared registration.
func (n *Notifier) SubscribeListener(l Listener) func() {
	if l == nil {
		return func() {}
	}

	var key any
	if reflect.TypeOf(l).Comparable() {
		key = l
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if key != nil {
		for _, r := range n.regs {
			if r.key != nil && r.key == key {
				return n.unsubscriber(r.id)
			}
		}
	}

	id := n.add(registration{fn: l.OnChange, key: key})
	return n.unsubscriber(id)
}

// add appends a registration. Caller holds n.mu.
func (n *Notifier) add(r registration) uint64 {
	n.nextID++
	r.id = n.nextID
	regs := make([]registration, len(n.regs), len(n.regs)+1)
	copy(regs, n.regs)
	n.regs = append(regs, r)
	return r.id
}

func (n *Notifier) unsubscriber(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, r := range n.regs {
		if r.id != id {
			continue
		}
		regs := make([]registration, 0, len(n.regs)-1)
		regs = append(regs, n.regs[:i]...)
		n.regs = append(regs, n.regs[i+1:]...)
		return
	}
}

// Notify invokes every listener in subscription order.
func (n *Notifier) Notify() {
	n.mu.Lock()
	regs := n.regs
	n.mu.Unlock()

	for _, r := range regs {
		n.call(r)
	}
}

func (n *Notifier) call(r registration) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("listener panicked during notification",
				"owner", n.owner,
				"listener_id", r.id,
				"panic", rec,
			)
		}
	}()
	r.fn()
}

// Count returns the number of registrations.
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.regs)
}

// Clear removes every registration.
func (n *Notifier) Clear() {
	n.mu.Lock()
	n.regs = nil
	n.mu.Unlock()
}
