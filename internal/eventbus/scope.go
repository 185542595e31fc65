package eventbus

import "strings"

// ScopedBus is a prefixed view of a Bus. Every event name passed in is
// rewritten to prefix + name, so producers and consumers in different
// scopes never collide.
type ScopedBus struct {
	bus    *Bus
	prefix string
}

// Prefix returns the full prefix including the trailing ":".
func (s *ScopedBus) Prefix() string {
	return s.prefix
}

// On registers handler for the scoped event.
func (s *ScopedBus) On(event string, handler Handler) func() {
	return s.bus.On(s.prefix+event, handler)
}

// Once registers a one-shot handler for the scoped event.
func (s *ScopedBus) Once(event string, handler Handler) func() {
	return s.bus.Once(s.prefix+event, handler)
}

// Emit emits the scoped event on the underlying bus.
func (s *ScopedBus) Emit(event string, data any) {
	s.bus.Emit(s.prefix+event, data)
}

// Off removes every handler for the scoped event.
func (s *ScopedBus) Off(event string) {
	s.bus.Off(s.prefix + event)
}

// HandlerCount returns the number of handlers for the scoped event.
func (s *ScopedBus) HandlerCount(event string) int {
	return s.bus.HandlerCount(s.prefix + event)
}

// History returns the retained events under this scope, oldest first.
// Names are returned unprefixed relative to this scope.
func (s *ScopedBus) History() []Event {
	s.bus.mu.Lock()
	events := s.bus.historyLocked(func(e Event) bool { return strings.HasPrefix(e.Name, s.prefix) })
	s.bus.mu.Unlock()

	for i := range events {
		events[i].Name = strings.TrimPrefix(events[i].Name, s.prefix)
	}
	return events
}

// Clear removes handlers and history entries under this scope only.
func (s *ScopedBus) Clear() {
	s.bus.clearPrefix(s.prefix)
}

// Scope returns a nested scope: prefix + sub + ":".
func (s *ScopedBus) Scope(sub string) *ScopedBus {
	return &ScopedBus{bus: s.bus, prefix: s.prefix + sub + ":"}
}
