package eventbus

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/actionstore/internal/clock"
)

// DefaultHistorySize is the ring-buffer capacity used when no
// WithHistorySize option is given.
const DefaultHistorySize = 100

// Handler receives the payload passed to Emit.
type Handler func(data any)

// Event is one emitted event as kept in the history and delivered on
// channel subscriptions.
type Event struct {
	Name string
	Data any
	Time time.Time
	Seq  int64
}

type registration struct {
	id      uint64
	event   string
	handler Handler
	once    bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize sets the history capacity. n <= 0 disables history.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n < 0 {
			n = 0
		}
		b.capacity = n
	}
}

// WithClock sets the logical clock used to stamp emitted events.
func WithClock(c *clock.Clock) Option {
	return func(b *Bus) {
		b.clock = c
	}
}

// WithNow sets the wall-time source for Event.Time.
func WithNow(now clock.NowFunc) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// Bus is a named-event pub/sub channel with a bounded history.
//
// Handlers for one event run synchronously inside Emit, in registration
// order. A panicking handler is logged and skipped. Emit snapshots the
// handler list before dispatch, so handlers added or removed during an
// emit take effect on the next one.
//
// Thread-safety: all methods are safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*registration
	nextID   uint64
	streams  map[chan Event]string

	// history ring
	ring     []Event
	start    int
	size     int
	capacity int

	now   clock.NowFunc
	clock *clock.Clock
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]*registration),
		streams:  make(map[chan Event]string),
		capacity: DefaultHistorySize,
		now:      clock.SystemNow,
		clock:    clock.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ring = make([]Event, b.capacity)
	return b
}

// On registers handler for event and returns a function that removes
// exactly this registration.
func (b *Bus) On(event string, handler Handler) func() {
	return b.add(event, handler, false)
}

// Once registers handler to run on the next emit of event only.
func (b *Bus) Once(event string, handler Handler) func() {
	return b.add(event, handler, true)
}

func (b *Bus) add(event string, handler Handler, once bool) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	reg := &registration{id: b.nextID, event: event, handler: handler, once: once}
	b.handlers[event] = append(b.handlers[event], reg)
	b.mu.Unlock()

	var removed sync.Once
	return func() {
		removed.Do(func() {
			b.mu.Lock()
			b.removeLocked(event, reg.id)
			b.mu.Unlock()
		})
	}
}

func (b *Bus) removeLocked(event string, id uint64) {
	regs := b.handlers[event]
	for i, r := range regs {
		if r.id == id {
			next := append(regs[:i:i], regs[i+1:]...)
			if len(next) == 0 {
				delete(b.handlers, event)
			} else {
				b.handlers[event] = next
			}
			return
		}
	}
}

// Emit appends the event to the history and invokes every handler
// registered for it. Once handlers are removed before they run.
func (b *Bus) Emit(event string, data any) {
	b.mu.Lock()
	ev := Event{Name: event, Data: data, Time: b.now(), Seq: b.clock.Next()}
	b.recordLocked(ev)

	regs := append([]*registration(nil), b.handlers[event]...)
	for _, r := range regs {
		if r.once {
			b.removeLocked(event, r.id)
		}
	}
	for ch, name := range b.streams {
		if name == event {
			select {
			case ch <- ev:
			default:
				slog.Debug("event stream full, dropping event", "event", event, "seq", ev.Seq)
			}
		}
	}
	b.mu.Unlock()

	for _, r := range regs {
		dispatch(event, r.handler, data)
	}
}

func dispatch(event string, h Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event", event,
				"panic", r,
			)
		}
	}()
	h(data)
}

func (b *Bus) recordLocked(ev Event) {
	if b.capacity == 0 {
		return
	}
	if b.size < b.capacity {
		b.ring[(b.start+b.size)%b.capacity] = ev
		b.size++
		return
	}
	b.ring[b.start] = ev
	b.start = (b.start + 1) % b.capacity
}

// Stream returns a buffered channel receiving every future emit of event.
// Sends never block Emit: when the buffer is full the event is dropped for
// this stream. The returned cancel function closes the channel.
func (b *Bus) Stream(event string, buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.streams[ch] = event
	b.mu.Unlock()

	var closed sync.Once
	return ch, func() {
		closed.Do(func() {
			b.mu.Lock()
			delete(b.streams, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Off removes every handler registered for event. Use the function
// returned by On or Once to remove a single registration.
func (b *Bus) Off(event string) {
	b.mu.Lock()
	delete(b.handlers, event)
	b.mu.Unlock()
}

// Clear removes all handlers and empties the history.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.handlers = make(map[string][]*registration)
	b.start, b.size = 0, 0
	clear(b.ring)
	b.mu.Unlock()
}

// HandlerCount returns the number of handlers registered for event.
func (b *Bus) HandlerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[event])
}

// History returns the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.historyLocked(func(Event) bool { return true })
}

// HistoryFor returns the retained events named event, oldest first.
func (b *Bus) HistoryFor(event string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.historyLocked(func(e Event) bool { return e.Name == event })
}

func (b *Bus) historyLocked(keep func(Event) bool) []Event {
	out := make([]Event, 0, b.size)
	for i := 0; i < b.size; i++ {
		e := b.ring[(b.start+i)%b.capacity]
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// clearPrefix removes handlers and history entries whose event name starts
// with prefix.
func (b *Bus) clearPrefix(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for event := range b.handlers {
		if strings.HasPrefix(event, prefix) {
			delete(b.handlers, event)
		}
	}

	if b.size == 0 {
		return
	}
	kept := b.historyLocked(func(e Event) bool { return !strings.HasPrefix(e.Name, prefix) })
	clear(b.ring)
	copy(b.ring, kept)
	b.start, b.size = 0, len(kept)
}

// Scope returns a view of the bus that prefixes every event name with
// prefix + ":".
func (b *Bus) Scope(prefix string) *ScopedBus {
	return &ScopedBus{bus: b, prefix: prefix + ":"}
}
