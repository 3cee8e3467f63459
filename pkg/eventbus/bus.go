package eventbus

import (
	"sort"
	"sync"

	"github.com/easydep-io/easydep/pkg/log"
)

// DefaultPriority is used by subscribers that don't care about ordering
// relative to others; priority-0 subscribers (e.g. the lifecycle-script
// bridge) reliably run first.
const DefaultPriority = int(^uint(0) >> 2) // MAX/2 for the platform int width

// Handler receives a published Event. Handlers must not block for long;
// a panicking handler is recovered, logged, and never aborts dispatch to
// the remaining subscribers.
type Handler func(Event)

type subscription struct {
	kind     Kind
	catchAll bool
	priority int
	seq      int
	handler  Handler
}

// Bus is a per-context, in-process publish/subscribe dispatcher. It is
// safe for concurrent Subscribe/Publish calls, though in practice a
// single ExecutionContext's runner goroutine is the only publisher.
type Bus struct {
	mu   sync.Mutex
	subs []subscription
	seq  int
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler for events of exactly kind, ordered by
// priority (ascending — lower numbers fire first). Equal-priority
// subscribers fire in subscription order.
func (b *Bus) Subscribe(kind Kind, priority int, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.subs = append(b.subs, subscription{kind: kind, priority: priority, seq: b.seq, handler: handler})
}

// SubscribeAll registers handler for every kind published on this bus.
func (b *Bus) SubscribeAll(priority int, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.subs = append(b.subs, subscription{catchAll: true, priority: priority, seq: b.seq, handler: handler})
}

// Publish dispatches event synchronously, in ascending priority order
// (subscription order breaking ties), to every subscriber whose kind
// matches or who subscribed catch-all. A handler panic is recovered,
// logged, and does not prevent delivery to the remaining subscribers or
// propagate to the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	matching := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.catchAll || s.kind == event.Kind {
			matching = append(matching, s)
		}
	}
	b.mu.Unlock()

	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].priority != matching[j].priority {
			return matching[i].priority < matching[j].priority
		}
		return matching[i].seq < matching[j].seq
	})

	for _, s := range matching {
		b.dispatch(s.handler, event)
	}
}

func (b *Bus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Error().
				Interface("panic", r).
				Str("event_kind", event.Kind.String()).
				Msg("event subscriber panicked, dropping handler result")
		}
	}()
	handler(event)
}
