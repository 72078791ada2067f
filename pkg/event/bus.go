// Package event implements the per-bag signal bus of §4.3: named signals with
// ordered, blockable listener lists. This is a distinct concern from
// pkg/mlog (the process-wide operational log) — it is the in-graph
// property-changed/consumer-frame-show wiring.
package event

import "sync"

// Callback receives the event name and an opaque payload.
type Callback func(name string, data interface{})

type listener struct {
	owner    interface{}
	callback Callback
	userdata interface{}
	gen      uint64 // value of the bus's generation counter when this listener was registered.
}

// Bus is a named-signal table with ordered listeners and a block counter.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]*listener
	wildcard  []*listener // listen on every signal name, used by Subscribe
	blockDep  int
	nextGen   uint64
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: map[string][]*listener{}}
}

// Listen registers callback under owner for the named signal; it returns
// nothing, and Disconnect later removes listeners by owner. Multiple
// listeners may share a name.
func (b *Bus) Listen(name string, owner interface{}, callback Callback, userdata interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextGen++
	b.listeners[name] = append(b.listeners[name], &listener{
		owner:    owner,
		callback: callback,
		userdata: userdata,
		gen:      b.nextGen,
	})
}

// Disconnect removes every listener registered under owner, across all
// signal names and the wildcard list.
func (b *Bus) Disconnect(owner interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, list := range b.listeners {
		filtered := list[:0]
		for _, l := range list {
			if l.owner != owner {
				filtered = append(filtered, l)
			}
		}
		b.listeners[name] = filtered
	}

	filtered := b.wildcard[:0]
	for _, l := range b.wildcard {
		if l.owner != owner {
			filtered = append(filtered, l)
		}
	}
	b.wildcard = filtered
}

// Fire invokes every listener registered for name, plus every wildcard
// listener, in registration order, unless the bus is currently blocked. The
// listener slices are copied under the lock before invocation, so a callback
// may safely call Disconnect or Listen on the same bus without corrupting
// iteration (§4.3: "copy the callback list, or a generation counter skips
// removed slots").
func (b *Bus) Fire(name string, data interface{}) {
	b.mu.Lock()
	if b.blockDep > 0 {
		b.mu.Unlock()
		return
	}
	list := append([]*listener(nil), b.listeners[name]...)
	list = append(list, b.wildcard...)
	b.mu.Unlock()

	for _, l := range list {
		l.callback(name, data)
	}
}

// Block increments the block counter; while non-zero, Fire drops events
// rather than queuing them (§4.3).
func (b *Bus) Block() {
	b.mu.Lock()
	b.blockDep++
	b.mu.Unlock()
}

// Unblock decrements the block counter.
func (b *Bus) Unblock() {
	b.mu.Lock()
	if b.blockDep > 0 {
		b.blockDep--
	}
	b.mu.Unlock()
}

// Blocked reports whether Fire currently drops events.
func (b *Bus) Blocked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.blockDep > 0
}

// Signal is one fired event, captured for a channel-based subscriber.
type Signal struct {
	Name string
	Data interface{}
}

// CancelFunc cancels a feed subscription started with Subscribe.
type CancelFunc func()

// Subscribe returns a channel that receives every event fired on the bus
// (any name) until the returned CancelFunc runs, grounded on
// pkg/mlog.Logger.Subscribe's feed-channel shape. The channel is buffered so
// a slow reader does not block Fire; once full, further signals are dropped
// for that subscriber.
func (b *Bus) Subscribe() (<-chan Signal, CancelFunc) {
	feed := make(chan Signal, 64)
	owner := &feed

	b.mu.Lock()
	b.nextGen++
	b.wildcard = append(b.wildcard, &listener{
		owner: owner,
		callback: func(name string, data interface{}) {
			select {
			case feed <- Signal{Name: name, Data: data}:
			default:
			}
		},
		gen: b.nextGen,
	})
	b.mu.Unlock()

	cancel := func() {
		b.Disconnect(owner)
		close(feed)
	}
	return feed, cancel
}
