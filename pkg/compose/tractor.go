package compose

import (
	"sync"

	"mlt/pkg/frame"
	"mlt/pkg/service"
)

// transitionEntry pairs a transition service with the two track indices it
// combines.
type transitionEntry struct {
	transition *service.Service
	a, b       int
}

// Tractor wraps a Multitrack, applying transitions and track/output-scoped
// filters to expose a single composed output producer (§4.6 "Tractor").
type Tractor struct {
	mu          sync.Mutex
	id          string
	fps         float64
	multitrack  *Multitrack
	transitions []transitionEntry
	filters     []tractorFilter
	globalFeed  bool // §9 Open Question: "all tracks seek together when set"
	length      int
}

type tractorFilter struct {
	filter *service.Service
	scope  service.Scope
}

// NewTractor wraps multitrack in a composed-output producer.
func NewTractor(id string, fps float64, multitrack *Multitrack, length int) *Tractor {
	return &Tractor{id: id, fps: fps, multitrack: multitrack, length: length}
}

// SetGlobalFeed toggles whether Seek propagates to every track (the
// literal §9-resolved semantics of global_feed=1).
func (t *Tractor) SetGlobalFeed(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.globalFeed = on
}

// AddTransition registers a transition combining tracks a and b.
func (t *Tractor) AddTransition(transition *service.Service, a, b int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = append(t.transitions, transitionEntry{transition: transition, a: a, b: b})
}

// AttachFilter adds a track-scoped or output-scoped filter (§4.5 "Filter
// chain semantics").
func (t *Tractor) AttachFilter(filter *service.Service, scope service.Scope) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filters = append(t.filters, tractorFilter{filter: filter, scope: scope})
}

// Seek positions every track when global feed is enabled, otherwise does
// nothing (individual tracks are sought independently by the caller).
func (t *Tractor) Seek(position int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.globalFeed {
		return
	}
	for i := 0; i < t.multitrack.Count(); i++ {
		if track, err := t.multitrack.Track(i); err == nil {
			track.Seek(position)
		}
	}
}

// GetFrame composes every track's frame at position through the registered
// transitions, then applies output-scoped filters (§4.6).
func (t *Tractor) GetFrame(position int) (*frame.Frame, error) {
	t.mu.Lock()
	n := t.multitrack.Count()
	transitions := append([]transitionEntry(nil), t.transitions...)
	filters := append([]tractorFilter(nil), t.filters...)
	t.mu.Unlock()

	if n == 0 {
		return frame.Blank(t.id, position), nil
	}

	trackFrames := make([]*frame.Frame, n)
	for i := 0; i < n; i++ {
		f, err := t.multitrack.GetFrame(i, position)
		if err != nil {
			return nil, err
		}
		trackFrames[i] = t.applyTrackScopedFilters(f, filters, i)
	}

	for _, te := range transitions {
		in, out := te.transition.InAndOut()
		if out > 0 && (position < in || position > out) {
			continue
		}
		composed, err := te.transition.Transition(trackFrames[te.a], trackFrames[te.b])
		if err != nil {
			return nil, err
		}
		trackFrames[te.a] = composed
	}
	composed := trackFrames[0]

	for _, tf := range filters {
		if tf.scope != service.ScopeOutput {
			continue
		}
		var err error
		composed, err = tf.filter.Process(composed)
		if err != nil {
			return nil, err
		}
	}
	return composed, nil
}

func (t *Tractor) applyTrackScopedFilters(f *frame.Frame, filters []tractorFilter, track int) *frame.Frame {
	for _, tf := range filters {
		if tf.scope != service.ScopeTracked {
			continue
		}
		if out, err := tf.filter.Process(f); err == nil {
			f = out
		}
	}
	return f
}

// AsProducer adapts the tractor into a generic producer service.
func (t *Tractor) AsProducer() *service.Service {
	return service.NewProducer(t.id, t.length, t.fps, func(s *service.Service, index int) (*frame.Frame, error) {
		return t.GetFrame(index)
	})
}
