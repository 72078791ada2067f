// Package service implements the polymorphic service node of §4.5: the
// shared producer/filter/transition/consumer contract, and the producer
// operations (seek, filter chain, cut) every composer in pkg/compose builds
// on.
package service

import (
	"fmt"
	"sync"

	"mlt/pkg/event"
	"mlt/pkg/frame"
	"mlt/pkg/props"
)

// Kind discriminates a Service's concrete role (§3 "Service Node").
type Kind int

// Service kinds.
const (
	KindProducer Kind = iota
	KindFilter
	KindTransition
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindProducer:
		return "producer"
	case KindFilter:
		return "filter"
	case KindTransition:
		return "transition"
	case KindConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// GetFrameFunc produces the frame at index for a producer-kind service.
type GetFrameFunc func(s *Service, index int) (*frame.Frame, error)

// ProcessFunc is a filter's per-frame transform (§4.5 "Filter operations").
type ProcessFunc func(s *Service, f *frame.Frame) (*frame.Frame, error)

// TransitionFunc composes two frames into one (§4.5 "Transition operations").
type TransitionFunc func(s *Service, a, b *frame.Frame) (*frame.Frame, error)

// Scope distinguishes where a filter applies in a composed tree (§4.5
// "Filter chain semantics").
type Scope int

// Filter scopes.
const (
	ScopeTracked Scope = iota // applies per-track in a multitrack context
	ScopeOutput               // applies to the composed output
)

// Service is the shared node type for every producer/filter/transition/
// consumer (§3 "Service Node").
type Service struct {
	mu sync.Mutex

	Kind  Kind
	ID    string
	Props *props.Bag
	Bus   *event.Bus

	getFrame   GetFrameFunc
	process    ProcessFunc
	transition TransitionFunc
	closeFn    func()

	// Producer-only state.
	in, out  int
	length   int
	fps      float64
	cursor   int // advanced by PrepareNext, consumed by the next GetFrame(cursor)
	filters  []*filterEntry
	consumer *Service // optional attachment
	parent   *Service // non-nil for a Cut (§3 "Cut")
}

type filterEntry struct {
	filter *Service
	scope  Scope
}

// NewProducer constructs a producer-kind service backed by fn.
func NewProducer(id string, length int, fps float64, fn GetFrameFunc) *Service {
	return &Service{
		Kind:     KindProducer,
		ID:       id,
		Props:    props.New(),
		Bus:      event.NewBus(),
		getFrame: fn,
		out:      length - 1,
		length:   length,
		fps:      fps,
	}
}

// NewFilter constructs a filter-kind service backed by fn.
func NewFilter(id string, fn ProcessFunc) *Service {
	return &Service{Kind: KindFilter, ID: id, Props: props.New(), Bus: event.NewBus(), process: fn}
}

// NewTransition constructs a transition-kind service backed by fn.
func NewTransition(id string, fn TransitionFunc) *Service {
	return &Service{Kind: KindTransition, ID: id, Props: props.New(), Bus: event.NewBus(), transition: fn}
}

// NewConsumer constructs a consumer-kind service (see pkg/consumer for the
// runtime that drives it).
func NewConsumer(id string) *Service {
	return &Service{Kind: KindConsumer, ID: id, Props: props.New(), Bus: event.NewBus()}
}

// SetClose registers a destructor invoked by Close.
func (s *Service) SetClose(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeFn = fn
}

// Close invokes the registered destructor, if any.
func (s *Service) Close() {
	s.mu.Lock()
	fn := s.closeFn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// GetFrame is the single virtual operation every kind of node exposes (§3).
// For producers it delegates to the backing GetFrameFunc and then applies
// the filter chain (§4.5 "Filter chain semantics"); for filters/transitions
// it is not meaningful and returns an error (callers should use Process/
// Transition instead).
func (s *Service) GetFrame(index int) (*frame.Frame, error) {
	if s.Kind != KindProducer {
		return nil, fmt.Errorf("get_frame: service %q is not a producer", s.ID)
	}
	f, err := s.getFrame(s, index)
	if err != nil {
		blank := frame.Blank(s.ID, index)
		s.Bus.Fire("producer-get-frame-error", err)
		return blank, nil
	}
	f.SetPosition(index)
	return s.applyFilters(f, index)
}

func (s *Service) applyFilters(f *frame.Frame, position int) (*frame.Frame, error) {
	s.mu.Lock()
	entries := append([]*filterEntry(nil), s.filters...)
	s.mu.Unlock()

	for _, fe := range entries {
		in, out := fe.filter.InAndOut()
		if out > 0 && (position < in || position > out) {
			continue
		}
		var err error
		f, err = fe.filter.Process(f)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Process runs a filter-kind service's transform.
func (s *Service) Process(f *frame.Frame) (*frame.Frame, error) {
	if s.Kind != KindFilter {
		return nil, fmt.Errorf("process: service %q is not a filter", s.ID)
	}
	return s.process(s, f)
}

// Transition runs a transition-kind service's compose step.
func (s *Service) Transition(a, b *frame.Frame) (*frame.Frame, error) {
	if s.Kind != KindTransition {
		return nil, fmt.Errorf("transition: service %q is not a transition", s.ID)
	}
	return s.transition(s, a, b)
}

// Seek sets the producer's internal cursor (§4.5 "seek(position)").
func (s *Service) Seek(position int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = position
}

// Position returns the producer's current cursor.
func (s *Service) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// PrepareNext advances the cursor by one, for a consumer that repeatedly
// pulls sequential frames (§4.5 "prepare_next()").
func (s *Service) PrepareNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor++
}

// SetInAndOut sets the producer's clip range.
func (s *Service) SetInAndOut(in, out int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.in, s.out = in, out
}

// InAndOut returns the producer's clip range.
func (s *Service) InAndOut() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in, s.out
}

// GetLength returns the producer's total length in frames.
func (s *Service) GetLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// GetPlaytime returns the playable duration given in/out (§4.5
// "get_playtime()").
func (s *Service) GetPlaytime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out - s.in + 1
}

// GetFPS returns the producer's frame rate.
func (s *Service) GetFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Attach appends filter to the producer's filter chain in insertion order.
func (s *Service) Attach(filter *Service, scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, &filterEntry{filter: filter, scope: scope})
}

// Detach removes the first occurrence of filter from the chain.
func (s *Service) Detach(filter *Service) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, fe := range s.filters {
		if fe.filter == filter {
			s.filters = append(s.filters[:i], s.filters[i+1:]...)
			return true
		}
	}
	return false
}

// Filter returns the i-th attached filter.
func (s *Service) Filter(i int) (*Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.filters) {
		return nil, false
	}
	return s.filters[i].filter, true
}

// FilterCount returns the number of attached filters.
func (s *Service) FilterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

// AttachConsumer records a consumer attachment on a producer.
func (s *Service) AttachConsumer(c *Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumer = c
}

// Consumer returns the producer's attached consumer, if any.
func (s *Service) Consumer() (*Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumer, s.consumer != nil
}

// Cut returns a new producer referencing s as parent over [in, out] (§3
// "Cut"). Each frame is fetched by calling s.GetFrame with the same index, so
// s's producer function and filter chain run on every fetch; no service cache
// is consulted. The cut starts with its own empty filter list, as required by §3.
func (s *Service) Cut(in, out int) *Service {
	cut := &Service{
		Kind:   KindProducer,
		ID:     s.ID + "#cut",
		Props:  props.New(),
		Bus:    event.NewBus(),
		fps:    s.fps,
		length: s.length,
		in:     in,
		out:    out,
		parent: s,
		getFrame: func(_ *Service, index int) (*frame.Frame, error) {
			return s.GetFrame(index)
		},
	}
	return cut
}

// Parent returns the producer a Cut was derived from, or nil.
func (s *Service) Parent() *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parent
}
