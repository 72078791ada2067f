// Package mlt is the engine's top-level handle (§9 Design Notes: "expose
// [the module registry, service cache, and pool allocator] as explicit
// handles created by an Engine constructor passed down through the graph;
// avoid hidden globals"). An Engine owns the module registry, profile
// registry, service cache, and operational logger for one process; the
// melt CLI (cmd/melt) constructs exactly one and threads it through the
// flag scan.
package mlt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	bolt "go.etcd.io/bbolt"

	"mlt/pkg/cache"
	"mlt/pkg/config"
	"mlt/pkg/consumer"
	"mlt/pkg/mlog"
	"mlt/pkg/mlterr"
	"mlt/pkg/profile"
	"mlt/pkg/service"
)

// ProducerFactory constructs a producer-kind service from its `ARG` operand
// and `K=V` property assignments (§6 "-producer ARG K=V*").
type ProducerFactory func(e *Engine, arg string, props map[string]string) (*service.Service, error)

// FilterFactory constructs a filter-kind service.
type FilterFactory func(e *Engine, arg string, props map[string]string) (*service.Service, error)

// TransitionFactory constructs a transition-kind service.
type TransitionFactory func(e *Engine, arg string, props map[string]string) (*service.Service, error)

// ConsumerFactory constructs the runtime backing a `-consumer ID` directive.
// Unlike producers/filters/transitions, a consumer is not a bare graph node:
// pkg/consumer.Runtime is the concurrency-bearing implementor (§4.7), so the
// factory returns one directly rather than a *service.Service.
type ConsumerFactory func(e *Engine, arg string, props map[string]string) (*consumer.Runtime, error)

// Engine is the process-wide handle threaded through graph construction; it
// replaces the hidden globals of the original module registry/cache/pool
// allocator (§9).
type Engine struct {
	mu sync.Mutex

	Env      config.Env
	Profiles *profile.Registry
	Cache    *cache.Cache
	Logger   *mlog.Logger

	producers   map[string]ProducerFactory
	filters     map[string]FilterFactory
	transitions map[string]TransitionFactory
	consumers   map[string]ConsumerFactory
}

// New constructs an Engine. Lifecycle per §9: constructed once by the
// caller (melt's main, or the first consumer start in an embedding
// application) and torn down at process exit after all consumers close.
func New(env config.Env, logger *mlog.Logger) *Engine {
	return &Engine{
		Env:         env,
		Profiles:    profile.NewRegistry(),
		Cache:       cache.New(env.AVCacheLen),
		Logger:      logger,
		producers:   map[string]ProducerFactory{},
		filters:     map[string]FilterFactory{},
		transitions: map[string]TransitionFactory{},
		consumers:   map[string]ConsumerFactory{},
	}
}

// OpenDurableStorage opens (creating if necessary) a single bbolt database
// under e.Env.CacheDir and wires it into both the service cache's overflow
// store (§4.8) and the logger's durable sink, one process-wide handle
// serving both concerns rather than a database per subsystem. It is opt-in:
// an Engine is fully usable without it, at the cost of the cache falling
// back to memory-only eviction and log entries not surviving restart.
//
// The returned close func drains the durable sink's pending writes and
// closes the database; callers should defer it alongside the ctx cancellation
// that stops the sink.
func (e *Engine) OpenDurableStorage(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(e.Env.CacheDir(), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(e.Env.CacheDir(), "state.db"), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open durable storage: %w", err)
	}

	store, err := cache.NewDurableStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	e.Cache.AttachDurableStore(store)

	sink, err := mlog.NewDurableSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	sinkCtx, stopSink := context.WithCancel(ctx)
	go sink.Run(sinkCtx, e.Logger)

	return func() error {
		stopSink()
		sink.Wait()
		return db.Close()
	}, nil
}

// RegisterProducer registers a producer factory under id, for `-producer
// ID:ARG` and the implicit producer form.
func (e *Engine) RegisterProducer(id string, fn ProducerFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.producers[id] = fn
}

// RegisterFilter registers a filter factory under id.
func (e *Engine) RegisterFilter(id string, fn FilterFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters[id] = fn
}

// RegisterTransition registers a transition factory under id.
func (e *Engine) RegisterTransition(id string, fn TransitionFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions[id] = fn
}

// RegisterConsumer registers a consumer factory under id.
func (e *Engine) RegisterConsumer(id string, fn ConsumerFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.consumers[id] = fn
}

// NewProducer looks up id's factory and constructs a producer.
func (e *Engine) NewProducer(id, arg string, props map[string]string) (*service.Service, error) {
	e.mu.Lock()
	fn, ok := e.producers[id]
	e.mu.Unlock()
	if !ok {
		return nil, mlterr.New(mlterr.NotFound, fmt.Sprintf("producer %q not registered", id))
	}
	return fn(e, arg, props)
}

// NewFilter looks up id's factory and constructs a filter.
func (e *Engine) NewFilter(id, arg string, props map[string]string) (*service.Service, error) {
	e.mu.Lock()
	fn, ok := e.filters[id]
	e.mu.Unlock()
	if !ok {
		return nil, mlterr.New(mlterr.NotFound, fmt.Sprintf("filter %q not registered", id))
	}
	return fn(e, arg, props)
}

// NewTransition looks up id's factory and constructs a transition.
func (e *Engine) NewTransition(id, arg string, props map[string]string) (*service.Service, error) {
	e.mu.Lock()
	fn, ok := e.transitions[id]
	e.mu.Unlock()
	if !ok {
		return nil, mlterr.New(mlterr.NotFound, fmt.Sprintf("transition %q not registered", id))
	}
	return fn(e, arg, props)
}

// NewConsumer looks up id's factory and constructs the consumer runtime.
func (e *Engine) NewConsumer(id, arg string, props map[string]string) (*consumer.Runtime, error) {
	e.mu.Lock()
	fn, ok := e.consumers[id]
	e.mu.Unlock()
	if !ok {
		return nil, mlterr.New(mlterr.NotFound, fmt.Sprintf("consumer %q not registered", id))
	}
	return fn(e, arg, props)
}

// QueryTopic is one of melt's `-query TOPIC` verbs (§6, §12).
type QueryTopic string

// Query topics.
const (
	QueryConsumers   QueryTopic = "consumers"
	QueryFilters     QueryTopic = "filters"
	QueryProducers   QueryTopic = "producers"
	QueryTransitions QueryTopic = "transitions"
	QueryProfiles    QueryTopic = "profiles"
)

// Query returns the registered names for topic, sorted, for `-query TOPIC`.
func (e *Engine) Query(topic QueryTopic) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var names []string
	switch topic {
	case QueryConsumers:
		names = keysOfConsumer(e.consumers)
	case QueryFilters:
		names = keysOfFilter(e.filters)
	case QueryProducers:
		names = keysOfProducer(e.producers)
	case QueryTransitions:
		names = keysOfTransition(e.transitions)
	case QueryProfiles:
		names = e.Profiles.Names()
	default:
		return nil, mlterr.New(mlterr.BadArgument, fmt.Sprintf("unknown query topic %q", topic))
	}
	sort.Strings(names)
	return names, nil
}

func keysOfProducer(m map[string]ProducerFactory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfFilter(m map[string]FilterFactory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfTransition(m map[string]TransitionFactory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfConsumer(m map[string]ConsumerFactory) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
