// Package cache implements the process-wide service cache of §4.8: a
// per-namespace bounded LRU of opaque items with reference-counted handles,
// whose destructor runs only once the last handle releases an evicted item.
package cache

import (
	"container/list"
	"sync"
)

// Destructor releases an item's resources; called at most once.
type Destructor func(value interface{})

type entry struct {
	key        string
	value      interface{}
	destructor Destructor
	refs       int
	evicted    bool
}

// namespaceCache is a single bounded LRU keyed within one namespace.
type namespaceCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // list of *entry, front = most recently used
	byKey    map[string]*list.Element
}

func newNamespaceCache(capacity int) *namespaceCache {
	if capacity < 1 {
		capacity = 1
	}
	return &namespaceCache{capacity: capacity, order: list.New(), byKey: map[string]*list.Element{}}
}

// Cache is a registry of namespace-scoped LRUs (§4.8 "per-key LRU").
type Cache struct {
	mu         sync.Mutex
	namespaces map[string]*namespaceCache
	defaultCap int
	durable    *DurableStore
}

// Persistable is implemented by cache values that can be written to durable
// overflow storage on eviction and rebuilt from bytes on a later miss (§4.8
// "durable overflow").
type Persistable interface {
	MarshalCache() ([]byte, bool)
}

// AttachDurableStore wires a bbolt-backed overflow store into the cache:
// evicted items implementing Persistable are written there, and GetOrRestore
// can satisfy a miss from disk instead of forcing the caller to redecode.
func (c *Cache) AttachDurableStore(store *DurableStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durable = store
}

func (c *Cache) persistFunc(ns string) func(key string, value interface{}) {
	c.mu.Lock()
	d := c.durable
	c.mu.Unlock()
	if d == nil {
		return nil
	}
	return func(key string, value interface{}) {
		p, ok := value.(Persistable)
		if !ok {
			return
		}
		data, ok := p.MarshalCache()
		if !ok {
			return
		}
		_ = d.Put(ns+"/"+key, data)
	}
}

// GetOrRestore behaves like Get, but on a miss it consults the durable
// overflow store (if attached): when the key is found there, restore
// rebuilds the value from its persisted bytes and the result is reinserted
// into the in-memory cache before a Handle on it is returned.
func (c *Cache) GetOrRestore(ns, key string, restore func([]byte) (interface{}, Destructor)) (*Handle, bool) {
	if h, ok := c.Get(ns, key); ok {
		return h, true
	}
	c.mu.Lock()
	d := c.durable
	c.mu.Unlock()
	if d == nil {
		return nil, false
	}
	data, ok, err := d.Get(ns + "/" + key)
	if err != nil || !ok {
		return nil, false
	}
	value, destructor := restore(data)
	return c.Put(ns, key, value, destructor), true
}

// New returns a Cache whose namespaces default to defaultCapacity entries
// unless overridden via SetCapacity.
func New(defaultCapacity int) *Cache {
	return &Cache{namespaces: map[string]*namespaceCache{}, defaultCap: defaultCapacity}
}

func (c *Cache) namespace(ns string) *namespaceCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	nc, ok := c.namespaces[ns]
	if !ok {
		nc = newNamespaceCache(c.defaultCap)
		c.namespaces[ns] = nc
	}
	return nc
}

// SetCapacity overrides the bound for one namespace.
func (c *Cache) SetCapacity(ns string, capacity int) {
	nc := c.namespace(ns)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if capacity < 1 {
		capacity = 1
	}
	nc.capacity = capacity
	nc.evictLocked(c.persistFunc(ns))
}

// Handle is a reference-counted lease on a cached item. The caller must call
// Release exactly once.
type Handle struct {
	nc  *namespaceCache
	ent *entry
}

// Value returns the handle's item.
func (h *Handle) Value() interface{} { return h.ent.value }

// Release decrements the item's reference count. If the item has already
// been evicted and this was the last reference, its destructor now runs
// (§4.8 "deferred destructor on eviction").
func (h *Handle) Release() {
	h.nc.mu.Lock()
	h.ent.refs--
	runDtr := h.ent.evicted && h.ent.refs <= 0
	var dtr Destructor
	var val interface{}
	if runDtr {
		dtr, val = h.ent.destructor, h.ent.value
	}
	h.nc.mu.Unlock()
	if runDtr && dtr != nil {
		dtr(val)
	}
}

// Get returns a Handle on an existing item, refreshing its recency, or
// (nil, false) on a miss.
func (c *Cache) Get(ns, key string) (*Handle, bool) {
	nc := c.namespace(ns)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	el, ok := nc.byKey[key]
	if !ok {
		return nil, false
	}
	nc.order.MoveToFront(el)
	ent := el.Value.(*entry)
	ent.refs++
	return &Handle{nc: nc, ent: ent}, true
}

// Put inserts or replaces the item at key, returning a Handle on it. The
// previous item at key, if any and now unreferenced, is destroyed
// immediately; if still referenced, its destructor is deferred to its last
// Release (§4.8).
func (c *Cache) Put(ns, key string, value interface{}, destructor Destructor) *Handle {
	nc := c.namespace(ns)
	persist := c.persistFunc(ns)
	nc.mu.Lock()

	if el, ok := nc.byKey[key]; ok {
		old := el.Value.(*entry)
		old.evicted = true
		nc.order.Remove(el)
		delete(nc.byKey, key)
		if persist != nil {
			persist(old.key, old.value)
		}
		if old.refs <= 0 && old.destructor != nil {
			oldDtr, oldVal := old.destructor, old.value
			nc.mu.Unlock()
			oldDtr(oldVal)
			nc.mu.Lock()
		}
	}

	ent := &entry{key: key, value: value, destructor: destructor, refs: 1}
	el := nc.order.PushFront(ent)
	nc.byKey[key] = el
	nc.evictLocked(persist)

	nc.mu.Unlock()
	return &Handle{nc: nc, ent: ent}
}

// evictLocked drops least-recently-used, zero-refcount entries until the
// namespace is back within capacity. Entries still referenced are marked
// evicted (removed from lookup, kept alive) and destroyed on their last
// Release, never blocking eviction of newer items (§4.8). persist, if
// non-nil, is given each evicted entry's key/value before its destructor
// (if any) runs, so a Persistable value can be written to durable overflow
// storage regardless of whether it is still referenced.
func (nc *namespaceCache) evictLocked(persist func(key string, value interface{})) {
	for nc.order.Len() > nc.capacity {
		back := nc.order.Back()
		if back == nil {
			return
		}
		ent := back.Value.(*entry)
		nc.order.Remove(back)
		delete(nc.byKey, ent.key)
		ent.evicted = true
		if persist != nil {
			persist(ent.key, ent.value)
		}
		if ent.refs <= 0 && ent.destructor != nil {
			dtr, val := ent.destructor, ent.value
			nc.mu.Unlock()
			dtr(val)
			nc.mu.Lock()
		}
	}
}

// Len returns the number of live entries in a namespace (for tests).
func (c *Cache) Len(ns string) int {
	nc := c.namespace(ns)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.order.Len()
}
