// Package props implements the typed, ordered property bag of §4.1: the
// fundamental name/value store shared by every service, frame, and profile
// in the graph. Values are held in their canonical string form and coerced
// lazily on typed read, mirroring the teacher's config.Env/Preset pattern of
// keeping persisted state as plain strings/maps until a typed accessor needs
// it.
package props

import (
	"sort"
	"strconv"
	"sync"

	"mlt/pkg/anim"
	"mlt/pkg/event"
)

// Kind discriminates the value held by a Property.
type Kind int

// Value kinds (§3 "Property").
const (
	KindString Kind = iota
	KindInt
	KindDouble
	KindPosition
	KindTime
	KindBinary
	KindAnim
	KindBag
)

// Property is one named entry. Scalar kinds are stored canonically as a
// string (raw) and coerced lazily on read; Binary/Anim/Bag kinds carry their
// own typed storage.
type Property struct {
	Name   string
	Kind   Kind
	raw    string
	bin    []byte
	binDtr func()
	anim   *anim.Animation
	child  *Bag
	isPath bool
}

// Bag is a reference-counted, thread-safe, insertion-ordered property map
// (§3 "Property Bag").
type Bag struct {
	mu      sync.Mutex
	entries []*Property
	index   map[string]int

	refs int32

	locale  string // decimal separator; "." unless set otherwise (§4.1).
	dataDir string // non-empty enables path rebasing on path-typed properties.
	fps     float64

	bus          *event.Bus
	blockDepth   int
	pendingFires map[string]bool
}

// New returns an empty, single-referenced Bag.
func New() *Bag {
	return &Bag{
		index:        map[string]int{},
		locale:       ".",
		fps:          25,
		bus:          event.NewBus(),
		pendingFires: map[string]bool{},
		refs:         1,
	}
}

// Ref increments the reference count and returns the same Bag, per the
// invariant that a handle outlives every reader that holds it (§3).
func (b *Bag) Ref() *Bag {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs++
	return b
}

// Unref decrements the reference count, returning true if this was the last
// reference (the caller should then release any owned resources).
func (b *Bag) Unref() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refs--
	return b.refs <= 0
}

// SetLocale sets the decimal separator used when coercing doubles,
// independent of the process locale (§4.1).
func (b *Bag) SetLocale(decimalSeparator string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.locale = decimalSeparator
}

// SetDataDir sets the directory path-typed properties rebase against.
func (b *Bag) SetDataDir(dir string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dataDir = dir
}

// SetFPS sets the frame rate used to resolve bare-frame time coercions.
func (b *Bag) SetFPS(fps float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fps > 0 {
		b.fps = fps
	}
}

// Events returns the bag's event bus (§4.3), for Listen/Disconnect.
func (b *Bag) Events() *event.Bus { return b.bus }

// Count returns the number of properties.
func (b *Bag) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// GetName returns the name of the i-th property in insertion order.
func (b *Bag) GetName(i int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.entries) {
		return "", false
	}
	return b.entries[i].Name, true
}

// GetValue returns the canonical string form of the i-th property.
func (b *Bag) GetValue(i int) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.entries) {
		return "", false
	}
	return b.stringLocked(b.entries[i])
}

func (b *Bag) lookup(name string) (*Property, bool) {
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.entries[i], true
}

// upsert inserts a new property or overwrites an existing one's storage
// in-place, preserving insertion order (§3 "names are unique within a bag").
func (b *Bag) upsert(p *Property) {
	if i, ok := b.index[p.Name]; ok {
		b.entries[i] = p
		return
	}
	b.index[p.Name] = len(b.entries)
	b.entries = append(b.entries, p)
}

// Clear removes a property, firing property-changed with its name.
func (b *Bag) Clear(name string) bool {
	b.mu.Lock()
	i, ok := b.index[name]
	if !ok {
		b.mu.Unlock()
		return false
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	delete(b.index, name)
	for n, idx := range b.index {
		if idx > i {
			b.index[n] = idx - 1
		}
	}
	b.mu.Unlock()
	b.fireChanged(name)
	return true
}

// Names returns every property name in insertion order (a convenience over
// repeated GetName calls, used by the XML codec and YAML serializer).
func (b *Bag) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.entries))
	for i, p := range b.entries {
		names[i] = p.Name
	}
	return names
}

// sortedNames returns the set's names in sorted order, for a deterministic
// pending-event flush order (map iteration order is not stable).
func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// fireChanged fires property-changed for name immediately, or accumulates it
// for flush at Unblock-to-zero if the bag is currently blocked (§4.1
// "Bulk mutators increment a block depth; events accumulate and fire at
// depth 0", distinct from event.Bus's own block which drops rather than
// queues).
func (b *Bag) fireChanged(name string) {
	b.mu.Lock()
	if b.blockDepth > 0 {
		b.pendingFires[name] = true
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.bus.Fire("property-changed", name)
}

// Block increments the bulk-mutation depth; property-changed events
// accumulate instead of firing.
func (b *Bag) Block() {
	b.mu.Lock()
	b.blockDepth++
	b.mu.Unlock()
}

// Unblock decrements the bulk-mutation depth, flushing any accumulated
// property-changed events (deduplicated, in name order) once it reaches
// zero.
func (b *Bag) Unblock() {
	b.mu.Lock()
	if b.blockDepth > 0 {
		b.blockDepth--
	}
	var toFire []string
	if b.blockDepth == 0 && len(b.pendingFires) > 0 {
		toFire = sortedNames(b.pendingFires)
		b.pendingFires = map[string]bool{}
	}
	b.mu.Unlock()
	for _, name := range toFire {
		b.bus.Fire("property-changed", name)
	}
}

func itoa(i int64) string { return strconv.FormatInt(i, 10) }
