package props

import (
	"fmt"
	"strings"

	"mlt/pkg/anim"
)

// AnimSet stores value as an animated string at position within an animation
// of the given length, creating or extending the backing Animation (§4.1).
// value.Kind selects how VALUE in the grammar is parsed.
func (b *Bag) AnimSet(name string, value anim.Value, position, length int, keyType anim.Interp) error {
	b.mu.Lock()
	p, ok := b.lookup(name)
	if !ok {
		p = &Property{Name: name, Kind: KindAnim}
		b.upsert(p)
	}
	if p.anim == nil {
		kind := value.Kind
		if p.Kind == KindAnim && p.raw != "" {
			parsed, err := anim.Parse(p.raw, kind, length, b.fps)
			if err != nil {
				b.mu.Unlock()
				return fmt.Errorf("anim_set: %w", err)
			}
			p.anim = parsed
		} else {
			p.anim = anim.New(kind, length)
		}
		p.Kind = KindAnim
	}
	p.anim.Set(position, value, keyType)
	p.raw = p.anim.Serialize(anim.Frames, b.fps)
	b.mu.Unlock()
	b.fireChanged(name)
	return nil
}

// animGet lazily promotes a plain-string property matching the animation
// grammar to an *anim.Animation on first access (§4.1 "A property whose
// string value matches the grammar... is promoted to an animation on first
// anim_get_*"), caching the result on the Property.
func (b *Bag) animGet(name string, kind anim.ValueKind, length int) (*anim.Animation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lookup(name)
	if !ok {
		return nil, fmt.Errorf("anim_get: no such property %q", name)
	}
	if p.anim != nil {
		return p.anim, nil
	}
	a, err := anim.Parse(p.raw, kind, length, b.fps)
	if err != nil {
		// §4.1: malformed grammar is a recoverable parse error; the property
		// remains a plain string.
		return nil, err
	}
	p.anim = a
	p.Kind = KindAnim
	return a, nil
}

// AnimGetDouble evaluates the named animated property at position.
func (b *Bag) AnimGetDouble(name string, position, length int) (float64, error) {
	a, err := b.animGet(name, anim.VDouble, length)
	if err != nil {
		return 0, err
	}
	v, err := a.Interpolate(position)
	if err != nil {
		return 0, err
	}
	return v.AsDouble(), nil
}

// AnimGetInt evaluates the named animated property at position as an
// integer.
func (b *Bag) AnimGetInt(name string, position, length int) (int64, error) {
	a, err := b.animGet(name, anim.VInt, length)
	if err != nil {
		return 0, err
	}
	v, err := a.Interpolate(position)
	if err != nil {
		return 0, err
	}
	return v.Int, nil
}

// AnimGetRect evaluates the named animated property at position as a
// rectangle.
func (b *Bag) AnimGetRect(name string, position, length int) (anim.Rect, error) {
	a, err := b.animGet(name, anim.VRect, length)
	if err != nil {
		return anim.Rect{}, err
	}
	v, err := a.Interpolate(position)
	if err != nil {
		return anim.Rect{}, err
	}
	return v.Rect, nil
}

// Pass copies every property of src whose name begins with prefix into b,
// stripping the prefix on insertion (§4.1).
func (b *Bag) Pass(src *Bag, prefix string) {
	src.mu.Lock()
	var copies []*Property
	for _, p := range src.entries {
		if strings.HasPrefix(p.Name, prefix) {
			cp := *p
			cp.Name = strings.TrimPrefix(p.Name, prefix)
			copies = append(copies, &cp)
		}
	}
	src.mu.Unlock()

	for _, p := range copies {
		b.mu.Lock()
		b.upsert(p)
		b.mu.Unlock()
		b.fireChanged(p.Name)
	}
}

// Inherit copies any property of src absent from b (§4.1).
func (b *Bag) Inherit(src *Bag) {
	src.mu.Lock()
	var copies []*Property
	for _, p := range src.entries {
		b.mu.Lock()
		_, exists := b.index[p.Name]
		b.mu.Unlock()
		if !exists {
			cp := *p
			copies = append(copies, &cp)
		}
	}
	src.mu.Unlock()

	for _, p := range copies {
		b.mu.Lock()
		b.upsert(p)
		b.mu.Unlock()
		b.fireChanged(p.Name)
	}
}
