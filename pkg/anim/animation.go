// Package anim implements keyframed animation curves over integer frame
// positions (§4.2): parse/serialize of the ITEM(;ITEM)* grammar, and
// discrete/linear/smooth/ease interpolation.
package anim

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/interp"
)

// Keyframe is one (position, value, type) entry.
type Keyframe struct {
	Position int
	Value    Value
	Type     Interp
}

// Animation is an ordered list of keyframes plus a sampleable length.
type Animation struct {
	mu        sync.Mutex
	keyframes []Keyframe
	length    int
	kind      ValueKind

	natural     interp.FritschButland
	naturalOK   bool
	naturalDiry bool
}

// New returns an empty Animation of the given value kind and length.
func New(kind ValueKind, length int) *Animation {
	return &Animation{kind: kind, length: length}
}

// Length returns the animation's max sampleable position.
func (a *Animation) Length() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.length
}

// SetLength truncates the curve by removing keyframes strictly beyond
// newLength (§4.2). Keyframes at or before newLength are kept.
func (a *Animation) SetLength(newLength int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.length = newLength
	kept := a.keyframes[:0]
	for _, k := range a.keyframes {
		if k.Position <= newLength {
			kept = append(kept, k)
		}
	}
	a.keyframes = kept
	a.naturalDiry = true
}

// KeyCount returns the number of keyframes.
func (a *Animation) KeyCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keyframes)
}

// KeyGet returns the position and type of the i-th keyframe.
func (a *Animation) KeyGet(i int) (int, Interp, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.keyframes) {
		return 0, "", fmt.Errorf("keyframe index %d out of range", i)
	}
	k := a.keyframes[i]
	return k.Position, k.Type, nil
}

// KeyGetFrame is an alias of KeyGet's position component: in this
// implementation positions are always frame-indexed, so the two operations
// named separately in §4.1 (key_get / key_get_frame) coincide.
func (a *Animation) KeyGetFrame(i int) (int, error) {
	pos, _, err := a.KeyGet(i)
	return pos, err
}

// KeyframeType returns the type of the i-th keyframe.
func (a *Animation) KeyframeType(i int) (Interp, error) {
	_, t, err := a.KeyGet(i)
	return t, err
}

// IsKey reports whether position has an exact keyframe.
func (a *Animation) IsKey(position int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.find(position)
	return ok
}

// GetItem reports whether position is an exact keyframe, and if so its type;
// if not, the type of the segment position falls within.
func (a *Animation) GetItem(position int) (bool, Interp) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i, ok := a.find(position); ok {
		return true, a.keyframes[i].Type
	}
	idx := a.segmentLeft(position)
	if idx < 0 {
		return false, Linear
	}
	return false, a.keyframes[idx].Type
}

// find returns the index of the keyframe at position, if any.
func (a *Animation) find(position int) (int, bool) {
	i := sort.Search(len(a.keyframes), func(i int) bool {
		return a.keyframes[i].Position >= position
	})
	if i < len(a.keyframes) && a.keyframes[i].Position == position {
		return i, true
	}
	return i, false
}

// segmentLeft returns the index of the keyframe at or before position, or -1.
func (a *Animation) segmentLeft(position int) int {
	idx := -1
	for i, k := range a.keyframes {
		if k.Position <= position {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// Set inserts a keyframe, or replaces it (and its type) if position already
// has one.
func (a *Animation) Set(position int, value Value, keyType Interp) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setLocked(position, value, keyType)
}

func (a *Animation) setLocked(position int, value Value, keyType Interp) {
	if i, ok := a.find(position); ok {
		a.keyframes[i].Value = value
		a.keyframes[i].Type = keyType
		a.naturalDiry = true
		return
	}
	i := sort.Search(len(a.keyframes), func(i int) bool {
		return a.keyframes[i].Position >= position
	})
	a.keyframes = append(a.keyframes, Keyframe{})
	copy(a.keyframes[i+1:], a.keyframes[i:])
	a.keyframes[i] = Keyframe{Position: position, Value: value, Type: keyType}
	a.naturalDiry = true
}

// Remove deletes the keyframe at position, if one exists.
func (a *Animation) Remove(position int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.find(position)
	if !ok {
		return fmt.Errorf("no keyframe at position %d", position)
	}
	a.keyframes = append(a.keyframes[:i], a.keyframes[i+1:]...)
	a.naturalDiry = true
	return nil
}

// NextKey returns the first keyframe position strictly after position.
func (a *Animation) NextKey(position int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range a.keyframes {
		if k.Position > position {
			return k.Position, true
		}
	}
	return 0, false
}

// PreviousKey returns the last keyframe position strictly before position.
func (a *Animation) PreviousKey(position int) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	found := false
	var best int
	for _, k := range a.keyframes {
		if k.Position < position {
			best = k.Position
			found = true
		} else {
			break
		}
	}
	return best, found
}

// ShiftFrames moves every keyframe by delta, which may be negative and may
// produce negative keyframe positions (§8).
func (a *Animation) ShiftFrames(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.keyframes {
		a.keyframes[i].Position += delta
	}
	a.naturalDiry = true
}

// Interpolate evaluates the animation at position, clamping out-of-range
// queries to the nearest keyframe value (invariant, §3).
func (a *Animation) Interpolate(position int) (Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.keyframes)
	if n == 0 {
		return Value{}, fmt.Errorf("animation has no keyframes")
	}
	if n == 1 {
		return a.keyframes[0].Value, nil
	}
	if position <= a.keyframes[0].Position {
		return a.keyframes[0].Value, nil
	}
	if position >= a.keyframes[n-1].Position {
		return a.keyframes[n-1].Value, nil
	}

	idx := a.segmentLeft(position)
	k0 := a.keyframes[idx]
	k1 := a.keyframes[idx+1]
	if position == k0.Position {
		return k0.Value, nil
	}
	t := float64(position-k0.Position) / float64(k1.Position-k0.Position)

	return a.interpolateValue(idx, k0, k1, t, position)
}

func (a *Animation) interpolateValue(idx int, k0, k1 Keyframe, t float64, position int) (Value, error) {
	switch k0.Type {
	case Discrete:
		if position >= k1.Position {
			return k1.Value, nil
		}
		return k0.Value, nil
	case Linear:
		return a.lerpValue(k0.Value, k1.Value, t), nil
	case SmoothNatural:
		if a.kind != VDouble && a.kind != VInt {
			return a.lerpValue(k0.Value, k1.Value, t), nil
		}
		return a.smoothNatural(position, k0.Value), nil
	case SmoothLoose:
		if a.kind != VDouble && a.kind != VInt {
			return a.lerpValue(k0.Value, k1.Value, t), nil
		}
		return a.hermite(idx, k0, k1, t, 0, 0), nil
	case SmoothTight:
		if a.kind != VDouble && a.kind != VInt {
			return a.lerpValue(k0.Value, k1.Value, t), nil
		}
		// Kochanek-Bartels with high tension, zero bias: suppresses overshoot.
		return a.hermite(idx, k0, k1, t, 0.6, 0), nil
	default:
		if IsEase(k0.Type) {
			e := easeUnit(k0.Type, t)
			return a.lerpValue(k0.Value, k1.Value, e), nil
		}
		return a.lerpValue(k0.Value, k1.Value, t), nil
	}
}

func (a *Animation) lerpValue(v0, v1 Value, t float64) Value {
	switch a.kind {
	case VRect:
		return RectValue(Rect{
			X: lerp(v0.Rect.X, v1.Rect.X, t),
			Y: lerp(v0.Rect.Y, v1.Rect.Y, t),
			W: lerp(v0.Rect.W, v1.Rect.W, t),
			H: lerp(v0.Rect.H, v1.Rect.H, t),
		})
	case VColor:
		return ColorValue(Color{
			A: uint8(lerp(float64(v0.Color.A), float64(v1.Color.A), t)),
			R: uint8(lerp(float64(v0.Color.R), float64(v1.Color.R), t)),
			G: uint8(lerp(float64(v0.Color.G), float64(v1.Color.G), t)),
			B: uint8(lerp(float64(v0.Color.B), float64(v1.Color.B), t)),
		})
	case VInt:
		return IntValue(int64(lerp(float64(v0.Int), float64(v1.Int), t) + 0.5))
	default:
		return DoubleValue(lerp(v0.AsDouble(), v1.AsDouble(), t))
	}
}

func lerp(a, b, t float64) float64 { return a + t*(b-a) }

// smoothNatural evaluates a monotone (Fritsch-Carlson family) cubic fit
// across every keyframe, guaranteeing no reversal between neighboring
// keyframes except where the user's own keyframe values change direction
// (§4.2, §8).
func (a *Animation) smoothNatural(position int, fallback Value) Value {
	if a.naturalDiry || !a.naturalOK {
		xs := make([]float64, len(a.keyframes))
		ys := make([]float64, len(a.keyframes))
		for i, k := range a.keyframes {
			xs[i] = float64(k.Position)
			ys[i] = k.Value.AsDouble()
		}
		if err := a.natural.Fit(xs, ys); err != nil {
			a.naturalOK = false
		} else {
			a.naturalOK = true
		}
		a.naturalDiry = false
	}
	if !a.naturalOK {
		return fallback
	}
	return DoubleValue(a.natural.Predict(float64(position)))
}

// hermite evaluates a cubic Hermite segment between k0 and k1 using slopes
// derived from the surrounding keyframes (Catmull-Rom when tension=0), with
// an optional Kochanek-Bartels tension term to suppress overshoot.
func (a *Animation) hermite(idx int, k0, k1 Keyframe, t, tension, bias float64) Value {
	v0 := k0.Value.AsDouble()
	v1 := k1.Value.AsDouble()

	prev := v0
	if idx > 0 {
		prev = a.keyframes[idx-1].Value.AsDouble()
	}
	next := v1
	if idx+2 < len(a.keyframes) {
		next = a.keyframes[idx+2].Value.AsDouble()
	}

	m0 := (1 - tension) * (1 + bias) / 2 * (v1 - prev)
	m1 := (1 - tension) * (1 - bias) / 2 * (next - v0)

	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	result := h00*v0 + h10*m0 + h01*v1 + h11*m1
	return valueFromDouble(a.kind, result)
}

func valueFromDouble(kind ValueKind, d float64) Value {
	switch kind {
	case VInt:
		return IntValue(int64(d + 0.5))
	default:
		return DoubleValue(d)
	}
}

// Serialize renders the animation as POSITION[CODE]=VALUE joined by ';', in
// the given time format. Only keyframes within [0, length] are emitted; the
// rest are preserved in memory (§4.2).
func (a *Animation) Serialize(format TimeFormat, fps float64) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var parts []string
	for _, k := range a.keyframes {
		if k.Position < 0 || k.Position > a.length {
			continue
		}
		pos := format.formatPosition(k.Position, fps)
		parts = append(parts, pos+string(k.Type)+"="+k.Value.serialize())
	}
	return strings.Join(parts, ";")
}
