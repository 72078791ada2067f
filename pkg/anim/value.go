package anim

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind discriminates the value carried by a Keyframe or returned by
// Interpolate.
type ValueKind int

// Value kinds.
const (
	VDouble ValueKind = iota
	VInt
	VString
	VRect
	VColor
)

// Rect is a 4-tuple keyframe value (§4.2 "If keyframes are 4-tuples
// (rectangles)... interpolate component-wise").
type Rect struct{ X, Y, W, H float64 }

// Color is a 4-component keyframe value, components in [0,255].
type Color struct{ A, R, G, B uint8 }

// Value is a tagged union over the types an animation keyframe may carry.
type Value struct {
	Kind   ValueKind
	Double float64
	Int    int64
	Str    string
	Rect   Rect
	Color  Color
}

// DoubleValue constructs a VDouble Value.
func DoubleValue(v float64) Value { return Value{Kind: VDouble, Double: v} }

// IntValue constructs a VInt Value.
func IntValue(v int64) Value { return Value{Kind: VInt, Int: v} }

// StringValue constructs a VString Value.
func StringValue(v string) Value { return Value{Kind: VString, Str: v} }

// RectValue constructs a VRect Value.
func RectValue(v Rect) Value { return Value{Kind: VRect, Rect: v} }

// ColorValue constructs a VColor Value.
func ColorValue(v Color) Value { return Value{Kind: VColor, Color: v} }

// AsDouble coerces the value to float64 for arithmetic interpolation.
func (v Value) AsDouble() float64 {
	switch v.Kind {
	case VDouble:
		return v.Double
	case VInt:
		return float64(v.Int)
	case VString:
		f, _ := strconv.ParseFloat(v.Str, 64)
		return f
	default:
		return 0
	}
}

func (v Value) serialize() string {
	switch v.Kind {
	case VDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case VInt:
		return strconv.FormatInt(v.Int, 10)
	case VString:
		if strings.ContainsAny(v.Str, "=;\"") {
			return `"` + strings.ReplaceAll(v.Str, `"`, `\"`) + `"`
		}
		return v.Str
	case VRect:
		return fmt.Sprintf("%s %s %s %s",
			trimFloat(v.Rect.X), trimFloat(v.Rect.Y), trimFloat(v.Rect.W), trimFloat(v.Rect.H))
	case VColor:
		return fmt.Sprintf("#%02X%02X%02X%02X", v.Color.A, v.Color.R, v.Color.G, v.Color.B)
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseValue(s string, kind ValueKind) (Value, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case VDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse double %q: %w", s, err)
		}
		return DoubleValue(f), nil
	case VInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parse int %q: %w", s, err)
		}
		return IntValue(i), nil
	case VRect:
		parts := strings.Fields(s)
		if len(parts) != 4 {
			return Value{}, fmt.Errorf("rect value %q needs 4 components", s)
		}
		var nums [4]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return Value{}, fmt.Errorf("parse rect component %q: %w", p, err)
			}
			nums[i] = f
		}
		return RectValue(Rect{nums[0], nums[1], nums[2], nums[3]}), nil
	case VColor:
		c, err := parseColor(s)
		if err != nil {
			return Value{}, err
		}
		return ColorValue(c), nil
	default:
		if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
			s = strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
		}
		return StringValue(s), nil
	}
}

func parseColor(s string) (Color, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 8 {
		return Color{}, fmt.Errorf("color %q must be #AARRGGBB", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return Color{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}
