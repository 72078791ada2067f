package anim

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed animation string, recoverable per §4.1: the
// property remains a plain string. Offset is -1 for most errors and
// len(text) for an unterminated quote; the index of the offending character
// is not tracked.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("animation parse error at %d: %s", e.Offset, e.Msg)
}

// Parse parses text against the grammar `ITEM (; ITEM)*` with
// `ITEM = [POSITION [INTERP_CODE]] = VALUE` (§4.1), producing an Animation of
// the requested kind. fps resolves clock/SMPTE positions to frame indices.
func Parse(text string, kind ValueKind, length int, fps float64) (*Animation, error) {
	a := New(kind, length)
	items, err := splitItems(text)
	if err != nil {
		return nil, err
	}

	lastPosition := -1
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		eq := findUnquotedEquals(item)
		if eq < 0 {
			return nil, &ParseError{Offset: -1, Msg: fmt.Sprintf("missing '=' in item %q", item)}
		}
		keySpec := strings.TrimSpace(item[:eq])
		valueStr := item[eq+1:]

		position := lastPosition + 1
		keyType := Linear
		if keySpec != "" {
			posStr, code, err := splitPositionCode(keySpec)
			if err != nil {
				return nil, &ParseError{Offset: -1, Msg: err.Error()}
			}
			if posStr != "" {
				p, err := ParsePosition(posStr, fps)
				if err != nil {
					return nil, &ParseError{Offset: -1, Msg: err.Error()}
				}
				position = p
			}
			if code != "" {
				if !IsValidInterp(Interp(code)) {
					return nil, &ParseError{Offset: -1, Msg: fmt.Sprintf("unknown interpolation code %q", code)}
				}
				keyType = Interp(code)
			}
		}

		value, err := parseValue(valueStr, kind)
		if err != nil {
			return nil, &ParseError{Offset: -1, Msg: err.Error()}
		}

		a.Set(position, value, keyType)
		lastPosition = position
	}
	return a, nil
}

// splitItems splits text on ';' while respecting "..." quoting that protects
// internal '=' and ';' (§4.1). SMPTE drop-frame positions (HH:MM:SS;ff) also
// use ';' and must be quoted to survive item splitting; this mirrors the
// grammar as specified rather than inventing an escaping rule the spec
// doesn't define.
func splitItems(text string) ([]string, error) {
	var items []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ';' && !inQuote:
			items = append(items, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote {
		return nil, &ParseError{Offset: len(text), Msg: "unterminated quote"}
	}
	items = append(items, cur.String())
	return items, nil
}

func findUnquotedEquals(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '=':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// splitPositionCode splits "POSITION[CODE]" into its position string and a
// single-character interpolation code, if present. The code is any
// non-digit, non-colon, non-semicolon trailing character.
func splitPositionCode(keySpec string) (pos string, code string, err error) {
	if keySpec == "" {
		return "", "", nil
	}
	last := keySpec[len(keySpec)-1]
	if isPositionChar(last) {
		return keySpec, "", nil
	}
	return keySpec[:len(keySpec)-1], string(last), nil
}

// isPositionChar reports whether c can appear within a serialized position
// (frames, clock HH:MM:SS.mmm, or SMPTE HH:MM:SS:ff / HH:MM:SS;ff). '-' is
// deliberately excluded: positions are never negative in the grammar, so a
// trailing '-' is always the smooth-tight interpolation code.
func isPositionChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == ':' || c == ';' || c == '.'
}
