package props

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"mlt/pkg/anim"
)

// namedColors is the fallback table consulted when coercing a non-numeric,
// non-hex string to an integer as a color (§4.1 "then named-color table").
var namedColors = map[string]int64{
	"white":       0xFFFFFFFF,
	"black":       0x000000FF,
	"red":         0xFF0000FF,
	"green":       0x00FF00FF,
	"blue":        0x0000FFFF,
	"transparent": 0x00000000,
}

// SetString stores value as a plain string property.
func (b *Bag) SetString(name, value string) {
	b.setScalar(name, KindString, value, false)
}

// SetPath stores value as a path-typed string property: the absolute form is
// recorded, but reads and serialization return it relative to the bag's data
// directory, if one is set (§4.1 "Path rebasing").
func (b *Bag) SetPath(name, value string) {
	abs := value
	if !filepath.IsAbs(value) {
		if d := b.DataDir(); d != "" {
			abs = filepath.Join(d, value)
		}
	}
	b.setScalar(name, KindString, abs, true)
}

// SetInt stores value as an integer property.
func (b *Bag) SetInt(name string, value int64) {
	b.setScalar(name, KindInt, itoa(value), false)
}

// SetDouble stores value as a double property, formatted with the bag's
// numeric locale's decimal separator.
func (b *Bag) SetDouble(name string, value float64) {
	b.setScalar(name, KindDouble, b.formatDouble(value), false)
}

// SetPosition stores value as a frame-index property.
func (b *Bag) SetPosition(name string, value int) {
	b.setScalar(name, KindPosition, strconv.Itoa(value), false)
}

// SetTime stores value (seconds) as a time property.
func (b *Bag) SetTime(name string, seconds float64) {
	b.setScalar(name, KindTime, b.formatDouble(seconds), false)
}

func (b *Bag) setScalar(name string, kind Kind, raw string, isPath bool) {
	b.mu.Lock()
	b.upsert(&Property{Name: name, Kind: kind, raw: raw, isPath: isPath})
	b.mu.Unlock()
	b.fireChanged(name)
}

// SetBinary stores an opaque buffer with an owning destructor, invoked when
// the property is cleared or overwritten (§3 "Strings and opaque data own
// their storage via a destructor functor").
func (b *Bag) SetBinary(name string, data []byte, destructor func()) {
	b.mu.Lock()
	if old, ok := b.lookup(name); ok && old.binDtr != nil {
		old.binDtr()
	}
	b.upsert(&Property{Name: name, Kind: KindBinary, bin: data, binDtr: destructor})
	b.mu.Unlock()
	b.fireChanged(name)
}

// SetBag stores a child property bag under name, taking a reference.
func (b *Bag) SetBag(name string, child *Bag) {
	b.mu.Lock()
	b.upsert(&Property{Name: name, Kind: KindBag, child: child.Ref()})
	b.mu.Unlock()
	b.fireChanged(name)
}

// DataDir returns the bag's rebasing directory.
func (b *Bag) DataDir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataDir
}

func (b *Bag) formatDouble(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	b.mu.Lock()
	sep := b.locale
	b.mu.Unlock()
	if sep != "." && sep != "" {
		s = strings.Replace(s, ".", sep, 1)
	}
	return s
}

// GetString returns the raw string form, rebasing path-typed properties
// relative to the bag's data directory (§4.1: "Reads return the stored
// (rebased) form").
func (b *Bag) GetString(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lookup(name)
	if !ok || p.Kind == KindBinary || p.Kind == KindBag {
		return "", false
	}
	return b.stringLocked(p)
}

func (b *Bag) stringLocked(p *Property) (string, bool) {
	if p.isPath && b.dataDir != "" {
		if rel, err := filepath.Rel(b.dataDir, p.raw); err == nil {
			return rel, true
		}
	}
	return p.raw, true
}

// GetInt coerces a property to an integer: decimal parse, then 0x hex, then
// the named-color table (§4.1).
func (b *Bag) GetInt(name string) (int64, bool) {
	s, ok := b.GetString(name)
	if !ok {
		return 0, false
	}
	return coerceInt(s), true
}

func coerceInt(s string) int64 {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if i, err := strconv.ParseInt(s[2:], 16, 64); err == nil {
			return i
		}
	}
	if c, ok := namedColors[strings.ToLower(s)]; ok {
		return c
	}
	return 0
}

// GetDouble coerces a property to a double using the bag's numeric locale.
func (b *Bag) GetDouble(name string) (float64, bool) {
	s, ok := b.GetString(name)
	if !ok {
		return 0, false
	}
	b.mu.Lock()
	sep := b.locale
	b.mu.Unlock()
	if sep != "." && sep != "" {
		s = strings.Replace(s, sep, ".", 1)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// GetPosition coerces a property to a frame index.
func (b *Bag) GetPosition(name string) (int, bool) {
	s, ok := b.GetString(name)
	if !ok {
		return 0, false
	}
	b.mu.Lock()
	fps := b.fps
	b.mu.Unlock()
	p, err := anim.ParsePosition(s, fps)
	if err != nil {
		return 0, false
	}
	return p, true
}

// GetTime coerces a property to seconds, accepting the same time-string
// grammar as position (§4.1 "time-string parses accept...").
func (b *Bag) GetTime(name string) (float64, bool) {
	b.mu.Lock()
	fps := b.fps
	b.mu.Unlock()
	p, ok := b.GetPosition(name)
	if !ok || fps <= 0 {
		return 0, ok
	}
	return float64(p) / fps, true
}

// GetBinary returns the opaque buffer stored under name.
func (b *Bag) GetBinary(name string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lookup(name)
	if !ok || p.Kind != KindBinary {
		return nil, false
	}
	return p.bin, true
}

// GetBag returns the child bag stored under name.
func (b *Bag) GetBag(name string) (*Bag, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.lookup(name)
	if !ok || p.Kind != KindBag {
		return nil, false
	}
	return p.child, true
}

// ToUTF8 translates the property named src from the process's assumed
// filesystem encoding to UTF-8, storing the result under dst. Since Go
// strings are already byte sequences and the engine only ever runs against
// UTF-8 locales in practice, this validates rather than transcodes;
// malformed input leaves dst empty and reports an error, matching §4.1's
// "failure leaves the destination empty" contract.
func (b *Bag) ToUTF8(src, dst string) error {
	s, ok := b.GetString(src)
	if !ok {
		return fmt.Errorf("to_utf8: no such property %q", src)
	}
	if !utf8.ValidString(s) {
		b.SetString(dst, "")
		return fmt.Errorf("to_utf8: %q is not valid UTF-8", src)
	}
	b.SetString(dst, s)
	return nil
}

// FromUTF8 is ToUTF8's inverse; in this implementation both directions are
// UTF-8 validating passthroughs (see ToUTF8).
func (b *Bag) FromUTF8(src, dst string) error {
	return b.ToUTF8(src, dst)
}

// LoadFile reads the file at path into a binary property of the same name as
// its base filename.
func (b *Bag) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load_file: %w", err)
	}
	b.SetBinary(filepath.Base(path), data, nil)
	return nil
}

// DirList lists entries of dir matching pattern (a filepath.Match glob),
// optionally descending recursively, and records the count plus entries
// under "<name>" and "<name>.N" the way property-bag-backed directory
// listings are consumed elsewhere in the graph (e.g. producer "qtext"
// inputs).
func (b *Bag) DirList(name, dir, pattern string, recursive bool) (int, error) {
	var matches []string
	walker := filepath.Walk
	if !recursive {
		walker = func(root string, fn filepath.WalkFunc) error {
			entries, err := os.ReadDir(root)
			if err != nil {
				return err
			}
			for _, e := range entries {
				info, err := e.Info()
				if err != nil {
					return err
				}
				if err := fn(filepath.Join(root, e.Name()), info, nil); err != nil {
					return err
				}
			}
			return nil
		}
	}
	err := walker(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, filepath.Base(path)); !ok {
				return nil
			}
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("dir_list: %w", err)
	}
	for i, m := range matches {
		b.SetString(fmt.Sprintf("%s.%d", name, i), m)
	}
	b.SetInt(name, int64(len(matches)))
	return len(matches), nil
}
