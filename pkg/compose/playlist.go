// Package compose implements the three composing producers of §4.6:
// Playlist (sequential entries), Multitrack (parallel tracks), and Tractor
// (multitrack + transitions + track/output-scoped filters).
package compose

import (
	"fmt"
	"sync"

	"mlt/pkg/builtin"
	"mlt/pkg/frame"
	"mlt/pkg/service"
)

// EntryKind discriminates a playlist entry (§4.6 "Playlist").
type EntryKind int

// Entry kinds.
const (
	EntryClip EntryKind = iota
	EntryBlank
)

// Entry is one playlist slot (§4.6 Playlist state
// "{kind, producer?, in, out, repeat, filter_list}").
type Entry struct {
	Kind       EntryKind
	Producer   *service.Service // nil for EntryBlank
	In, Out    int
	Repeat     int // >= 1
	FilterList []*service.Service
}

// length returns the entry's total frame span across all repeats.
func (e Entry) length() int {
	span := e.Out - e.In + 1
	if e.Kind == EntryBlank {
		span = e.Out + 1 // blank entries store their length directly in Out
	}
	repeat := e.Repeat
	if repeat < 1 {
		repeat = 1
	}
	return span * repeat
}

func (e Entry) clipLength() int {
	if e.Kind == EntryBlank {
		return e.Out + 1
	}
	return e.Out - e.In + 1
}

// Playlist is a producer whose state is an ordered sequence of clip/blank
// entries (§4.6).
type Playlist struct {
	mu      sync.Mutex
	entries []Entry
	id      string
	fps     float64
}

// NewPlaylist returns an empty playlist.
func NewPlaylist(id string, fps float64) *Playlist {
	return &Playlist{id: id, fps: fps}
}

// AppendClip appends a clip entry referencing producer's [in, out] range.
func (p *Playlist) AppendClip(producer *service.Service, in, out int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, Entry{Kind: EntryClip, Producer: producer, In: in, Out: out, Repeat: 1})
}

// AppendBlank appends a silent gap of the given length.
func (p *Playlist) AppendBlank(length int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, Entry{Kind: EntryBlank, Out: length - 1, Repeat: 1})
}

// InsertAt inserts entry at index, shifting later entries right.
func (p *Playlist) InsertAt(index int, entry Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index > len(p.entries) {
		return fmt.Errorf("insert_at: index %d out of range", index)
	}
	if entry.Repeat < 1 {
		entry.Repeat = 1
	}
	p.entries = append(p.entries, Entry{})
	copy(p.entries[index+1:], p.entries[index:])
	p.entries[index] = entry
	return nil
}

// Remove deletes the entry at index.
func (p *Playlist) Remove(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.entries) {
		return fmt.Errorf("remove: index %d out of range", index)
	}
	p.entries = append(p.entries[:index], p.entries[index+1:]...)
	return nil
}

// ClipCount returns the number of entries.
func (p *Playlist) ClipCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// ClipLength returns the (single-repeat-unit) length of the entry at index.
func (p *Playlist) ClipLength(index int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.entries) {
		return 0, fmt.Errorf("clip_length: index %d out of range", index)
	}
	return p.entries[index].clipLength(), nil
}

// AttachFilter appends filter to the entry-scoped filter list at index
// (§4.6 Playlist state "filter_list"); it runs on that entry's frames only,
// independent of any filters attached to the underlying producer itself.
func (p *Playlist) AttachFilter(index int, filter *service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.entries) {
		return fmt.Errorf("attach_filter: index %d out of range", index)
	}
	p.entries[index].FilterList = append(p.entries[index].FilterList, filter)
	return nil
}

// ClipInfo returns a copy of the entry at index.
func (p *Playlist) ClipInfo(index int) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.entries) {
		return Entry{}, fmt.Errorf("clip_info: index %d out of range", index)
	}
	return p.entries[index], nil
}

// TotalLength is the sum of every entry's length x repeat (§3 "Playlist").
func (p *Playlist) TotalLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, e := range p.entries {
		total += e.length()
	}
	return total
}

// Split divides the entry at index into two entries at the relative
// position within it (§4.6 "split(index, relative)").
func (p *Playlist) Split(index, relative int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.entries) {
		return fmt.Errorf("split: index %d out of range", index)
	}
	e := p.entries[index]
	if relative <= 0 || relative >= e.clipLength() {
		return fmt.Errorf("split: relative position %d out of range for entry length %d", relative, e.clipLength())
	}
	var left, right Entry
	if e.Kind == EntryBlank {
		left = Entry{Kind: EntryBlank, Out: relative - 1, Repeat: 1}
		right = Entry{Kind: EntryBlank, Out: e.Out - relative, Repeat: 1}
	} else {
		left = Entry{Kind: EntryClip, Producer: e.Producer, In: e.In, Out: e.In + relative - 1, Repeat: 1}
		right = Entry{Kind: EntryClip, Producer: e.Producer, In: e.In + relative, Out: e.Out, Repeat: 1}
	}
	p.entries = append(p.entries, Entry{})
	copy(p.entries[index+2:], p.entries[index+1:])
	p.entries[index] = left
	p.entries[index+1] = right
	return nil
}

// Join checks that entries[index:index+clips] is in range (§4.6
// "join(index, clips, split)"). When split is false it resets the repeat
// count of every entry in the range to 1; when split is true it changes
// nothing. The entries are not merged into one, and blanks in the range are
// kept.
func (p *Playlist) Join(index, clips int, split bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index+clips > len(p.entries) {
		return fmt.Errorf("join: range [%d,%d) out of bounds", index, index+clips)
	}
	if split {
		return nil
	}
	for i := index; i < index+clips; i++ {
		p.entries[i].Repeat = 1
	}
	return nil
}

// Mix splices a transition-bridged overlap of length frames between the
// clip entries at index and index+1 (§4.6 "mix(index, length, transition?)"):
// it shortens each neighbor by length frames and inserts a new entry between
// them whose producer composes their overlapping tail/head through a
// two-track Tractor, rather than a flat cut. transition may be nil, in which
// case melt's default `luma` crossfade is used, mirroring cmd/melt's own
// `-mix` default.
func (p *Playlist) Mix(index, length int, transition *service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index+1 >= len(p.entries) {
		return fmt.Errorf("mix: index %d has no following entry to mix with", index)
	}
	a, b := p.entries[index], p.entries[index+1]
	if a.Kind != EntryClip || b.Kind != EntryClip {
		return fmt.Errorf("mix: entries %d and %d must both be clips", index, index+1)
	}
	if length <= 0 || length > a.clipLength() || length > b.clipLength() {
		return fmt.Errorf("mix: length %d exceeds one of the adjoining clips", length)
	}

	tailA := a.Producer.Cut(a.Out-length+1, a.Out)
	headB := b.Producer.Cut(b.In, b.In+length-1)

	if transition == nil {
		transition = builtin.NewLumaTransition("")
	}

	mt := NewMultitrack(p.id + "#mix")
	mt.Connect(0, tailA)
	mt.Connect(1, headB)
	tr := NewTractor(p.id+"#mix", p.fps, mt, length)
	tr.AddTransition(transition, 0, 1)

	mixEntry := Entry{Kind: EntryClip, Producer: tr.AsProducer(), In: 0, Out: length - 1, Repeat: 1}

	p.entries[index].Out -= length
	p.entries[index+1].In += length

	p.entries = append(p.entries, Entry{})
	copy(p.entries[index+2:], p.entries[index+1:])
	p.entries[index+1] = mixEntry
	return nil
}

// resolve maps a playlist-relative frame index to (entry index, local
// position within the entry's [in,out], repeat iteration) (§4.6
// "get_frame(index) resolves index to (entry_idx, local_position,
// repeat_iteration)").
func (p *Playlist) resolve(index int) (entryIdx, local, repeatIter int, ok bool) {
	remaining := index
	for i, e := range p.entries {
		unit := e.clipLength()
		repeat := e.Repeat
		if repeat < 1 {
			repeat = 1
		}
		total := unit * repeat
		if remaining < total {
			return i, remaining % unit, remaining / unit, true
		}
		remaining -= total
	}
	return 0, 0, 0, false
}

// GetFrame implements the producer contract for a Playlist (§4.6).
func (p *Playlist) GetFrame(index int) (*frame.Frame, error) {
	p.mu.Lock()
	entryIdx, local, repeatIter, ok := p.resolve(index)
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("get_frame: position %d beyond playlist total length", index)
	}
	e := p.entries[entryIdx]
	p.mu.Unlock()

	if e.Kind == EntryBlank {
		f := frame.Blank(p.id, index)
		f.Props.SetInt("repeat_iteration", int64(repeatIter))
		return f, nil
	}

	f, err := e.Producer.GetFrame(e.In + local)
	if err != nil {
		return nil, err
	}
	f.Props.SetInt("repeat_iteration", int64(repeatIter))

	for _, filter := range e.FilterList {
		f, err = filter.Process(f)
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AsProducer adapts the playlist into a generic producer service, so it can
// be nested as a track inside a Multitrack or cut like any other producer.
func (p *Playlist) AsProducer() *service.Service {
	s := service.NewProducer(p.id, p.TotalLength(), p.fps, func(s *service.Service, index int) (*frame.Frame, error) {
		return p.GetFrame(index)
	})
	registerTrackPlaylist(s, p)
	return s
}
