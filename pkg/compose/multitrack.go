package compose

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"mlt/pkg/frame"
	"mlt/pkg/service"
)

// Multitrack is a producer exposing N parallel track producers (§4.6
// "Multitrack").
type Multitrack struct {
	mu       sync.Mutex
	id       string
	tracks   []*service.Service
	position int // reference point for clip(io.SeekCurrent, ...)
}

// NewMultitrack returns an empty multitrack.
func NewMultitrack(id string) *Multitrack {
	return &Multitrack{id: id}
}

// Count returns the number of tracks.
func (m *Multitrack) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks)
}

// Connect attaches producer as the track at trackIndex, appending new track
// slots as needed.
func (m *Multitrack) Connect(trackIndex int, producer *service.Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for trackIndex >= len(m.tracks) {
		m.tracks = append(m.tracks, nil)
	}
	m.tracks[trackIndex] = producer
}

// Disconnect removes the track at trackIndex.
func (m *Multitrack) Disconnect(trackIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if trackIndex < 0 || trackIndex >= len(m.tracks) {
		return fmt.Errorf("disconnect: track %d out of range", trackIndex)
	}
	m.tracks[trackIndex] = nil
	return nil
}

// Track returns the producer connected at trackIndex.
func (m *Multitrack) Track(trackIndex int) (*service.Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if trackIndex < 0 || trackIndex >= len(m.tracks) {
		return nil, fmt.Errorf("track: index %d out of range", trackIndex)
	}
	t := m.tracks[trackIndex]
	if t == nil {
		return nil, fmt.Errorf("track: index %d not connected", trackIndex)
	}
	return t, nil
}

// Seek records the multitrack's current position, the reference point used
// by Clip(io.SeekCurrent, ...).
func (m *Multitrack) Seek(position int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = position
}

// Clip returns the position of the index-th clip boundary across every
// playlist-backed track, relative to whence (§4.6 "clip(whence, index) ->
// position"); whence mirrors io.Seeker's SeekStart/SeekCurrent/SeekEnd
// semantics applied to clip boundaries rather than byte offsets. Plain
// (non-playlist) tracks contribute no boundaries of their own but don't
// prevent Clip from resolving boundaries contributed by the others.
func (m *Multitrack) Clip(whence int, index int) (int, error) {
	m.mu.Lock()
	tracks := append([]*service.Service(nil), m.tracks...)
	current := m.position
	m.mu.Unlock()

	boundarySet := map[int]struct{}{}
	for _, t := range tracks {
		if t == nil {
			continue
		}
		pl, ok := trackPlaylist(t)
		if !ok {
			continue
		}
		total := 0
		n := pl.ClipCount()
		for i := 0; i < n; i++ {
			boundarySet[total] = struct{}{}
			l, err := pl.ClipLength(i)
			if err != nil {
				return 0, err
			}
			total += l
		}
		boundarySet[total] = struct{}{}
	}
	if len(boundarySet) == 0 {
		return 0, fmt.Errorf("clip: no playlist-backed tracks to resolve boundaries from")
	}

	boundaries := make([]int, 0, len(boundarySet))
	for b := range boundarySet {
		boundaries = append(boundaries, b)
	}
	sort.Ints(boundaries)

	switch whence {
	case io.SeekStart:
		if index < 0 || index >= len(boundaries) {
			return 0, fmt.Errorf("clip: index %d out of range for %d boundaries", index, len(boundaries))
		}
		return boundaries[index], nil
	case io.SeekEnd:
		i := len(boundaries) - 1 - index
		if i < 0 || i >= len(boundaries) {
			return 0, fmt.Errorf("clip: index %d out of range for %d boundaries", index, len(boundaries))
		}
		return boundaries[i], nil
	case io.SeekCurrent:
		i := sort.SearchInts(boundaries, current) + index
		if i < 0 || i >= len(boundaries) {
			return 0, fmt.Errorf("clip: index %d out of range for %d boundaries from current position", index, len(boundaries))
		}
		return boundaries[i], nil
	default:
		return 0, fmt.Errorf("clip: invalid whence %d", whence)
	}
}

// GetFrame produces the frame for track i at position, tagging the frame's
// metadata with the source track regardless of composition order (§3
// invariant "produces a frame whose metadata reflects track i").
func (m *Multitrack) GetFrame(trackIndex, position int) (*frame.Frame, error) {
	t, err := m.Track(trackIndex)
	if err != nil {
		return nil, err
	}
	f, err := t.GetFrame(position)
	if err != nil {
		return nil, err
	}
	f.Props.SetInt("track", int64(trackIndex))
	return f, nil
}

// trackPlaylistRegistry lets a Multitrack resolve a track's backing
// *Playlist when one was built via Playlist.AsProducer, so Clip can walk its
// clip boundaries. Plain producers (non-playlist tracks) simply don't
// support Clip.
var trackPlaylistRegistry = struct {
	mu sync.Mutex
	m  map[*service.Service]*Playlist
}{m: map[*service.Service]*Playlist{}}

func registerTrackPlaylist(s *service.Service, p *Playlist) {
	trackPlaylistRegistry.mu.Lock()
	defer trackPlaylistRegistry.mu.Unlock()
	trackPlaylistRegistry.m[s] = p
}

func trackPlaylist(s *service.Service) (*Playlist, bool) {
	trackPlaylistRegistry.mu.Lock()
	defer trackPlaylistRegistry.mu.Unlock()
	p, ok := trackPlaylistRegistry.m[s]
	return p, ok
}
