package compose

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultitrackConnectAndGetFrame(t *testing.T) {
	m := NewMultitrack("mt")
	m.Connect(0, colorProducer("video", 100))
	m.Connect(1, colorProducer("audio", 100))

	require.Equal(t, 2, m.Count())

	f, err := m.GetFrame(1, 5)
	require.NoError(t, err)
	track, ok := f.Props.GetInt("track")
	require.True(t, ok)
	require.Equal(t, int64(1), track)
}

func TestMultitrackDisconnect(t *testing.T) {
	m := NewMultitrack("mt")
	m.Connect(0, colorProducer("a", 10))
	require.NoError(t, m.Disconnect(0))

	_, err := m.Track(0)
	require.Error(t, err)
}

func TestMultitrackFrameMetadataReflectsTrackRegardlessOfOrder(t *testing.T) {
	m := NewMultitrack("mt")
	m.Connect(0, colorProducer("a", 10))
	m.Connect(1, colorProducer("b", 10))

	f0, err := m.GetFrame(0, 3)
	require.NoError(t, err)
	f1, err := m.GetFrame(1, 3)
	require.NoError(t, err)

	t0, _ := f0.Props.GetInt("track")
	t1, _ := f1.Props.GetInt("track")
	require.Equal(t, int64(0), t0)
	require.Equal(t, int64(1), t1)
}

func TestMultitrackClipWalksPlaylistBoundaries(t *testing.T) {
	m := NewMultitrack("mt")
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 9)  // 10 frames
	p.AppendClip(colorProducer("b", 100), 0, 19) // 20 frames
	m.Connect(0, p.AsProducer())

	start, err := m.Clip(io.SeekStart, 1)
	require.NoError(t, err)
	require.Equal(t, 10, start)
}

func TestMultitrackClipFromEnd(t *testing.T) {
	m := NewMultitrack("mt")
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 9)  // boundary 0
	p.AppendClip(colorProducer("b", 100), 0, 19) // boundary 10, end boundary 30
	m.Connect(0, p.AsProducer())

	end, err := m.Clip(io.SeekEnd, 0)
	require.NoError(t, err)
	require.Equal(t, 30, end)
}

func TestMultitrackClipFromCurrent(t *testing.T) {
	m := NewMultitrack("mt")
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 9)  // boundary 0
	p.AppendClip(colorProducer("b", 100), 0, 19) // boundary 10, end boundary 30
	m.Connect(0, p.AsProducer())
	m.Seek(10)

	next, err := m.Clip(io.SeekCurrent, 1)
	require.NoError(t, err)
	require.Equal(t, 30, next)
}

func TestMultitrackClipAggregatesBoundariesAcrossTracks(t *testing.T) {
	m := NewMultitrack("mt")
	pa := NewPlaylist("a", 25)
	pa.AppendClip(colorProducer("a1", 100), 0, 9) // boundary 0, end boundary 10
	pb := NewPlaylist("b", 25)
	pb.AppendClip(colorProducer("b1", 100), 0, 4) // boundary 0, end boundary 5
	pb.AppendClip(colorProducer("b2", 100), 0, 4) // boundary 5, end boundary 10
	m.Connect(0, pa.AsProducer())
	m.Connect(1, pb.AsProducer())

	// union of boundaries across both tracks: {0, 5, 10}
	second, err := m.Clip(io.SeekStart, 1)
	require.NoError(t, err)
	require.Equal(t, 5, second)
}

func TestMultitrackClipRejectsInvalidWhence(t *testing.T) {
	m := NewMultitrack("mt")
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 9)
	m.Connect(0, p.AsProducer())

	_, err := m.Clip(99, 0)
	require.Error(t, err)
}
