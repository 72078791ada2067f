package compose

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mlt/pkg/frame"
	"mlt/pkg/service"
)

func taggingFilter(key string, value int64) *service.Service {
	return service.NewFilter("tag", func(_ *service.Service, f *frame.Frame) (*frame.Frame, error) {
		f.Props.SetInt(key, value)
		return f, nil
	})
}

func colorProducer(id string, length int) *service.Service {
	return service.NewProducer(id, length, 25, func(s *service.Service, index int) (*frame.Frame, error) {
		f := frame.Init(id)
		f.Props.SetInt("index", int64(index))
		return f, nil
	})
}

func TestPlaylistTotalLength(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clip := colorProducer("clip1", 100)
	p.AppendClip(clip, 0, 49) // 50 frames
	p.AppendBlank(10)

	require.Equal(t, 60, p.TotalLength())
}

func TestPlaylistGetFrameResolvesEntry(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clipA := colorProducer("a", 100)
	clipB := colorProducer("b", 100)
	p.AppendClip(clipA, 0, 9)  // 10 frames: playlist positions 0-9
	p.AppendClip(clipB, 5, 14) // 10 frames: playlist positions 10-19

	f, err := p.GetFrame(3)
	require.NoError(t, err)
	v, _ := f.Props.GetString("mlt_service")
	require.Equal(t, "a", v)
	idx, _ := f.Props.GetInt("index")
	require.Equal(t, int64(3), idx)

	f, err = p.GetFrame(12)
	require.NoError(t, err)
	v, _ = f.Props.GetString("mlt_service")
	require.Equal(t, "b", v)
	idx, _ = f.Props.GetInt("index")
	require.Equal(t, int64(7), idx) // in(5) + local(2)
}

func TestPlaylistBlankEntryReturnsSyntheticFrame(t *testing.T) {
	p := NewPlaylist("pl", 25)
	p.AppendBlank(5)

	f, err := p.GetFrame(2)
	require.NoError(t, err)
	ti, ok := f.Props.GetInt("test_image")
	require.True(t, ok)
	require.Equal(t, int64(1), ti)
}

func TestPlaylistRepeatMultipliesLength(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clip := colorProducer("a", 100)
	p.InsertAt(0, Entry{Kind: EntryClip, Producer: clip, In: 0, Out: 9, Repeat: 3})

	require.Equal(t, 30, p.TotalLength())

	f, err := p.GetFrame(15) // second repeat, local position 5
	require.NoError(t, err)
	idx, _ := f.Props.GetInt("index")
	require.Equal(t, int64(5), idx)
}

func TestPlaylistRemove(t *testing.T) {
	p := NewPlaylist("pl", 25)
	p.AppendBlank(5)
	p.AppendBlank(10)
	require.NoError(t, p.Remove(0))
	require.Equal(t, 1, p.ClipCount())
	require.Equal(t, 10, p.TotalLength())
}

func TestPlaylistSplit(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clip := colorProducer("a", 100)
	p.AppendClip(clip, 0, 19) // 20 frames

	require.NoError(t, p.Split(0, 8))
	require.Equal(t, 2, p.ClipCount())

	l0, _ := p.ClipLength(0)
	l1, _ := p.ClipLength(1)
	require.Equal(t, 8, l0)
	require.Equal(t, 12, l1)
}

func TestPlaylistAttachFilterAppliesToEntryOnly(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clipA := colorProducer("a", 100)
	clipB := colorProducer("b", 100)
	p.AppendClip(clipA, 0, 9)  // positions 0-9
	p.AppendClip(clipB, 0, 9) // positions 10-19

	require.NoError(t, p.AttachFilter(0, taggingFilter("tagged", 1)))

	f, err := p.GetFrame(3)
	require.NoError(t, err)
	v, ok := f.Props.GetInt("tagged")
	require.True(t, ok)
	require.Equal(t, int64(1), v)

	f, err = p.GetFrame(12)
	require.NoError(t, err)
	_, ok = f.Props.GetInt("tagged")
	require.False(t, ok, "filter attached to entry 0 must not apply to entry 1's frames")
}

func TestPlaylistAttachFilterRejectsOutOfRangeIndex(t *testing.T) {
	p := NewPlaylist("pl", 25)
	err := p.AttachFilter(0, taggingFilter("tagged", 1))
	require.Error(t, err)
}

func TestPlaylistMixSplicesTransitionEntryBetweenNeighbors(t *testing.T) {
	p := NewPlaylist("pl", 25)
	clipA := colorProducer("a", 100)
	clipB := colorProducer("b", 100)
	p.AppendClip(clipA, 0, 19) // 20 frames
	p.AppendClip(clipB, 0, 19) // 20 frames

	require.NoError(t, p.Mix(0, 5, nil))
	require.Equal(t, 3, p.ClipCount())

	l0, _ := p.ClipLength(0)
	l1, _ := p.ClipLength(1)
	l2, _ := p.ClipLength(2)
	require.Equal(t, 15, l0)
	require.Equal(t, 5, l1)
	require.Equal(t, 15, l2)
	require.Equal(t, 35, p.TotalLength())

	mixed, err := p.ClipInfo(1)
	require.NoError(t, err)
	require.Equal(t, EntryClip, mixed.Kind)

	f, err := p.GetFrame(15) // first frame of the mixed overlap entry
	require.NoError(t, err)
	require.NotNil(t, f)
}

func TestPlaylistMixRejectsNonAdjoiningClips(t *testing.T) {
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 19)
	p.AppendBlank(5)

	err := p.Mix(0, 3, nil)
	require.Error(t, err)
}

func TestPlaylistMixRejectsLengthLongerThanEitherClip(t *testing.T) {
	p := NewPlaylist("pl", 25)
	p.AppendClip(colorProducer("a", 100), 0, 9)  // 10 frames
	p.AppendClip(colorProducer("b", 100), 0, 19) // 20 frames

	err := p.Mix(0, 15, nil)
	require.Error(t, err)
}

func TestPlaylistGetFrameBeyondLengthErrors(t *testing.T) {
	p := NewPlaylist("pl", 25)
	p.AppendBlank(5)
	_, err := p.GetFrame(100)
	require.Error(t, err)
}
