package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColorProducerParsesNamedColor(t *testing.T) {
	s := NewColorProducer("red", 5, 25)
	f, err := s.GetFrame(0)
	require.NoError(t, err)
	v, _ := f.Props.GetInt("color")
	require.Equal(t, int64(0xFF0000FF), v)
}

func TestColorProducerParsesHex(t *testing.T) {
	s := NewColorProducer("0x00ff00ff", 5, 25)
	f, err := s.GetFrame(0)
	require.NoError(t, err)
	v, _ := f.Props.GetInt("color")
	require.Equal(t, int64(0x00ff00ff), v)
}

func TestColorProducerDefaultsLengthWhenUnbounded(t *testing.T) {
	s := NewColorProducer("white", 0, 25)
	require.Greater(t, s.GetLength(), 1000)
}

func TestColorProducerPushesImageClosure(t *testing.T) {
	s := NewColorProducer("blue", 3, 25)
	f, err := s.GetFrame(0)
	require.NoError(t, err)
	buf, format, w, h, err := f.GetImage(false)
	require.NoError(t, err)
	require.Equal(t, 1, w)
	require.Equal(t, 1, h)
	require.NotNil(t, buf)
	_ = format
}

func TestMockConsumerRecordsFrames(t *testing.T) {
	mc := NewMockConsumer()
	s := NewColorProducer("red", 3, 25)
	for i := 0; i < 3; i++ {
		f, err := s.GetFrame(i)
		require.NoError(t, err)
		mc.OnFrameShown(f)
	}
	require.Equal(t, 3, mc.Count())
}
