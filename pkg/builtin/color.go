// Package builtin implements the small set of always-available services
// melt.c's module registry ships by default: the `colour:`/`color:` test
// producer and the headless `test` consumer mock, grounded on the teacher's
// pkg/ffmpeg/ffmock mock-process pattern (a closure-returning constructor
// standing in for a real, hardware/codec-backed implementor).
package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"mlt/pkg/frame"
	"mlt/pkg/service"
)

// NewColorProducer builds a solid-color producer, melt's `color:ARG` service.
// ARG is a named color, `0xRRGGBBAA` hex, or a bare decimal; length is in
// frames (0 means unbounded, modeled here as a very large length since the
// in-memory graph has no true "unbounded" producer kind).
func NewColorProducer(arg string, length int, fps float64) *service.Service {
	packed := parseColorArg(arg)
	if length <= 0 {
		length = 15000 // melt.c's "unbounded" producers still report a finite, generous length
	}

	var s *service.Service
	s = service.NewProducer(fmt.Sprintf("colour:%s", arg), length, fps, func(_ *service.Service, index int) (*frame.Frame, error) {
		f := frame.Init(s.ID)
		f.SetPosition(index)
		f.Props.SetInt("color", packed)
		f.PushGetImage(func(fr *frame.Frame, _ bool) ([]byte, frame.PixelFormat, int, int, error) {
			w, h := 1, 1
			buf := []byte{
				byte(packed >> 24), byte(packed >> 16), byte(packed >> 8), byte(packed),
			}
			return buf, frame.PixRGBA, w, h, nil
		})
		return f, nil
	})
	return s
}

func parseColorArg(arg string) int64 {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0x000000FF
	}
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		if v, err := strconv.ParseInt(arg[2:], 16, 64); err == nil {
			return v
		}
	}
	if v, ok := namedColors[arg]; ok {
		return v
	}
	if v, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return v
	}
	return 0x000000FF
}

var namedColors = map[string]int64{
	"white":       0xFFFFFFFF,
	"black":       0x000000FF,
	"red":         0xFF0000FF,
	"green":       0x00FF00FF,
	"blue":        0x0000FFFF,
	"transparent": 0x00000000,
}

// MockConsumer is a headless consumer standing in for sdl2/decklink/etc in
// tests and the `-consumer test` CLI path: it records every frame shown
// instead of rendering it.
type MockConsumer struct {
	mu     sync.Mutex
	Frames []*frame.Frame
}

// NewMockConsumer returns a MockConsumer ready to be driven by
// pkg/consumer.Runtime via OnFrameShown.
func NewMockConsumer() *MockConsumer {
	return &MockConsumer{}
}

// OnFrameShown is suitable to pass directly to Runtime.OnFrameShown.
func (m *MockConsumer) OnFrameShown(f *frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, f)
}

// Count returns the number of frames recorded so far.
func (m *MockConsumer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Frames)
}
