// Package frame implements the lazy frame carrier of §4.4: a property bag
// plus LIFO image/audio closure stacks that unwind on get_image/get_audio.
package frame

import (
	"fmt"
	"sync"

	"mlt/pkg/props"
)

// PixelFormat enumerates image buffer layouts (§4.4).
type PixelFormat int

// Pixel formats.
const (
	PixNone PixelFormat = iota
	PixRGB24
	PixRGBA
	PixRGBA64
	PixYUV422
	PixYUV420P
	PixOpenGL
	PixYUV444P10
	PixMovit
)

// AudioFormat enumerates sample buffer layouts (§4.4).
type AudioFormat int

// Audio formats.
const (
	AudioNone AudioFormat = iota
	AudioS16
	AudioS32
	AudioFloat
	AudioS32LE
	AudioF32LE
	AudioU8
)

// GetImageFunc is a closure pushed onto a Frame's image stack. It may itself
// call Frame.GetImage recursively (unwinding into the next closure down) or
// produce pixels directly.
type GetImageFunc func(f *Frame, writable bool) (buf []byte, format PixelFormat, w, h int, err error)

// GetAudioFunc is audio's analogue of GetImageFunc.
type GetAudioFunc func(f *Frame) (buf []byte, format AudioFormat, freq, channels, samples int, err error)

// destructor is an owned-buffer release functor (§3 "own their storage via a
// destructor functor").
type destructor func()

// Frame is a lazy, position-identified carrier (§4.4).
type Frame struct {
	mu sync.Mutex

	Props *props.Bag

	position            int
	originalPosition    int
	originalPositionSet bool

	imageStack []GetImageFunc
	audioStack []GetAudioFunc

	image     []byte
	imageFmt  PixelFormat
	imageW    int
	imageH    int
	imageDtr  destructor
	imageSet  bool

	audio      []byte
	audioFmt   AudioFormat
	audioFreq  int
	audioChans int
	audioN     int
	audioDtr   destructor
	audioSet   bool

	alpha    []byte
	alphaDtr destructor
}

// Init returns a new Frame tagged with serviceID for diagnostics and an empty
// property bag (§4.4 "init(service) -> Frame").
func Init(serviceID string) *Frame {
	f := &Frame{Props: props.New()}
	f.Props.SetString("mlt_service", serviceID)
	return f
}

// SetPosition sets both the current and, if unset, the original position.
func (f *Frame) SetPosition(p int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = p
	if !f.originalPositionSet {
		f.originalPosition = p
		f.originalPositionSet = true
	}
}

// Position returns the frame's current position.
func (f *Frame) Position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

// OriginalPosition returns the position the frame was first tagged with,
// preserved across retiming (e.g. playlist repeat iterations).
func (f *Frame) OriginalPosition() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.originalPosition
}

// PushGetImage pushes fn onto the image closure stack.
func (f *Frame) PushGetImage(fn GetImageFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageStack = append(f.imageStack, fn)
}

// PopGetImage pops and returns the topmost image closure, or nil if empty.
func (f *Frame) PopGetImage() GetImageFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.imageStack)
	if n == 0 {
		return nil
	}
	fn := f.imageStack[n-1]
	f.imageStack = f.imageStack[:n-1]
	return fn
}

// PushAudio pushes fn onto the audio closure stack.
func (f *Frame) PushAudio(fn GetAudioFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioStack = append(f.audioStack, fn)
}

// PopAudio pops and returns the topmost audio closure, or nil if empty.
func (f *Frame) PopAudio() GetAudioFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.audioStack)
	if n == 0 {
		return nil
	}
	fn := f.audioStack[n-1]
	f.audioStack = f.audioStack[:n-1]
	return fn
}

// GetImage resolves the frame's image: if a buffer is already set, returns it
// directly; otherwise pops and invokes closures off the image stack until one
// writes a buffer and succeeds (§4.4 "recursive unwinding... terminates when
// a producer-emplaced closure writes into *buf and returns success").
func (f *Frame) GetImage(writable bool) ([]byte, PixelFormat, int, int, error) {
	f.mu.Lock()
	if f.imageSet {
		buf, format, w, h := f.image, f.imageFmt, f.imageW, f.imageH
		f.mu.Unlock()
		return buf, format, w, h, nil
	}
	f.mu.Unlock()

	fn := f.PopGetImage()
	if fn == nil {
		return nil, PixNone, 0, 0, fmt.Errorf("get_image: closure stack exhausted with no buffer set")
	}
	buf, format, w, h, err := fn(f, writable)
	if err != nil {
		return nil, PixNone, 0, 0, err
	}
	f.SetImage(buf, format, w, h, nil)
	return buf, format, w, h, nil
}

// SetImage installs an owned image buffer, replacing any previous one (whose
// destructor, if any, is invoked first).
func (f *Frame) SetImage(buf []byte, format PixelFormat, w, h int, dtr destructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageSet && f.imageDtr != nil {
		f.imageDtr()
	}
	f.image, f.imageFmt, f.imageW, f.imageH, f.imageDtr = buf, format, w, h, dtr
	f.imageSet = true
}

// GetAudio is GetImage's audio analogue.
func (f *Frame) GetAudio() ([]byte, AudioFormat, int, int, int, error) {
	f.mu.Lock()
	if f.audioSet {
		buf, format, freq, ch, n := f.audio, f.audioFmt, f.audioFreq, f.audioChans, f.audioN
		f.mu.Unlock()
		return buf, format, freq, ch, n, nil
	}
	f.mu.Unlock()

	fn := f.PopAudio()
	if fn == nil {
		return nil, AudioNone, 0, 0, 0, fmt.Errorf("get_audio: closure stack exhausted with no buffer set")
	}
	buf, format, freq, ch, n, err := fn(f)
	if err != nil {
		return nil, AudioNone, 0, 0, 0, err
	}
	f.SetAudio(buf, format, freq, ch, n, nil)
	return buf, format, freq, ch, n, nil
}

// SetAudio installs an owned audio buffer.
func (f *Frame) SetAudio(buf []byte, format AudioFormat, freq, channels, samples int, dtr destructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.audioSet && f.audioDtr != nil {
		f.audioDtr()
	}
	f.audio, f.audioFmt, f.audioFreq, f.audioChans, f.audioN, f.audioDtr = buf, format, freq, channels, samples, dtr
	f.audioSet = true
}

// GetAlpha returns the frame's alpha-channel buffer, if set.
func (f *Frame) GetAlpha() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alpha
}

// SetAlpha installs an owned alpha buffer.
func (f *Frame) SetAlpha(buf []byte, dtr destructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alphaDtr != nil {
		f.alphaDtr()
	}
	f.alpha, f.alphaDtr = buf, dtr
}

// Clone returns a new Frame at the same position. deepImage/deepAudio
// duplicate the respective buffers so the clone may be closed independently
// of the original (§4.4); otherwise the clone shares the slice (Go slices
// make a shallow "clone" safe to read concurrently, unlike the teacher's
// refcounted C buffers, provided neither side mutates in place).
func (f *Frame) Clone(deepImage, deepAudio bool) *Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := &Frame{
		Props:               f.Props,
		position:            f.position,
		originalPosition:    f.originalPosition,
		originalPositionSet: f.originalPositionSet,
		imageFmt:         f.imageFmt,
		imageW:           f.imageW,
		imageH:           f.imageH,
		imageSet:         f.imageSet,
		audioFmt:         f.audioFmt,
		audioFreq:        f.audioFreq,
		audioChans:       f.audioChans,
		audioN:           f.audioN,
		audioSet:         f.audioSet,
	}
	if f.imageSet {
		if deepImage {
			clone.image = append([]byte(nil), f.image...)
		} else {
			clone.image = f.image
		}
	}
	if f.audioSet {
		if deepAudio {
			clone.audio = append([]byte(nil), f.audio...)
		} else {
			clone.audio = f.audio
		}
	}
	return clone
}

// Close releases owned buffers via their destructors.
func (f *Frame) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageDtr != nil {
		f.imageDtr()
		f.imageDtr = nil
	}
	if f.audioDtr != nil {
		f.audioDtr()
		f.audioDtr = nil
	}
	if f.alphaDtr != nil {
		f.alphaDtr()
		f.alphaDtr = nil
	}
}

// Blank returns a silence/black frame at position p, used as the get_frame
// fallback on producer failure (§4.5 "a get_frame failure returns a blank
// frame initialized with silence/black").
func Blank(serviceID string, p int) *Frame {
	f := Init(serviceID)
	f.SetPosition(p)
	f.Props.SetInt("test_image", 1)
	f.Props.SetInt("test_audio", 1)
	return f
}
