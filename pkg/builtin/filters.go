package builtin

import (
	"strconv"

	"mlt/pkg/frame"
	"mlt/pkg/service"
)

// NewBrightnessFilter returns melt's `brightness` filter. Pixel-level
// adjustment is out of scope here: a Frame's image payload is an opaque
// producer-owned buffer (§4.4), not a decoded plane this port can scale in
// place, so the effect is recorded as metadata instead, the same
// simplification pkg/builtin/color.go makes for its 1x1 image payload.
func NewBrightnessFilter(arg string) *service.Service {
	level := 100
	if arg != "" {
		if n, err := strconv.Atoi(arg); err == nil {
			level = n
		}
	}
	return service.NewFilter("brightness", func(_ *service.Service, f *frame.Frame) (*frame.Frame, error) {
		f.Props.SetInt("meta.filter.brightness", int64(level))
		return f, nil
	})
}

// NewLumaTransition returns melt's `luma` transition. Like the brightness
// filter above, it records the mix rather than blending real pixels, since
// neither frame carries a decoded image buffer in this port.
func NewLumaTransition(arg string) *service.Service {
	return service.NewTransition("luma", func(_ *service.Service, a, b *frame.Frame) (*frame.Frame, error) {
		other, _ := b.Props.GetString("mlt_service")
		a.Props.SetString("meta.transition.luma_with", other)
		if arg != "" {
			a.Props.SetString("meta.transition.luma_arg", arg)
		}
		return a, nil
	})
}
