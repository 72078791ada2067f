// Package profile describes the video format a consumer renders to and a
// producer's frames are interpreted against: size, frame rate, pixel aspect,
// color space (§GLOSSARY "Profile").
package profile

import "fmt"

// Profile is a video format descriptor.
type Profile struct {
	Name          string
	Width         int
	Height        int
	FPSNum        int
	FPSDen        int
	SARNum        int // Sample (pixel) aspect ratio.
	SARDen        int
	Progressive   bool
	ColorSpace    string // e.g. "bt709", "bt601".
}

// FPS returns the frame rate as a float64.
func (p Profile) FPS() float64 {
	if p.FPSDen == 0 {
		return 0
	}
	return float64(p.FPSNum) / float64(p.FPSDen)
}

// DAR returns the display aspect ratio.
func (p Profile) DAR() float64 {
	if p.Height == 0 || p.SARDen == 0 {
		return 0
	}
	return float64(p.Width*p.SARNum) / float64(p.Height*p.SARDen)
}

func (p Profile) String() string {
	return fmt.Sprintf("%s %dx%d@%g", p.Name, p.Width, p.Height, p.FPS())
}

// Registry holds named built-in and user-defined profiles, mirroring melt's
// -query profiles / -profile NAME lookup (§6).
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry returns a Registry seeded with the built-in profiles.
func NewRegistry() *Registry {
	r := &Registry{profiles: map[string]Profile{}}
	for _, p := range builtins {
		r.Add(p)
	}
	return r
}

// Add registers or replaces a profile by name.
func (r *Registry) Add(p Profile) {
	r.profiles[p.Name] = p
}

// Get looks up a profile by name.
func (r *Registry) Get(name string) (Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Names returns every registered profile name, for -query profiles.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}

// builtins mirrors a representative slice of MLT's shipped profiles.
var builtins = []Profile{
	{Name: "atsc_720p_25", Width: 1280, Height: 720, FPSNum: 25, FPSDen: 1, SARNum: 1, SARDen: 1, Progressive: true, ColorSpace: "bt709"},
	{Name: "atsc_720p_50", Width: 1280, Height: 720, FPSNum: 50, FPSDen: 1, SARNum: 1, SARDen: 1, Progressive: true, ColorSpace: "bt709"},
	{Name: "atsc_1080p_25", Width: 1920, Height: 1080, FPSNum: 25, FPSDen: 1, SARNum: 1, SARDen: 1, Progressive: true, ColorSpace: "bt709"},
	{Name: "dv_pal", Width: 720, Height: 576, FPSNum: 25, FPSDen: 1, SARNum: 16, SARDen: 15, Progressive: false, ColorSpace: "bt601"},
	{Name: "dv_ntsc", Width: 720, Height: 480, FPSNum: 30000, FPSDen: 1001, SARNum: 8, SARDen: 9, Progressive: false, ColorSpace: "bt601"},
}

// Default is used when no -profile flag is given.
var Default = builtins[0]
