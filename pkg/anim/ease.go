package anim

import "math"

// Interp is a keyframe interpolation type: one of the five base codes, or one
// of the 30 ease codes from §GLOSSARY.
type Interp string

// Base interpolation codes.
const (
	Discrete      Interp = "|"
	Linear        Interp = ""
	SmoothLoose   Interp = "~"
	SmoothNatural Interp = "$"
	SmoothTight   Interp = "-"
)

// easeCodes is the ordered 30-character alphabet from §GLOSSARY: 10 families
// (sinusoid, quadratic, cubic, quartic, quintic, exponential, circular, back,
// elastic, bounce) x 3 modes (easeIn, easeOut, easeInOut), assigned
// sequentially a..z then A..D.
const easeCodes = "abcdefghijklmnopqrstuvwxyzABCD"

var easeFamilies = []func(float64) float64{
	easeSinusoid,
	easeQuadratic,
	easeCubic,
	easeQuartic,
	easeQuintic,
	easeExponential,
	easeCircular,
	easeBack,
	easeElastic,
	easeBounce,
}

// IsEase reports whether code is one of the 30 ease codes.
func IsEase(code Interp) bool {
	if len(code) != 1 {
		return false
	}
	return indexInEaseCodes(string(code)) >= 0
}

// IsValidInterp reports whether code is a recognized keyframe type code.
func IsValidInterp(code Interp) bool {
	switch code {
	case Discrete, Linear, SmoothLoose, SmoothNatural, SmoothTight:
		return true
	}
	return IsEase(code)
}

func indexInEaseCodes(code string) int {
	for i := 0; i < len(easeCodes); i++ {
		if easeCodes[i:i+1] == code {
			return i
		}
	}
	return -1
}

// easeUnit evaluates the unit-interval easing function e(t) for an ease code,
// applying the easeIn/easeOut/easeInOut transform per §4.2.
func easeUnit(code Interp, t float64) float64 {
	idx := indexInEaseCodes(string(code))
	if idx < 0 {
		return t
	}
	family := easeFamilies[idx/3]
	mode := idx % 3 // 0=In 1=Out 2=InOut
	switch mode {
	case 0: // easeIn
		return family(t)
	case 1: // easeOut
		return 1 - family(1-t)
	default: // easeInOut
		if t < 0.5 {
			return family(2*t) / 2
		}
		return 1 - family(2*(1-t))/2
	}
}

func easeSinusoid(t float64) float64 {
	return 1 - math.Cos(t*math.Pi/2)
}

func easePoly(t float64, n float64) float64 {
	return math.Pow(t, n)
}

func easeQuadratic(t float64) float64 { return easePoly(t, 2) }
func easeCubic(t float64) float64     { return easePoly(t, 3) }
func easeQuartic(t float64) float64   { return easePoly(t, 4) }
func easeQuintic(t float64) float64   { return easePoly(t, 5) }

func easeExponential(t float64) float64 {
	if t == 0 {
		return 0
	}
	return math.Pow(2, 10*(t-1))
}

func easeCircular(t float64) float64 {
	return 1 - math.Sqrt(1-t*t)
}

const backOvershoot = 1.70158

func easeBack(t float64) float64 {
	return t * t * ((backOvershoot+1)*t - backOvershoot)
}

func easeElastic(t float64) float64 {
	if t == 0 || t == 1 {
		return t
	}
	const period = 0.3
	s := period / 4
	return -math.Pow(2, 10*(t-1)) * math.Sin((t-1-s)*(2*math.Pi)/period)
}

func easeBounce(t float64) float64 {
	// Piecewise parabola, evaluated as easeOut-of-bounce then inverted to
	// give the easeIn form expected by easeUnit's mode==0 case.
	return 1 - bounceOut(1-t)
}

func bounceOut(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}
