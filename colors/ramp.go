package colors

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Interpolation selects how a Ramp blends adjacent stops.
type Interpolation int

const (
	InterpRGB Interpolation = iota
	InterpLinear
	InterpHSV
)

// Stop places a colour at position At in [0,1].
type Stop struct {
	At    float64
	Color Color4
}

// Ramp maps a normalised value onto a colour.
type Ramp struct {
	Stops  []Stop
	Interp Interpolation
}

// NewRamp sorts stops by position.
func NewRamp(interp Interpolation, stops ...Stop) Ramp {
	s := append([]Stop(nil), stops...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].At < s[j].At })
	return Ramp{Stops: s, Interp: interp}
}

// Thermal runs from cold blue through green and yellow to hot red.
func Thermal() Ramp {
	return NewRamp(InterpLinear,
		Stop{0, From8BitRgb(49, 54, 149, 255)},
		Stop{0.25, From8BitRgb(116, 173, 209, 255)},
		Stop{0.5, From8BitRgb(171, 221, 164, 255)},
		Stop{0.75, From8BitRgb(253, 174, 97, 255)},
		Stop{1, From8BitRgb(165, 0, 38, 255)},
	)
}

// Spectrum sweeps the hue circle from blue to red.
func Spectrum() Ramp {
	return NewRamp(InterpHSV,
		Stop{0, New(0, 0, 1, 1)},
		Stop{1, New(1, 0, 0, 1)},
	)
}

// Grey runs from black to white.
func Grey() Ramp {
	return NewRamp(InterpRGB,
		Stop{0, New(0, 0, 0, 1)},
		Stop{1, New(1, 1, 1, 1)},
	)
}

// ByName returns thermal, spectrum or grey.
func ByName(name string) (Ramp, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "thermal":
		return Thermal(), nil
	case "spectrum":
		return Spectrum(), nil
	case "grey", "gray":
		return Grey(), nil
	default:
		return Ramp{}, fmt.Errorf("unknown colour ramp %q", name)
	}
}

// At returns the colour at t, clamped to the end stops. NaN is transparent.
func (r Ramp) At(t float64) Color4 {
	n := len(r.Stops)
	if n == 0 || math.IsNaN(t) {
		return Color4{}
	}
	if t <= r.Stops[0].At {
		return r.Stops[0].Color
	}
	if t >= r.Stops[n-1].At {
		return r.Stops[n-1].Color
	}
	i := sort.Search(n, func(i int) bool { return r.Stops[i].At >= t })
	lo, hi := r.Stops[i-1], r.Stops[i]
	w := (t - lo.At) / (hi.At - lo.At)
	switch r.Interp {
	case InterpLinear:
		return lo.Color.MixLinear(hi.Color, w)
	case InterpHSV:
		return lo.Color.MixHSV(hi.Color, w)
	default:
		return lo.Color.Mix(hi.Color, w)
	}
}
