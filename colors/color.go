// Package colors holds the linear RGBA colour type and the ramps used to
// map temperatures onto colours.
package colors

import (
	"image/color"
	"math"
)

// Color4 is a linear RGBA color with float64 components in [0,1].
type Color4 struct {
	R, G, B, A float64
}

func New(r, g, b, a float64) Color4 {
	return Color4{R: r, G: g, B: b, A: a}
}

// RGBA implements color.Color with premultiplied 16-bit components.
func (c Color4) RGBA() (r, g, b, a uint32) {
	c = c.Clamp01()
	return uint32(c.R * c.A * 65535),
		uint32(c.G * c.A * 65535),
		uint32(c.B * c.A * 65535),
		uint32(c.A * 65535)
}

func FromStandardColor(c color.Color) Color4 {
	if c4, ok := c.(Color4); ok {
		return c4
	}

	r16, g16, b16, a16 := c.RGBA()
	if a16 == 0 {
		return Color4{}
	}

	// de-premultiply
	invA := float64(0xFFFF) / float64(a16)
	return Color4{
		R: float64(r16) * invA / 65535.0,
		G: float64(g16) * invA / 65535.0,
		B: float64(b16) * invA / 65535.0,
		A: float64(a16) / 65535.0,
	}
}

func From8BitRgb(r, g, b, a byte) Color4 {
	return Color4{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
		A: float64(a) / 255.0,
	}
}

// Mix returns lerp(c, o, t) = c*(1-t) + o*t.
func (c Color4) Mix(o Color4, t float64) Color4 {
	return Color4{
		R: lerp(c.R, o.R, t),
		G: lerp(c.G, o.G, t),
		B: lerp(c.B, o.B, t),
		A: lerp(c.A, o.A, t),
	}
}

// MixLinear mixes two sRGB encoded colours in linear light.
func (c Color4) MixLinear(o Color4, t float64) Color4 {
	return Color4{
		R: linearToSrgb(lerp(srgbToLinear(c.R), srgbToLinear(o.R), t)),
		G: linearToSrgb(lerp(srgbToLinear(c.G), srgbToLinear(o.G), t)),
		B: linearToSrgb(lerp(srgbToLinear(c.B), srgbToLinear(o.B), t)),
		A: lerp(c.A, o.A, t),
	}
}

// MixHSV mixes two colours through HSV, taking the short way around the
// hue circle.
func (c Color4) MixHSV(o Color4, t float64) Color4 {
	h1, s1, v1 := rgbToHSV(c.R, c.G, c.B)
	h2, s2, v2 := rgbToHSV(o.R, o.G, o.B)
	// a grey end takes the hue of the other
	if s1 == 0 {
		h1 = h2
	}
	if s2 == 0 {
		h2 = h1
	}
	r, g, b := hsvToRGB(hueLerp(h1, h2, t), lerp(s1, s2, t), lerp(v1, v2, t))
	return Color4{R: r, G: g, B: b, A: lerp(c.A, o.A, t)}
}

// Clamp01 clamps each component into [0,1].
func (c Color4) Clamp01() Color4 {
	return Color4{
		R: clamp01(c.R),
		G: clamp01(c.G),
		B: clamp01(c.B),
		A: clamp01(c.A),
	}
}

// ToNRGBA truncates each clamped component to 8 bits.
func (c Color4) ToNRGBA() color.NRGBA {
	return color.NRGBA{
		R: to8bit(c.R),
		G: to8bit(c.G),
		B: to8bit(c.B),
		A: to8bit(c.A),
	}
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func to8bit(x float64) uint8 {
	return uint8(255.0 * clamp01(x))
}

func lerp(a, b, t float64) float64 { return a*(1-t) + b*t }

// hueLerp interpolates angles (degrees) the short way around the circle.
func hueLerp(h1, h2, t float64) float64 {
	h1 = math.Mod(h1+360.0, 360.0)
	h2 = math.Mod(h2+360.0, 360.0)
	d := h2 - h1
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return math.Mod(h1+t*d+360.0, 360.0)
}

func rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	v = max
	d := max - min

	if max <= 0 {
		return 0, 0, 0
	}
	if d <= 0 {
		return 0, 0, v
	}

	s = d / max

	var hh float64
	switch max {
	case r:
		hh = (g - b) / d
		if g < b {
			hh += 6
		}
	case g:
		hh = (b-r)/d + 2
	case b:
		hh = (r-g)/d + 4
	}
	h = (hh / 6.0) * 360.0
	return
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if s <= 0 {
		return v, v, v
	}
	h = math.Mod(h, 360.0)
	if h < 0 {
		h += 360.0
	}
	h /= 60.0
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

// IEC 61966-2-1 sRGB <-> linear
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSrgb(c float64) float64 {
	if c <= 0.0031308 {
		return 12.92 * c
	}
	return 1.055*math.Pow(c, 1.0/2.4) - 0.055
}
