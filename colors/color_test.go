package colors

import (
	"image/color"
	"math"
	"testing"
)

func near(a, b Color4, tol float64) bool {
	return math.Abs(a.R-b.R) <= tol && math.Abs(a.G-b.G) <= tol &&
		math.Abs(a.B-b.B) <= tol && math.Abs(a.A-b.A) <= tol
}

func TestRoundTripStandardColor(t *testing.T) {
	in := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	c := FromStandardColor(in)
	if got := c.ToNRGBA(); got.R < 199 || got.G < 99 || got.B < 49 || got.A != 255 {
		t.Fatalf("round trip = %+v", got)
	}
	if FromStandardColor(color.NRGBA{}) != (Color4{}) {
		t.Fatal("transparent input not zero")
	}
}

func TestToNRGBAClamps(t *testing.T) {
	got := New(1.5, -0.2, math.NaN(), 1).ToNRGBA()
	if got != (color.NRGBA{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("ToNRGBA = %+v", got)
	}
}

func TestRampStops(t *testing.T) {
	r := Grey()
	cases := []struct {
		name string
		t    float64
		want Color4
	}{
		{"below", -1, New(0, 0, 0, 1)},
		{"start", 0, New(0, 0, 0, 1)},
		{"middle", 0.5, New(0.5, 0.5, 0.5, 1)},
		{"end", 1, New(1, 1, 1, 1)},
		{"above", 3, New(1, 1, 1, 1)},
		{"nan", math.NaN(), Color4{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := r.At(c.t); !near(got, c.want, 1e-12) {
				t.Fatalf("At(%v) = %+v, want %+v", c.t, got, c.want)
			}
		})
	}
}

func TestRampInterpolation(t *testing.T) {
	black, white := New(0, 0, 0, 1), New(1, 1, 1, 1)
	linear := NewRamp(InterpLinear, Stop{1, white}, Stop{0, black})
	if linear.Stops[0].At != 0 {
		t.Fatal("stops not sorted")
	}
	// half the light is brighter than half the sRGB code value
	if mid := linear.At(0.5); mid.R < 0.73 || mid.R > 0.74 {
		t.Fatalf("linear light midpoint = %v", mid.R)
	}

	hsv := Spectrum().At(0.5)
	h, s, v := rgbToHSV(hsv.R, hsv.G, hsv.B)
	if math.Abs(h-300) > 1e-9 || s != 1 || v != 1 {
		t.Fatalf("hue midpoint h=%v s=%v v=%v", h, s, v)
	}
}

func TestThermalRunsColdToHot(t *testing.T) {
	r := Thermal()
	cold, hot := r.At(0), r.At(1)
	if cold.B <= cold.R || hot.R <= hot.B {
		t.Fatalf("cold %+v hot %+v", cold, hot)
	}
	for _, name := range []string{"", "Thermal", "spectrum", "gray"} {
		if _, err := ByName(name); err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("viridis"); err == nil {
		t.Fatal("unknown ramp accepted")
	}
}
