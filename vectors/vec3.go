// Package vectors holds a small 3D vector type in the local east/north/up
// frame of a stream node (X east, Y north, Z up; metres or unit vectors).
package vectors

import "math"

// Vec3 is a simple 3D vector with float64 components.
type Vec3 struct {
	X, Y, Z float64
}

// Up is the local vertical, the normal of a level water surface.
var Up = Vec3{X: 0, Y: 0, Z: 1}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product v · o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Norm returns the Euclidean length ||v||.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns the unit vector v / ||v||.
// If ||v|| == 0, it returns the zero vector (0,0,0).
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	inv := 1.0 / n
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}
}

// Horizontal drops the vertical component.
func (v Vec3) Horizontal() Vec3 {
	return Vec3{X: v.X, Y: v.Y}
}

// FromBearing returns the horizontal unit vector for a compass bearing in
// degrees (0 = north, clockwise).
func FromBearing(bearingDeg float64) Vec3 {
	s, c := math.Sincos(bearingDeg * math.Pi / 180.0)
	return Vec3{X: s, Y: c}
}

// Bearing is the inverse of FromBearing in [0, 360). The vertical
// component is ignored.
func (v Vec3) Bearing() float64 {
	b := math.Atan2(v.X, v.Y) * 180.0 / math.Pi
	if b < 0 {
		b += 360
	}
	return b
}

// SunDirection returns the unit vector toward the sun for an altitude in
// degrees and a solar azimuth measured westward from south, as produced by
// the solar package.
func SunDirection(altitudeDeg, azimuthDeg float64) Vec3 {
	alt := altitudeDeg * math.Pi / 180.0
	horiz := FromBearing(azimuthDeg + 180).Scale(math.Cos(alt))
	return Vec3{X: horiz.X, Y: horiz.Y, Z: math.Sin(alt)}
}

// AngleBetween returns the angle between a and b in degrees. The cosine is
// clamped so rounding never produces NaN.
func AngleBetween(a, b Vec3) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 0
	}
	c := a.Dot(b) / (na * nb)
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180.0 / math.Pi
}

func Distance(v1, v2 Vec3) float64 {
	return v1.Sub(v2).Norm()
}
