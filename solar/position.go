// Package solar computes the position of the sun as seen from a stream node
// using the low-precision NOAA series. Ephemeris and SunVector give an
// independent position from the meeus apparent coordinates and are kept as
// the reference the NOAA series is verified against.
package solar

import (
	"fmt"
	"math"

	"github.com/soniakeys/unit"

	"github.com/echoflaresat/heatsource/transect"
)

// Site is the geographic location of a model run.
type Site struct {
	Latitude       float64 // degrees, north positive
	Longitude      float64 // degrees
	UTCOffsetHours float64
}

// Validate reports latitude/longitude outside their physical range. Compute
// itself never validates; this is for the configuration layer.
func (s Site) Validate() error {
	if math.IsNaN(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("solar: latitude %v outside [-90, 90]", s.Latitude)
	}
	if math.IsNaN(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("solar: longitude %v outside [-180, 180]", s.Longitude)
	}
	return nil
}

// Geometry is the full result of Compute, including intermediates that
// downstream shading and tests rely on.
type Geometry struct {
	Altitude            float64 // degrees, refraction corrected
	UncorrectedAltitude float64 // degrees, 90 - Zenith
	Zenith              float64 // degrees, not refraction corrected
	Azimuth             float64 // degrees, raw atan2 range (-180, 180]
	Daytime             bool
	Declination         float64 // degrees
	EquationOfTime      float64 // minutes
	HourAngle           float64 // radians
}

// Position is the per-call contract handed to the shading engine.
type Position struct {
	Altitude float64
	Zenith   float64
	Daytime  bool
	Transect int
	Azimuth  float64
}

// DaytimeFlag returns 1 during the day and 0 at night.
func (p Position) DaytimeFlag() int {
	if p.Daytime {
		return 1
	}
	return 0
}

// Compute returns the solar geometry for a node at lat/lon (degrees), local
// standard time in minutes from midnight, UTC offset in hours and jdc in
// Julian centuries since J2000.
//
// The refraction correction is applied to Altitude only; Zenith stays the
// geometric value, so Altitude != 90-Zenith once corrected.
func Compute(lat, lon, minutes, offset, jdc float64) Geometry {
	obliquity := 23.439292 - jdc*0.000013
	eccentricity := 0.016708634 - jdc*(0.000042037+0.0000001267*jdc)
	meanLong := unit.PMod(280.46646+jdc*(36000.76983+0.0003032*jdc), 360)
	meanAnomaly := 357.52911 + jdc*(35999.05029-0.0001537*jdc)

	eqOfCenter := deg2rad(meanAnomaly).Sin() * (1.914602 - jdc*(0.004817+0.000014*jdc))
	apparentLong := meanLong + eqOfCenter - 0.00569 - 0.00478*deg2rad(125.04-1934.136*jdc).Sin()
	declination := unit.Angle(math.Asin(deg2rad(obliquity).Sin() * deg2rad(apparentLong).Sin())).Deg()

	y := deg2rad(obliquity / 2).Tan()
	eqOfTime := 4 * unit.Angle(y*y*deg2rad(meanLong).Mul(2).Sin()-2*eccentricity*deg2rad(meanAnomaly).Sin()).Deg()

	solarTime := unit.PMod(minutes+eqOfTime+offset*60-4*lon, 1440)
	hourAngle := deg2rad(unit.PMod(solarTime/4-180, 360))

	phi := deg2rad(lat)
	delta := deg2rad(declination)
	cosZenith := phi.Sin()*delta.Sin() + phi.Cos()*delta.Cos()*hourAngle.Cos()
	zenith := unit.Angle(math.Acos(clamp(cosZenith, -1, 1))).Deg()
	altitude := 90 - zenith

	azimuth := unit.Angle(math.Atan2(
		hourAngle.Sin(),
		hourAngle.Cos()*phi.Sin()-delta.Tan()*phi.Cos(),
	)).Deg()

	corrected := altitude + refraction(altitude)/60

	return Geometry{
		Altitude:            corrected,
		UncorrectedAltitude: altitude,
		Zenith:              zenith,
		Azimuth:             azimuth,
		Daytime:             daytime(corrected),
		Declination:         declination,
		EquationOfTime:      eqOfTime,
		HourAngle:           hourAngle.Rad(),
	}
}

// daytime reports whether the refraction corrected altitude is strictly
// above the horizon. An altitude of exactly zero is night.
func daytime(altitude float64) bool {
	return altitude > 0
}

// refraction returns the atmospheric refraction correction in arc minutes.
func refraction(altitude float64) float64 {
	if altitude > -0.575 {
		return 0.0167 / deg2rad(altitude+3.0/(altitude+12.0)).Tan()
	}
	return -20.774 / deg2rad(altitude).Tan()
}

// Calculator binds a site to a transect indexer and produces the per-call
// Position contract.
type Calculator struct {
	Site    Site
	Indexer transect.Indexer
}

// Position computes the sun position at minutes/jdc and the governing
// transect for the resulting azimuth.
func (c Calculator) Position(minutes, jdc float64) Position {
	g := Compute(c.Site.Latitude, c.Site.Longitude, minutes, c.Site.UTCOffsetHours, jdc)
	return g.Position(c.Indexer)
}

// Position converts the geometry into the shading contract using idx to
// select the transect.
func (g Geometry) Position(idx transect.Indexer) Position {
	return Position{
		Altitude: g.Altitude,
		Zenith:   g.Zenith,
		Daytime:  g.Daytime,
		Transect: idx.Index(g.Azimuth),
		Azimuth:  g.Azimuth,
	}
}

func deg2rad(d float64) unit.Angle {
	return unit.AngleFromDeg(d)
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
