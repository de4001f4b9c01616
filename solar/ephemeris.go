package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	meeussolar "github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/echoflaresat/heatsource/vectors"
)

// Ephemeris returns the geometric sun altitude and azimuth in degrees at t
// for a site at lat and lon, east positive. It uses the meeus apparent
// coordinates and apparent sidereal time rather than the NOAA series, so it
// serves as an independent reference for Compute. Azimuth follows the same
// convention as Compute: measured from south, westward positive.
func Ephemeris(t time.Time, lat, lon float64) (altitude, azimuth float64) {
	jd := julian.TimeToJD(t.UTC())
	ra, dec := meeussolar.ApparentEquatorial(jd)
	gast := sidereal.Apparent(jd)

	h := unit.Angle(gast.Rad() + deg2rad(lon).Rad() - ra.Rad())
	phi := deg2rad(lat)

	sinAlt := phi.Sin()*dec.Sin() + phi.Cos()*dec.Cos()*h.Cos()
	altitude = unit.Angle(math.Asin(clamp(sinAlt, -1, 1))).Deg()
	azimuth = unit.Angle(math.Atan2(h.Sin(), h.Cos()*phi.Sin()-dec.Tan()*phi.Cos())).Deg()
	return altitude, azimuth
}

// SunVector is the local east/north/up unit vector toward the sun at t.
func SunVector(t time.Time, lat, lon float64) vectors.Vec3 {
	alt, az := Ephemeris(t, lat, lon)
	return vectors.SunDirection(alt, az)
}
