package solar

import (
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
)

// JulianCentury returns Julian centuries since J2000.0 for the instant t.
func JulianCentury(t time.Time) float64 {
	return base.J2000Century(julian.TimeToJD(t.UTC()))
}

// LocalMinutes returns minutes since local standard midnight for t in a
// zone offsetHours east of UTC. Daylight saving is never applied.
func LocalMinutes(t time.Time, offsetHours float64) float64 {
	local := t.UTC().Add(time.Duration(offsetHours * float64(time.Hour)))
	return float64(local.Hour()*60+local.Minute()) +
		float64(local.Second())/60 +
		float64(local.Nanosecond())/6e10
}

// PositionAt is Position for a wall-clock instant.
func (c Calculator) PositionAt(t time.Time) Position {
	return c.Position(LocalMinutes(t, c.Site.UTCOffsetHours), JulianCentury(t))
}
