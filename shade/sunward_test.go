package shade

import (
	"math"
	"testing"
	"time"

	"github.com/echoflaresat/heatsource/landcover"
	"github.com/echoflaresat/heatsource/solar"
	"github.com/echoflaresat/heatsource/transect"
	"github.com/echoflaresat/heatsource/vectors"
)

// wallProfile has a single 40 m opaque zone 5 m out on transect wall and
// open ground everywhere else.
func wallProfile(t *testing.T, n, wall int) *landcover.Profile {
	t.Helper()
	b := landcover.Builder{
		Input:          landcover.DataValues,
		Transects:      n,
		SampleCount:    1,
		SampleDistance: 5,
		Bearing:        transect.Bearing,
	}
	samples := make([][]landcover.Sample, n)
	for i := range samples {
		samples[i] = make([]landcover.Sample, 1)
	}
	samples[wall][0] = landcover.Sample{Height: 40, Density: 1}
	p, err := b.Build(landcover.NodeData{Samples: samples})
	if err != nil {
		t.Fatal(err)
	}
	return &p
}

// nearestTransect is the transect whose sampling bearing is closest to a
// compass bearing.
func nearestTransect(bearing float64, n int) int {
	best, dist := 0, math.Inf(1)
	for i := 0; i < n; i++ {
		d := math.Abs(math.Mod(transect.Bearing(i, n)-bearing+540, 360) - 180)
		if d < dist {
			best, dist = i, d
		}
	}
	return best
}

func TestCanopyTowardTheSunShadesDirectBeam(t *testing.T) {
	const n = 8
	calc := solar.Calculator{
		Site:    solar.Site{Latitude: 45, Longitude: -123, UTCOffsetHours: -8},
		Indexer: transect.NewRadial(n),
	}
	cases := []struct {
		name string
		hour int
	}{
		{"morning", 9},
		{"noon", 12},
		{"afternoon", 15},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sun := calc.PositionAt(time.Date(2013, time.June, 21, c.hour+8, 0, 0, 0, time.UTC))
			if !sun.Daytime {
				t.Fatalf("sun below the horizon: %+v", sun)
			}
			bearing := vectors.SunDirection(sun.Altitude, sun.Azimuth).Horizontal().Bearing()
			toward := nearestTransect(bearing, n)
			if sun.Transect != toward {
				t.Fatalf("sun at bearing %.1f selects transect %d (bearing %.1f), want %d (bearing %.1f)",
					bearing, sun.Transect, transect.Bearing(sun.Transect, n), toward, transect.Bearing(toward, n))
			}
			away := (toward + n/2) % n

			in := noonInput()
			in.Sun = sun
			in.Profile = wallProfile(t, n, toward)
			shaded := New(DefaultParams()).Evaluate(in)
			in.Profile = wallProfile(t, n, away)
			lit := New(DefaultParams()).Evaluate(in)

			// both profiles share the same view to sky, so only the direct beam differs
			if shaded.SolarSurface >= 0.7*lit.SolarSurface {
				t.Fatalf("wall toward the sun: %.1f W/m2, wall away: %.1f W/m2", shaded.SolarSurface, lit.SolarSurface)
			}
			if lit.SolarSurface <= 0 {
				t.Fatalf("no shortwave with the wall behind the stream: %+v", lit)
			}
		})
	}
}
