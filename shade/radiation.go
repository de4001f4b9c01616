package shade

import (
	"math"

	"github.com/echoflaresat/heatsource/landcover"
	"github.com/echoflaresat/heatsource/transect"
	"github.com/echoflaresat/heatsource/vectors"
)

const (
	SolarConstant     = 1367.0 // W/m²
	RefractiveIndex   = 1.333
	DiffuseReflection = 0.066
	BedReflection     = 0.1
	WaterDensity      = 1000.0 // kg/m³
	StefanBoltzmann   = 5.67e-8
	WaterEmissivity   = 0.96
	kelvin            = 273.16
)

// shortwave returns solar radiation above topography, entering the water
// surface, absorbed by the water column and absorbed by the bed.
func (e *Engine) shortwave(in Input) (above, surface, water, bed float64) {
	sun := vectors.SunDirection(90-in.Sun.Zenith, in.Sun.Azimuth)
	cosZ := sun.Dot(vectors.Up)
	if !in.Sun.Daytime || cosZ <= 0 {
		return 0, 0, 0, 0
	}

	i0 := SolarConstant * cosZ
	m := AirMass(in.Sun.Zenith) * Pressure(in.Channel.Elevation) / 1013.25
	tm := math.Pow(Transmissivity(in.DayOfYear), m)
	cloud := 1 - 0.65*in.Met.CloudCover*in.Met.CloudCover

	direct := i0 * tm * cloud
	diffuse := math.Max(0, 0.5*i0*(0.91-tm)) * cloud
	above = direct + diffuse

	if p := in.Profile; p != nil && len(p.Transects) > 0 {
		direct, diffuse = e.applyShade(p, in.Sun.Transect, in.Sun.Altitude, in.Channel.Width, direct, diffuse)
	}

	incidence := vectors.AngleBetween(sun, vectors.Up)
	surface = direct*(1-Fresnel(incidence)) + diffuse*(1-DiffuseReflection)

	trans := WaterTransmission(in.Channel.Depth, incidence)
	toBed := surface * trans
	bed = toBed * (1 - BedReflection)
	water = surface - bed
	return above, surface, water, bed
}

func (e *Engine) applyShade(p *landcover.Profile, idx int, altitude, width, direct, diffuse float64) (float64, float64) {
	tr := p.Transects[transect.Wrap(idx, len(p.Transects))]

	if altitude <= tr.Topo {
		direct = 0
	}
	diffuse *= p.TopoFactor

	for k, angle := range tr.Angles {
		if direct == 0 {
			break
		}
		if angle > altitude {
			direct *= e.canopyTransmission(tr.Zones[k].Density)
		}
	}
	diffuse *= p.ViewToSky

	if z := p.Emergent; z != nil && z.Height > 0 && width > 0 {
		angle := math.Atan(z.Height/(width/2)) * 180 / math.Pi
		blocked := 1 - e.canopyTransmission(z.Density)
		if altitude < angle {
			direct *= 1 - blocked
		}
		diffuse *= 1 - blocked*angle/90
	}
	return direct, diffuse
}

func (e *Engine) canopyTransmission(density float64) float64 {
	if e.Params.Canopy == CanopyLAI {
		return math.Exp(-e.Params.LAIExtinction * math.Max(0, density))
	}
	return 1 - math.Max(0, math.Min(1, density))
}

// AirMass is the Kasten-Young relative optical air mass for a zenith angle in
// degrees.
func AirMass(zenith float64) float64 {
	if zenith >= 90 {
		return math.Inf(1)
	}
	z := zenith * math.Pi / 180
	return 1 / (math.Cos(z) + 0.50572*math.Pow(96.07995-zenith, -1.6364))
}

// Transmissivity is the clear sky atmospheric transmissivity for a day of
// year.
func Transmissivity(dayOfYear int) float64 {
	return 0.0685*math.Cos(2*math.Pi*float64(dayOfYear+10)/365) + 0.8
}

// Fresnel returns the reflectance of a flat water surface for direct beam
// radiation at an incidence angle in degrees.
func Fresnel(incidence float64) float64 {
	if incidence >= 90 {
		return 1
	}
	i := incidence * math.Pi / 180
	if i < 1e-6 {
		r := (RefractiveIndex - 1) / (RefractiveIndex + 1)
		return r * r
	}
	t := math.Asin(math.Sin(i) / RefractiveIndex)
	s := math.Sin(i-t) / math.Sin(i+t)
	tp := math.Tan(i-t) / math.Tan(i+t)
	return 0.5 * (s*s + tp*tp)
}

// WaterTransmission is the fraction of surface shortwave reaching the bed
// through depth metres of water for a beam at incidence degrees.
func WaterTransmission(depth, incidence float64) float64 {
	if depth <= 0 {
		return 0
	}
	i := incidence * math.Pi / 180
	refracted := math.Asin(math.Sin(i) / RefractiveIndex)
	path := depth / math.Cos(refracted)
	return math.Max(0, math.Min(1, 0.415-0.194*math.Log10(100*path)))
}
