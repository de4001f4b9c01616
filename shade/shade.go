// Package shade computes the heat fluxes reaching the water column of a
// stream node for one timestep: shortwave radiation after topographic and
// riparian shading, longwave exchange, evaporation, convection and bed
// conduction.
package shade

import (
	"fmt"

	"github.com/echoflaresat/heatsource/landcover"
	"github.com/echoflaresat/heatsource/solar"
)

// Canopy selects how zone density attenuates direct radiation.
type Canopy int

const (
	// CanopyCover treats density as the fraction of sky blocked.
	CanopyCover Canopy = iota
	// CanopyLAI treats density as leaf area index with Beer-Lambert extinction.
	CanopyLAI
)

func (c Canopy) String() string {
	if c == CanopyLAI {
		return "LAI"
	}
	return "CanopyCover"
}

// ParseCanopy accepts "CanopyCover" and "LAI".
func ParseCanopy(s string) (Canopy, error) {
	switch s {
	case "", "CanopyCover", "canopy_cover":
		return CanopyCover, nil
	case "LAI", "lai":
		return CanopyLAI, nil
	}
	return CanopyCover, fmt.Errorf("unknown canopy data %q", s)
}

// EvapMethod selects the evaporation formula.
type EvapMethod int

const (
	EvapMassTransfer EvapMethod = iota
	EvapPenman
)

func (m EvapMethod) String() string {
	if m == EvapPenman {
		return "Penman"
	}
	return "Mass Transfer"
}

// ParseEvapMethod accepts "Mass Transfer" and "Penman".
func ParseEvapMethod(s string) (EvapMethod, error) {
	switch s {
	case "", "Mass Transfer", "mass_transfer":
		return EvapMassTransfer, nil
	case "Penman", "penman":
		return EvapPenman, nil
	}
	return EvapMassTransfer, fmt.Errorf("unknown evaporation method %q", s)
}

// Params are the run wide coefficients of the flux engine.
type Params struct {
	Canopy        Canopy
	LAIExtinction float64
	Evap          EvapMethod
	// WindA and WindB are the mass transfer coefficients, m/(s·mbar) and
	// 1/mbar respectively.
	WindA, WindB float64
	// SedimentConductivity is in W/(m·K), SedimentDepth in metres.
	SedimentConductivity float64
	SedimentDepth        float64
}

// DefaultParams returns the coefficients of a stock run.
func DefaultParams() Params {
	return Params{
		Canopy:               CanopyCover,
		LAIExtinction:        0.5,
		Evap:                 EvapMassTransfer,
		WindA:                1.51e-9,
		WindB:                1.6e-9,
		SedimentConductivity: 1.57,
		SedimentDepth:        0.2,
	}
}

// Channel is the wetted geometry of a node.
type Channel struct {
	Width     float64
	Depth     float64
	Elevation float64
}

// Met is the meteorology at a node. RelHumidity and CloudCover are fractions.
type Met struct {
	AirTemp     float64
	RelHumidity float64
	WindSpeed   float64
	CloudCover  float64
}

// Input is everything the engine needs for one node and timestep.
type Input struct {
	Sun     solar.Position
	Channel Channel
	// Profile may be nil for an unshaded node.
	Profile      *landcover.Profile
	Met          Met
	WaterTemp    float64
	SedimentTemp float64
	DayOfYear    int
}

// Flux holds the heat budget terms in W/m². EvapRate is in m/s.
type Flux struct {
	SolarAbove   float64
	SolarSurface float64
	SolarWater   float64
	SolarBed     float64
	Longwave     float64
	Evaporation  float64
	Convection   float64
	Conduction   float64
	EvapRate     float64
	Net          float64
}

// Engine evaluates node fluxes. It holds no per node state and is safe for
// concurrent use.
type Engine struct {
	Params Params
}

// New returns an Engine with params.
func New(params Params) *Engine {
	return &Engine{Params: params}
}

// Evaluate computes the heat budget of one node.
func (e *Engine) Evaluate(in Input) Flux {
	var f Flux
	f.SolarAbove, f.SolarSurface, f.SolarWater, f.SolarBed = e.shortwave(in)

	ea := in.Met.RelHumidity * SaturationVaporPressure(in.Met.AirTemp)
	ew := SaturationVaporPressure(in.WaterTemp)
	pressure := Pressure(in.Channel.Elevation)

	skyView := 1.0
	if in.Profile != nil {
		skyView = in.Profile.SkyView()
	}
	f.Longwave = Longwave(in.Met.AirTemp, in.WaterTemp, ea, in.Met.CloudCover, skyView)

	f.EvapRate = e.evapRate(in, f.SolarSurface+f.Longwave, ea, ew, pressure)
	f.Evaporation = -WaterDensity * LatentHeat(in.WaterTemp) * f.EvapRate
	if d := ew - ea; d != 0 {
		bowen := 0.00061 * pressure * (in.WaterTemp - in.Met.AirTemp) / d
		f.Convection = f.Evaporation * bowen
	}
	f.Conduction = Conduction(e.Params.SedimentConductivity, e.Params.SedimentDepth, in.SedimentTemp, in.WaterTemp)

	f.Net = f.SolarWater + f.Longwave + f.Evaporation + f.Convection + f.Conduction
	return f
}

func (e *Engine) evapRate(in Input, netRadiation, ea, ew, pressure float64) float64 {
	wind := e.Params.WindA + e.Params.WindB*in.Met.WindSpeed
	if e.Params.Evap == EvapMassTransfer {
		return wind * (ew - ea)
	}

	lv := LatentHeat(in.WaterTemp)
	gamma := 1003.5 * pressure / (lv * 0.62198)
	ta := in.Met.AirTemp
	delta := SaturationVaporPressure(ta) - SaturationVaporPressure(ta-1)
	return netRadiation*delta/(WaterDensity*lv*(delta+gamma)) +
		wind*(ew-ea)*gamma/(delta+gamma)
}
