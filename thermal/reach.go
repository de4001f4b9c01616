// Package thermal advances the water and sediment temperatures of a reach
// over one timestep from the fluxes computed for each node.
package thermal

import (
	"errors"
	"fmt"
	"math"

	"github.com/echoflaresat/heatsource/shade"
)

const (
	WaterDensity         = 1000.0 // kg/m³
	WaterSpecificHeat    = 4182.0 // J/(kg·K)
	SedimentDensity      = 1600.0 // kg/m³
	SedimentSpecificHeat = 2219.0 // J/(kg·K)
)

var (
	// ErrCourant is returned when a node would advect further than one
	// segment in a timestep.
	ErrCourant = errors.New("courant condition violated")
	// ErrUnstable is returned when a temperature becomes non-finite.
	ErrUnstable = errors.New("temperature not finite")
)

// Node is one computational segment of the stream. Flow, Velocity, Depth,
// Width and DX are hydraulic inputs; the remaining fields are state.
type Node struct {
	ID       string
	KM       float64
	Flow     float64 // m³/s
	Velocity float64 // m/s
	Depth    float64 // m
	Width    float64 // m
	DX       float64 // m

	Temperature         float64
	SedimentTemperature float64
	// Discharge is Flow less upstream evaporation losses from the last step.
	Discharge float64
}

// Inflow is a tributary or accretion entering node Node.
type Inflow struct {
	Node        int
	Flow        float64
	Temperature float64
}

// Reach is a chain of nodes ordered upstream to downstream.
type Reach struct {
	Nodes []Node
	// SedimentDepth is the thickness of the conducting bed layer in metres.
	SedimentDepth float64
	// CalcEvap removes evaporated volume from the discharge.
	CalcEvap bool
	// Alluvium, when set, pins sediment temperature to a constant.
	Alluvium *float64

	prev []float64
}

// NewReach copies nodes and sets initial water and sediment temperatures.
func NewReach(nodes []Node, initial float64) *Reach {
	r := &Reach{Nodes: make([]Node, len(nodes)), prev: make([]float64, len(nodes))}
	copy(r.Nodes, nodes)
	for i := range r.Nodes {
		r.Nodes[i].Temperature = initial
		r.Nodes[i].SedimentTemperature = initial
		r.Nodes[i].Discharge = r.Nodes[i].Flow
	}
	return r
}

// Courant returns u·dt/dx.
func Courant(velocity, dt, dx float64) float64 {
	if dx <= 0 {
		return math.Inf(1)
	}
	return velocity * dt / dx
}

// MaxTimestep is the largest dt in seconds that satisfies the Courant
// condition at every node.
func (r *Reach) MaxTimestep() float64 {
	limit := math.Inf(1)
	for _, n := range r.Nodes {
		if n.Velocity > 0 {
			limit = math.Min(limit, n.DX/n.Velocity)
		}
	}
	return limit
}

// CheckCourant returns ErrCourant naming the first node that violates the
// condition for dt seconds.
func (r *Reach) CheckCourant(dt float64) error {
	for _, n := range r.Nodes {
		if c := Courant(n.Velocity, dt, n.DX); c > 1 {
			return fmt.Errorf("%w: node %s (km %.3f) courant %.3f", ErrCourant, n.ID, n.KM, c)
		}
	}
	return nil
}

// Step advances the reach by dt seconds. boundary is the temperature
// entering the most upstream node. fluxes are indexed like Nodes.
func (r *Reach) Step(dt, boundary float64, fluxes []shade.Flux, inflows []Inflow) error {
	if len(fluxes) != len(r.Nodes) {
		return fmt.Errorf("thermal step: %d fluxes for %d nodes", len(fluxes), len(r.Nodes))
	}
	if err := r.CheckCourant(dt); err != nil {
		return err
	}
	if len(r.prev) != len(r.Nodes) {
		r.prev = make([]float64, len(r.Nodes))
	}
	for i := range r.Nodes {
		r.prev[i] = r.Nodes[i].Temperature
	}

	var lost float64
	for i := range r.Nodes {
		n := &r.Nodes[i]
		f := fluxes[i]

		upstream := boundary
		if i > 0 {
			upstream = r.prev[i-1]
		}
		c := Courant(n.Velocity, dt, n.DX)
		t := r.prev[i] - c*(r.prev[i]-upstream)

		if r.CalcEvap {
			lost += f.EvapRate * n.Width * n.DX
		}
		n.Discharge = math.Max(0, n.Flow-lost)
		t = mix(n.Discharge, t, inflows, i)

		if n.Depth > 0 {
			t += f.Net * dt / (WaterDensity * WaterSpecificHeat * n.Depth)
		}
		n.Temperature = t

		if r.Alluvium != nil {
			n.SedimentTemperature = *r.Alluvium
		} else if r.SedimentDepth > 0 {
			n.SedimentTemperature += (f.SolarBed - f.Conduction) * dt /
				(SedimentDensity * SedimentSpecificHeat * r.SedimentDepth)
		}

		if math.IsNaN(n.Temperature) || math.IsInf(n.Temperature, 0) ||
			math.IsNaN(n.SedimentTemperature) || math.IsInf(n.SedimentTemperature, 0) {
			return fmt.Errorf("%w: node %s (km %.3f)", ErrUnstable, n.ID, n.KM)
		}
	}
	return nil
}

// mix blends tributaries entering node i into water at temperature t carried
// by discharge q, weighted by flow.
func mix(q, t float64, inflows []Inflow, i int) float64 {
	heat, flow := q*t, q
	mixed := false
	for _, in := range inflows {
		if in.Node != i || in.Flow <= 0 {
			continue
		}
		heat += in.Flow * in.Temperature
		flow += in.Flow
		mixed = true
	}
	if !mixed {
		return t
	}
	return heat / flow
}

// Temperatures returns the current water temperature of every node.
func (r *Reach) Temperatures(dst []float64) []float64 {
	dst = dst[:0]
	for _, n := range r.Nodes {
		dst = append(dst, n.Temperature)
	}
	return dst
}
