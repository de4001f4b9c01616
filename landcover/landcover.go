// Package landcover turns land cover samples around a stream node into the
// shade geometry used by the flux engine: per transect zone shade angles,
// the maximum angle per transect and the view to sky.
package landcover

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownCode is returned when a sampled code is missing from the table.
	ErrUnknownCode = errors.New("unknown land cover code")
	// ErrShape is returned when node samples do not match the configured layout.
	ErrShape = errors.New("land cover samples do not match layout")
)

// DataInput selects how zone samples are interpreted.
type DataInput int

const (
	// DataCodes resolves each sample through the code table.
	DataCodes DataInput = iota
	// DataValues takes height, density and overhang from the sample itself.
	DataValues
)

func (d DataInput) String() string {
	if d == DataValues {
		return "values"
	}
	return "codes"
}

// ParseDataInput accepts the control file spellings "codes" and "values".
func ParseDataInput(s string) (DataInput, error) {
	switch s {
	case "", "codes", "Codes":
		return DataCodes, nil
	case "values", "Values":
		return DataValues, nil
	}
	return DataCodes, fmt.Errorf("unknown land cover data input %q", s)
}

// Code is one row of the land cover code table.
type Code struct {
	Code     int     `yaml:"code"`
	Name     string  `yaml:"name"`
	Height   float64 `yaml:"height"`
	Density  float64 `yaml:"density"`
	Overhang float64 `yaml:"overhang"`
}

// Codes is the land cover code table.
type Codes []Code

// Lookup returns the row for code.
func (c Codes) Lookup(code int) (Code, bool) {
	for _, row := range c {
		if row.Code == code {
			return row, true
		}
	}
	return Code{}, false
}

// Validate rejects duplicate codes and negative dimensions.
func (c Codes) Validate() error {
	seen := make(map[int]bool, len(c))
	for _, row := range c {
		if seen[row.Code] {
			return fmt.Errorf("duplicate land cover code %d", row.Code)
		}
		seen[row.Code] = true
		if row.Height < 0 || row.Overhang < 0 {
			return fmt.Errorf("land cover code %d: negative height or overhang", row.Code)
		}
	}
	return nil
}

// Sample is one raw land cover observation. Code is used in DataCodes mode,
// the remaining fields in DataValues mode. Elevation is the ground height
// above the water surface and applies in both modes.
type Sample struct {
	Code      int     `yaml:"code"`
	Height    float64 `yaml:"height"`
	Density   float64 `yaml:"density"`
	Overhang  float64 `yaml:"overhang"`
	Elevation float64 `yaml:"elevation"`
}

// Zone is a resolved land cover zone at Distance metres from the node.
type Zone struct {
	Height    float64
	Density   float64
	Overhang  float64
	Distance  float64
	Elevation float64
}

// ShadeAngle is the angle in degrees above the horizon subtended by the top of
// the zone as seen from the node.
func (z Zone) ShadeAngle() float64 {
	rise := z.Height + z.Elevation
	if rise <= 0 {
		return 0
	}
	run := z.Distance - z.Overhang
	if run <= 0 {
		return 90
	}
	return math.Atan(rise/run) * 180 / math.Pi
}

// Transect holds the zones along one sampling direction.
type Transect struct {
	Bearing float64
	// Topo is the topographic shade angle in degrees.
	Topo   float64
	Zones  []Zone
	Angles []float64
	// MaxAngle is the largest zone shade angle.
	MaxAngle float64
}

// Profile is the shade geometry of one node.
type Profile struct {
	Transects []Transect
	// Emergent is zone 0 at the node itself, nil when emergent vegetation is
	// not modelled.
	Emergent *Zone
	// ViewToSky is the unobstructed fraction of the sky above the land cover.
	ViewToSky float64
	// TopoFactor is the unobstructed fraction of the sky above topography.
	TopoFactor float64
}

// SkyView combines topographic and land cover obstruction.
func (p Profile) SkyView() float64 { return p.TopoFactor * p.ViewToSky }

// NodeData is the raw land cover and topography around one node. Samples is
// indexed [transect][zone], nearest zone first.
type NodeData struct {
	Topo     []float64
	Emergent *Sample
	Samples  [][]Sample
}

// Builder resolves NodeData into Profiles.
type Builder struct {
	Input          DataInput
	Codes          Codes
	Transects      int
	SampleCount    int
	SampleDistance float64
	Emergent       bool
	Bearing        func(i, n int) float64
}

// Build resolves one node.
func (b Builder) Build(nd NodeData) (Profile, error) {
	if b.Transects <= 0 {
		return Profile{}, fmt.Errorf("%w: no transects", ErrShape)
	}
	if len(nd.Samples) != b.Transects {
		return Profile{}, fmt.Errorf("%w: %d transects, want %d", ErrShape, len(nd.Samples), b.Transects)
	}
	if nd.Topo != nil && len(nd.Topo) != b.Transects {
		return Profile{}, fmt.Errorf("%w: %d topographic angles, want %d", ErrShape, len(nd.Topo), b.Transects)
	}

	p := Profile{Transects: make([]Transect, b.Transects)}
	var sumMax, sumTopo float64
	for i, row := range nd.Samples {
		if len(row) != b.SampleCount {
			return Profile{}, fmt.Errorf("%w: transect %d has %d zones, want %d", ErrShape, i, len(row), b.SampleCount)
		}
		tr := Transect{
			Zones:  make([]Zone, len(row)),
			Angles: make([]float64, len(row)),
		}
		if b.Bearing != nil {
			tr.Bearing = b.Bearing(i, b.Transects)
		}
		if nd.Topo != nil {
			tr.Topo = nd.Topo[i]
		}
		for k, s := range row {
			z, err := b.resolve(s, float64(k+1)*b.SampleDistance)
			if err != nil {
				return Profile{}, fmt.Errorf("transect %d zone %d: %w", i, k+1, err)
			}
			tr.Zones[k] = z
			tr.Angles[k] = z.ShadeAngle()
			tr.MaxAngle = math.Max(tr.MaxAngle, tr.Angles[k])
		}
		sumMax += tr.MaxAngle
		sumTopo += tr.Topo
		p.Transects[i] = tr
	}

	if b.Emergent && nd.Emergent != nil {
		z, err := b.resolve(*nd.Emergent, 0)
		if err != nil {
			return Profile{}, fmt.Errorf("emergent zone: %w", err)
		}
		p.Emergent = &z
	}

	n := float64(b.Transects)
	p.ViewToSky = clamp01(1 - sumMax/(90*n))
	p.TopoFactor = clamp01(1 - sumTopo/(90*n))
	return p, nil
}

func (b Builder) resolve(s Sample, distance float64) (Zone, error) {
	z := Zone{
		Height:    s.Height,
		Density:   s.Density,
		Overhang:  s.Overhang,
		Distance:  distance,
		Elevation: s.Elevation,
	}
	if b.Input == DataCodes {
		row, ok := b.Codes.Lookup(s.Code)
		if !ok {
			return Zone{}, fmt.Errorf("%w: %d", ErrUnknownCode, s.Code)
		}
		z.Height, z.Density, z.Overhang = row.Height, row.Density, row.Overhang
	}
	return z, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
