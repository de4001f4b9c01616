package landcover

import (
	"fmt"
	"math"

	"github.com/echoflaresat/heatsource/landcover/raster"
	"github.com/echoflaresat/heatsource/transect"
	"github.com/echoflaresat/heatsource/vectors"
)

// Grid georeferences a north-up raster. OriginX and OriginY are the
// projected coordinates of the upper left corner of pixel (0, 0).
type Grid struct {
	OriginX   float64 `yaml:"origin_x"`
	OriginY   float64 `yaml:"origin_y"`
	PixelSize float64 `yaml:"pixel_size"`
}

// Pixel returns the column and row containing a projected point.
func (g Grid) Pixel(p vectors.Vec3) (int, int) {
	col := math.Floor((p.X - g.OriginX) / g.PixelSize)
	row := math.Floor((g.OriginY - p.Y) / g.PixelSize)
	return int(col), int(row)
}

// Sampler reads land cover codes from a raster at point samples along each
// transect of a node.
type Sampler struct {
	Raster      raster.Raster
	Grid        Grid
	Transects   int
	SampleCount int
	Distance    float64
}

// Sample returns the codes around the node at projected position (x, y).
// Zone k of transect i lies k*Distance metres from the node along the
// transect bearing; the emergent sample is taken at the node itself.
func (s Sampler) Sample(x, y float64) (NodeData, error) {
	node := vectors.Vec3{X: x, Y: y}

	emergent, err := s.codeAt(node)
	if err != nil {
		return NodeData{}, fmt.Errorf("emergent sample: %w", err)
	}
	nd := NodeData{
		Emergent: &Sample{Code: int(emergent)},
		Samples:  make([][]Sample, s.Transects),
	}
	for i := range nd.Samples {
		dir := vectors.FromBearing(transect.Bearing(i, s.Transects))
		row := make([]Sample, s.SampleCount)
		for k := range row {
			p := node.Add(dir.Scale(float64(k+1) * s.Distance))
			code, err := s.codeAt(p)
			if err != nil {
				return NodeData{}, fmt.Errorf("transect %d zone %d: %w", i, k+1, err)
			}
			row[k] = Sample{Code: int(code)}
		}
		nd.Samples[i] = row
	}
	return nd, nil
}

func (s Sampler) codeAt(p vectors.Vec3) (uint8, error) {
	col, row := s.Grid.Pixel(p)
	return s.Raster.CodeAt(col, row)
}
