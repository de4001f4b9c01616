package solar

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/echoflaresat/heatsource/transect"
)

// Batch evaluates the sun position for many nodes at one instant. Inputs and
// outputs are parallel slices indexed by node so a timestep can be computed
// without per-node allocation.
type Batch struct {
	Lat    []float64
	Lon    []float64
	Offset float64

	Altitude []float64
	Zenith   []float64
	Azimuth  []float64
	Daytime  []bool
	Transect []int

	indexer transect.Indexer
}

// NewBatch allocates output arrays for the given node coordinates. lat and
// lon are retained, not copied.
func NewBatch(lat, lon []float64, offset float64, idx transect.Indexer) *Batch {
	n := len(lat)
	if len(lon) < n {
		n = len(lon)
	}
	return &Batch{
		Lat:      lat[:n],
		Lon:      lon[:n],
		Offset:   offset,
		Altitude: make([]float64, n),
		Zenith:   make([]float64, n),
		Azimuth:  make([]float64, n),
		Daytime:  make([]bool, n),
		Transect: make([]int, n),
		indexer:  idx,
	}
}

// Len returns the number of nodes in the batch.
func (b *Batch) Len() int { return len(b.Lat) }

// Compute fills the output arrays for local time minutes and jdc.
func (b *Batch) Compute(minutes, jdc float64) {
	b.computeRange(0, b.Len(), minutes, jdc)
}

// ComputeParallel splits the batch into contiguous chunks evaluated on up to
// workers goroutines. Chunks write disjoint slice ranges.
func (b *Batch) ComputeParallel(ctx context.Context, workers int, minutes, jdc float64) error {
	n := b.Len()
	if workers <= 1 || n < 2*workers {
		b.Compute(minutes, jdc)
		return nil
	}
	chunk := (n + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.computeRange(lo, hi, minutes, jdc)
			return nil
		})
	}
	return g.Wait()
}

// At returns the Position of node i from the last Compute.
func (b *Batch) At(i int) Position {
	return Position{
		Altitude: b.Altitude[i],
		Zenith:   b.Zenith[i],
		Daytime:  b.Daytime[i],
		Transect: b.Transect[i],
		Azimuth:  b.Azimuth[i],
	}
}

func (b *Batch) computeRange(lo, hi int, minutes, jdc float64) {
	for i := lo; i < hi; i++ {
		g := Compute(b.Lat[i], b.Lon[i], minutes, b.Offset, jdc)
		b.Altitude[i] = g.Altitude
		b.Zenith[i] = g.Zenith
		b.Azimuth[i] = g.Azimuth
		b.Daytime[i] = g.Daytime
		b.Transect[i] = b.indexer.Index(g.Azimuth)
	}
}
