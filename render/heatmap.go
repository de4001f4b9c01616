// Package render draws recorded model output as images.
package render

import (
	"context"
	"image"
	"image/png"
	"math"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/echoflaresat/heatsource/colors"
	"github.com/echoflaresat/heatsource/model"
)

// Scale maps values in [Min, Max] onto [0, 1].
type Scale struct {
	Min, Max float64
}

// AutoScale spans the finite values of rows.
func AutoScale(rows [][]float64) Scale {
	s := Scale{Min: math.Inf(1), Max: math.Inf(-1)}
	finite := make([]float64, 0, 64)
	for _, row := range rows {
		finite = finite[:0]
		for _, v := range row {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			continue
		}
		s.Min = math.Min(s.Min, floats.Min(finite))
		s.Max = math.Max(s.Max, floats.Max(finite))
	}
	if math.IsInf(s.Min, 0) {
		return Scale{Min: 0, Max: 1}
	}
	return s
}

// Normalize returns (v - Min) / (Max - Min). A degenerate scale maps
// everything to 0.5.
func (s Scale) Normalize(v float64) float64 {
	if s.Max <= s.Min {
		return 0.5
	}
	return (v - s.Min) / (s.Max - s.Min)
}

// Options sizes the output. Zero Width or Height use one pixel per node or
// record.
type Options struct {
	Width, Height int
	Workers       int
}

// Heatmap draws res.Temperature with river km along x, upstream at the
// left, and time down y, first record at the top. Pixels between samples
// are bilinearly interpolated in value before colouring.
func Heatmap(res *model.Result, ramp colors.Ramp, scale Scale, opts Options) *image.NRGBA {
	return Values(res.Temperature, ramp, scale, opts)
}

// Values draws any [row][column] grid the way Heatmap does.
func Values(rows [][]float64, ramp colors.Ramp, scale Scale, opts Options) *image.NRGBA {
	nr := len(rows)
	nc := 0
	if nr > 0 {
		nc = len(rows[0])
	}
	W, H := opts.Width, opts.Height
	if W <= 0 {
		W = nc
	}
	if H <= 0 {
		H = nr
	}
	img := image.NewNRGBA(image.Rect(0, 0, W, H))
	if nr == 0 || nc == 0 {
		return img
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for y := 0; y < H; y++ {
		g.Go(func() error {
			fy := sampleCoord(y, H, nr)
			for x := 0; x < W; x++ {
				v := bilinear(rows, sampleCoord(x, W, nc), fy)
				img.SetNRGBA(x, y, ramp.At(scale.Normalize(v)).ToNRGBA())
			}
			return nil
		})
	}
	_ = g.Wait()
	return img
}

// sampleCoord maps pixel centre i of n pixels onto a data index in
// [0, m-1].
func sampleCoord(i, n, m int) float64 {
	if m == 1 || n == 1 {
		return 0
	}
	if n == m {
		return float64(i)
	}
	return (float64(i)+0.5)*float64(m)/float64(n) - 0.5
}

func bilinear(rows [][]float64, x, y float64) float64 {
	nr, nc := len(rows), len(rows[0])
	x = math.Max(0, math.Min(float64(nc-1), x))
	y = math.Max(0, math.Min(float64(nr-1), y))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, nc-1), min(y0+1, nr-1)
	fx, fy := x-float64(x0), y-float64(y0)

	top := rows[y0][x0]*(1-fx) + rows[y0][x1]*fx
	bottom := rows[y1][x0]*(1-fx) + rows[y1][x1]*fx
	return top*(1-fy) + bottom*fy
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := (&png.Encoder{CompressionLevel: png.BestSpeed}).Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
