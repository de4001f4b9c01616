// Package transect maps a solar azimuth onto the directional land-cover
// transects sampled around a stream node.
package transect

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// LegacyCount is the fixed number of directions used by the 8-direction
// scheme of the previous model generation.
const LegacyCount = 8

// ErrInvalidRadialCount is returned by New when the configured number of
// transects cannot partition the horizon.
var ErrInvalidRadialCount = errors.New("transect: radial count must be > 0")

// Mode selects the indexing strategy.
type Mode int

const (
	// ModeRadial divides 360° into N sectors centered on each transect.
	ModeRadial Mode = iota
	// ModeLegacy floors azimuth/45 without wraparound.
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeRadial:
		return "radial"
	case ModeLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Indexer returns the transect sector containing an azimuth in degrees.
// Implementations are pure and safe for concurrent use.
type Indexer interface {
	Index(azimuth float64) int
	Count() int
	Mode() Mode
}

// New builds the strategy for mode. count is ignored in legacy mode but must
// still be positive, since the land-cover layout is sized from it.
func New(mode Mode, count int) (Indexer, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRadialCount, count)
	}
	switch mode {
	case ModeLegacy:
		return Legacy{}, nil
	case ModeRadial:
		return NewRadial(count), nil
	default:
		return nil, fmt.Errorf("transect: unknown mode %v", mode)
	}
}

// Legacy is the 8-sector scheme: 45° sectors starting at azimuth 0.
type Legacy struct{}

// Index floors azimuth/45. Negative azimuths give negative indices.
func (Legacy) Index(azimuth float64) int {
	return int(math.Floor(azimuth / (360.0 / LegacyCount)))
}

func (Legacy) Count() int { return LegacyCount }
func (Legacy) Mode() Mode { return ModeLegacy }

// Radial is the general N-sector scheme. The zero value is not usable;
// construct with NewRadial.
type Radial struct {
	starts []float64
}

// NewRadial precomputes the sector boundaries k·w − w/2 for k = 1..n.
// n must be positive.
func NewRadial(n int) Radial {
	incr := 360.0 / float64(n)
	starts := make([]float64, n)
	for k := 1; k <= n; k++ {
		starts[k-1] = float64(k)*incr - incr/2
	}
	return Radial{starts: starts}
}

// Index returns the sector whose boundary interval holds azimuth, after
// adding 360 to azimuths below the first boundary.
func (r Radial) Index(azimuth float64) int {
	if azimuth < r.starts[0] {
		azimuth += 360
	}
	// right bisection: first boundary strictly greater than azimuth
	pos := sort.Search(len(r.starts), func(i int) bool { return r.starts[i] > azimuth })
	return pos - 1
}

func (r Radial) Count() int { return len(r.starts) }
func (Radial) Mode() Mode   { return ModeRadial }

// Boundaries returns a copy of the ascending sector start angles.
func (r Radial) Boundaries() []float64 {
	out := make([]float64, len(r.starts))
	copy(out, r.starts)
	return out
}

// Azimuth is the solar azimuth, degrees west of south, at the center of
// radial sector i out of n.
func Azimuth(i, n int) float64 {
	return float64(i+1) * 360.0 / float64(n)
}

// Bearing is the compass bearing (0 = north, clockwise) along which
// transect i out of n is sampled. It points toward a sun standing at
// Azimuth(i, n), so transect n-1 points south.
func Bearing(i, n int) float64 {
	return math.Mod(Azimuth(i, n)+180, 360)
}

// Wrap folds any index into [0, n) so that it can address per-transect rows.
func Wrap(i, n int) int {
	return ((i % n) + n) % n
}
