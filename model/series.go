package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrEmptySeries is returned for an input file without data rows.
	ErrEmptySeries = errors.New("series has no rows")
	// ErrUnsorted is returned when series times do not strictly increase.
	ErrUnsorted = errors.New("series times not increasing")
)

// Series is a multi column time series. Values is indexed [row][column].
type Series struct {
	Columns []string
	Times   []time.Time
	Values  [][]float64
}

// Validate checks that the series has rows of consistent width in time order.
func (s *Series) Validate() error {
	if len(s.Times) == 0 {
		return ErrEmptySeries
	}
	if len(s.Values) != len(s.Times) {
		return fmt.Errorf("series: %d value rows for %d times", len(s.Values), len(s.Times))
	}
	for i, row := range s.Values {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("series row %d: %d values for %d columns", i, len(row), len(s.Columns))
		}
		if i > 0 && !s.Times[i].After(s.Times[i-1]) {
			return fmt.Errorf("%w: row %d at %s", ErrUnsorted, i, s.Times[i].Format(time.RFC3339))
		}
	}
	return nil
}

// At interpolates every column linearly at t into dst. Times before the
// first row or after the last take the end values.
func (s *Series) At(t time.Time, dst []float64) []float64 {
	dst = append(dst[:0], make([]float64, len(s.Columns))...)
	n := len(s.Times)
	if n == 0 {
		return dst
	}
	i := sort.Search(n, func(i int) bool { return !s.Times[i].Before(t) })
	switch {
	case i == 0:
		copy(dst, s.Values[0])
	case i == n:
		copy(dst, s.Values[n-1])
	default:
		t0, t1 := s.Times[i-1], s.Times[i]
		w := float64(t.Sub(t0)) / float64(t1.Sub(t0))
		for c := range dst {
			v0, v1 := s.Values[i-1][c], s.Values[i][c]
			dst[c] = v0 + w*(v1-v0)
		}
	}
	return dst
}

// Column returns the index of name, or -1.
func (s *Series) Column(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
