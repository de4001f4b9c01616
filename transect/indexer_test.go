package transect

import (
	"errors"
	"math"
	"testing"
)

func TestLegacyIndex(t *testing.T) {
	cases := []struct {
		azimuth float64
		want    int
	}{
		{0, 0},
		{44.9, 0},
		{45.0, 1},
		{180, 4},
		{359.9, 7},
		{-10, -1},
		{-135, -3},
	}
	for _, c := range cases {
		if got := (Legacy{}).Index(c.azimuth); got != c.want {
			t.Errorf("Legacy.Index(%v) = %d, want %d", c.azimuth, got, c.want)
		}
	}
}

func TestRadialIndexEightSectors(t *testing.T) {
	r := NewRadial(8)
	cases := []struct {
		azimuth float64
		want    int
	}{
		{22.5, 0},
		{45, 0},
		{67.49, 0},
		{67.5, 1},
		{180, 3},
		{337.5, 7},
		{355, 7},
		{-5, 7},
		{0, 7},
		{22.49, 7},
	}
	for _, c := range cases {
		if got := r.Index(c.azimuth); got != c.want {
			t.Errorf("Radial(8).Index(%v) = %d, want %d", c.azimuth, got, c.want)
		}
	}
}

func TestRadialIndexInRange(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 8, 12, 36} {
		r := NewRadial(n)
		for _, b := range r.Boundaries() {
			for _, az := range []float64{b, b - 1e-9, b + 1e-9} {
				if az < 0 || az >= 360 {
					continue
				}
				got := r.Index(az)
				if got < 0 || got >= n {
					t.Fatalf("n=%d: Index(%v) = %d out of range", n, az, got)
				}
			}
		}
		for az := 0.0; az < 360; az += 0.25 {
			got := r.Index(az)
			if got < 0 || got >= n {
				t.Fatalf("n=%d: Index(%v) = %d out of range", n, az, got)
			}
			if again := r.Index(az); again != got {
				t.Fatalf("n=%d: Index(%v) not stable: %d then %d", n, az, got, again)
			}
		}
	}
}

func TestRadialSectorContainsAzimuth(t *testing.T) {
	for _, n := range []int{4, 8, 16} {
		r := NewRadial(n)
		for i := 0; i < n; i++ {
			if got := r.Index(Azimuth(i, n)); got != i {
				t.Errorf("n=%d: Index(Azimuth(%d)) = %d", n, i, got)
			}
		}
	}
}

func TestBearingFacesTheSun(t *testing.T) {
	cases := []struct {
		name string
		i, n int
		want float64
	}{
		{"south sun samples south", 7, 8, 180},
		{"west sun samples west", 1, 8, 270},
		{"north sun samples north", 3, 8, 0},
		{"east sun samples east", 5, 8, 90},
		{"quarter sectors", 0, 4, 270},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Bearing(c.i, c.n); math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("Bearing(%d, %d) = %v, want %v", c.i, c.n, got, c.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	if _, err := New(ModeRadial, 0); !errors.Is(err, ErrInvalidRadialCount) {
		t.Fatalf("New(radial, 0) err = %v, want ErrInvalidRadialCount", err)
	}
	if _, err := New(ModeLegacy, -1); !errors.Is(err, ErrInvalidRadialCount) {
		t.Fatalf("New(legacy, -1) err = %v, want ErrInvalidRadialCount", err)
	}

	idx, err := New(ModeLegacy, 12)
	if err != nil {
		t.Fatalf("New(legacy): %v", err)
	}
	if idx.Mode() != ModeLegacy || idx.Count() != LegacyCount {
		t.Fatalf("legacy indexer = %v/%d", idx.Mode(), idx.Count())
	}

	idx, err = New(ModeRadial, 12)
	if err != nil {
		t.Fatalf("New(radial): %v", err)
	}
	if idx.Mode() != ModeRadial || idx.Count() != 12 {
		t.Fatalf("radial indexer = %v/%d", idx.Mode(), idx.Count())
	}
}

func TestWrap(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{0, 8, 0},
		{7, 8, 7},
		{8, 8, 0},
		{-1, 8, 7},
		{-3, 8, 5},
		{-9, 8, 7},
	}
	for _, c := range cases {
		if got := Wrap(c.i, c.n); got != c.want {
			t.Errorf("Wrap(%d, %d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}
