package landcover

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/echoflaresat/heatsource/landcover/raster"
	"github.com/echoflaresat/heatsource/transect"
)

func TestZoneShadeAngle(t *testing.T) {
	cases := []struct {
		name string
		z    Zone
		want float64
	}{
		{"45 degrees", Zone{Height: 10, Distance: 10}, 45},
		{"overhang shortens run", Zone{Height: 10, Distance: 12, Overhang: 2}, 45},
		{"elevation adds rise", Zone{Height: 5, Elevation: 5, Distance: 10}, 45},
		{"bare ground", Zone{Distance: 10}, 0},
		{"overhang past node", Zone{Height: 3, Distance: 2, Overhang: 4}, 90},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.z.ShadeAngle(); math.Abs(got-c.want) > 1e-9 {
				t.Fatalf("ShadeAngle() = %v, want %v", got, c.want)
			}
		})
	}
}

func testCodes() Codes {
	return Codes{
		{Code: 100, Name: "water"},
		{Code: 200, Name: "conifer", Height: 30, Density: 0.8, Overhang: 2},
		{Code: 300, Name: "shrub", Height: 4, Density: 0.5},
	}
}

func uniform(transects, zones int, s Sample) [][]Sample {
	out := make([][]Sample, transects)
	for i := range out {
		out[i] = make([]Sample, zones)
		for k := range out[i] {
			out[i][k] = s
		}
	}
	return out
}

func TestBuildCodes(t *testing.T) {
	b := Builder{
		Input:          DataCodes,
		Codes:          testCodes(),
		Transects:      8,
		SampleCount:    3,
		SampleDistance: 8,
		Emergent:       true,
		Bearing:        transect.Bearing,
	}
	nd := NodeData{
		Emergent: &Sample{Code: 300},
		Samples:  uniform(8, 3, Sample{Code: 100}),
	}
	nd.Samples[2][0] = Sample{Code: 200}

	p, err := b.Build(nd)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Transects) != 8 {
		t.Fatalf("%d transects", len(p.Transects))
	}
	if p.Transects[2].Bearing != 315 {
		t.Fatalf("bearing = %v, want 315", p.Transects[2].Bearing)
	}

	// conifer 30 m tall, 8 m out with 2 m overhang
	want := math.Atan(30.0/6.0) * 180 / math.Pi
	if got := p.Transects[2].MaxAngle; math.Abs(got-want) > 1e-9 {
		t.Fatalf("MaxAngle = %v, want %v", got, want)
	}
	if p.Transects[0].MaxAngle != 0 {
		t.Fatalf("open transect has angle %v", p.Transects[0].MaxAngle)
	}
	if got, wantVTS := p.ViewToSky, 1-want/(90*8); math.Abs(got-wantVTS) > 1e-12 {
		t.Fatalf("ViewToSky = %v, want %v", got, wantVTS)
	}
	if p.TopoFactor != 1 {
		t.Fatalf("TopoFactor = %v without topography", p.TopoFactor)
	}
	if p.Emergent == nil || p.Emergent.Height != 4 || p.Emergent.Distance != 0 {
		t.Fatalf("emergent zone = %+v", p.Emergent)
	}
}

func TestBuildValuesAndTopo(t *testing.T) {
	b := Builder{Input: DataValues, Transects: 4, SampleCount: 2, SampleDistance: 5}
	nd := NodeData{
		Topo:    []float64{10, 20, 30, 40},
		Samples: uniform(4, 2, Sample{Code: 999, Height: 5, Density: 0.3}),
	}
	p, err := b.Build(nd)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Transects[1].MaxAngle; math.Abs(got-45) > 1e-9 {
		t.Fatalf("MaxAngle = %v, want 45", got)
	}
	if got := p.TopoFactor; math.Abs(got-(1-100.0/360)) > 1e-12 {
		t.Fatalf("TopoFactor = %v", got)
	}
	if got := p.SkyView(); math.Abs(got-p.TopoFactor*0.5) > 1e-12 {
		t.Fatalf("SkyView = %v", got)
	}
	if p.Emergent != nil {
		t.Fatal("emergent zone built while disabled")
	}
}

func TestBuildErrors(t *testing.T) {
	b := Builder{Input: DataCodes, Codes: testCodes(), Transects: 2, SampleCount: 1, SampleDistance: 5}
	cases := []struct {
		name string
		nd   NodeData
		want error
	}{
		{"unknown code", NodeData{Samples: uniform(2, 1, Sample{Code: 7})}, ErrUnknownCode},
		{"transect count", NodeData{Samples: uniform(3, 1, Sample{Code: 100})}, ErrShape},
		{"zone count", NodeData{Samples: uniform(2, 2, Sample{Code: 100})}, ErrShape},
		{"topo count", NodeData{Topo: []float64{1}, Samples: uniform(2, 1, Sample{Code: 100})}, ErrShape},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := b.Build(c.nd); !errors.Is(err, c.want) {
				t.Fatalf("Build error = %v, want %v", err, c.want)
			}
		})
	}
	if _, err := (Builder{}).Build(NodeData{}); !errors.Is(err, ErrShape) {
		t.Fatalf("zero transects: %v", err)
	}
}

func TestCodesValidate(t *testing.T) {
	if err := testCodes().Validate(); err != nil {
		t.Fatal(err)
	}
	dup := append(testCodes(), Code{Code: 100})
	if err := dup.Validate(); err == nil {
		t.Fatal("duplicate code accepted")
	}
	if err := (Codes{{Code: 1, Height: -1}}).Validate(); err == nil {
		t.Fatal("negative height accepted")
	}
}

func TestParseDataInput(t *testing.T) {
	for in, want := range map[string]DataInput{"": DataCodes, "Codes": DataCodes, "values": DataValues} {
		got, err := ParseDataInput(in)
		if err != nil || got != want {
			t.Errorf("ParseDataInput(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseDataInput("lidar"); err == nil {
		t.Fatal("unknown input accepted")
	}
}

func TestSamplerWalksBearings(t *testing.T) {
	const size = 11
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	s := Sampler{
		Raster:      raster.FromImage(img),
		Grid:        Grid{OriginX: 0, OriginY: 11, PixelSize: 1},
		Transects:   4,
		SampleCount: 2,
		Distance:    2,
	}
	nd, err := s.Sample(5.5, 5.5)
	if err != nil {
		t.Fatal(err)
	}
	code := func(col, row int) int { return row*size + col }

	if nd.Emergent.Code != code(5, 5) {
		t.Fatalf("emergent code %d", nd.Emergent.Code)
	}
	want := [][]int{
		{code(3, 5), code(1, 5)}, // west, sun azimuth 90
		{code(5, 3), code(5, 1)}, // north
		{code(7, 5), code(9, 5)}, // east
		{code(5, 7), code(5, 9)}, // south
	}
	for i, row := range want {
		for k, c := range row {
			if got := nd.Samples[i][k].Code; got != c {
				t.Errorf("transect %d zone %d: code %d, want %d", i, k+1, got, c)
			}
		}
	}

	if _, err := s.Sample(-20, 5); !errors.Is(err, raster.ErrOutOfBounds) {
		t.Fatalf("outside raster: %v", err)
	}
}
