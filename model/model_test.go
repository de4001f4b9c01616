package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/echoflaresat/heatsource/config"
	"github.com/echoflaresat/heatsource/internal/observability"
	"github.com/echoflaresat/heatsource/landcover"
)

const reachYAML = `
name: test reach
site: {latitude: 45, longitude: -120, utc_offset_hours: -8}
timing:
  model_start: 2013-06-21 11:00:00
  model_end: 2013-06-21 13:00:00
  dt_minutes: 1
  output_interval_minutes: 60
  flush_days: 0
  initial_temp: 15
transects: {count: 8, sample_count: 2, sample_distance_m: 8}
heat: {calc_evap: true}
landcover:
  codes:
    - {code: 1, name: open}
    - {code: 200, name: conifer, height: 30, density: 0.9}
nodes:
  - {id: a, km: 2.0, flow: 1, velocity: 0.3, depth: 0.4, width: 10, dx: 100}
  - {id: b, km: 1.9, flow: 1, velocity: 0.3, depth: 0.4, width: 10, dx: 100}
  - {id: c, km: 1.8, flow: 1, velocity: 0.3, depth: 0.4, width: 10, dx: 100}
`

func testConfig(t *testing.T, mutate func(*config.Config)) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(reachYAML))
	if err != nil {
		t.Fatal(err)
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func constantMet(air, rh, wind, cloud float64) *Meteorology {
	return NewMeteorology(&Series{
		Columns: MeteorologyColumns,
		Times:   []time.Time{{}},
		Values:  [][]float64{{air, rh, wind, cloud}},
	})
}

// canopy covers every zone of every node with land cover code.
func canopy(code int) func(*config.Config) {
	return func(c *config.Config) {
		for i := range c.Nodes {
			rows := make([][]landcover.Sample, c.Transects.Count)
			for j := range rows {
				rows[j] = make([]landcover.Sample, c.Transects.SampleCount)
				for k := range rows[j] {
					rows[j][k].Code = code
				}
			}
			c.Nodes[i].Landcover = rows
		}
	}
}

func TestRunRecordsOutputInterval(t *testing.T) {
	cfg := testConfig(t, nil)
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewRunCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	var last, total int
	m, err := Build(cfg, constantMet(22, 0.5, 1, 0), nil,
		WithMetrics(metrics),
		WithWorkers(2),
		WithProgress(func(done, n int) { last, total = done, n }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if m.Steps() != 120 {
		t.Fatalf("Steps() = %d, want 120", m.Steps())
	}

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{cfg.Start().Add(time.Hour), cfg.Start().Add(2 * time.Hour)}
	if len(res.Times) != len(want) {
		t.Fatalf("recorded %d rows, want %d", len(res.Times), len(want))
	}
	for i := range want {
		if !res.Times[i].Equal(want[i]) {
			t.Errorf("record %d at %v, want %v", i, res.Times[i], want[i])
		}
	}
	if len(res.KM) != 3 || res.KM[2] != 1.8 {
		t.Fatalf("KM = %v", res.KM)
	}
	for _, row := range res.Temperature {
		for _, v := range row {
			if math.IsNaN(v) || v < 0 || v > 40 {
				t.Fatalf("implausible temperature %v", v)
			}
		}
	}
	for _, v := range res.SolarWater[0] {
		if v <= 0 {
			t.Fatalf("no solar gain at midday on an open reach: %v", res.SolarWater[0])
		}
	}

	if last != 120 || total != 120 {
		t.Fatalf("progress %d/%d", last, total)
	}
	if got := testutil.ToFloat64(metrics.Steps); got != 120 {
		t.Fatalf("steps metric = %v", got)
	}
	if got := testutil.ToFloat64(metrics.Records); got != 2 {
		t.Fatalf("records metric = %v", got)
	}
	if got := testutil.ToFloat64(metrics.DaytimeNodes); got != 3 {
		t.Fatalf("daytime nodes = %v", got)
	}
}

func TestFlushPeriodIsNotRecorded(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Timing.FlushDays = 1 })
	m, err := Build(cfg, constantMet(15, 0.7, 1, 0.5), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Steps() != 24*60+120 {
		t.Fatalf("Steps() = %d", m.Steps())
	}
	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Times) != 3 || !res.Times[0].Equal(cfg.Start()) {
		t.Fatalf("records %v", res.Times)
	}
}

func TestCanopyShadeCoolsReach(t *testing.T) {
	run := func(code int) *Result {
		t.Helper()
		cfg := testConfig(t, canopy(code))
		m, err := Build(cfg, constantMet(25, 0.4, 1, 0), nil)
		if err != nil {
			t.Fatal(err)
		}
		if m.Profile(0) == nil {
			t.Fatal("land cover not resolved into a profile")
		}
		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	open, shaded := run(1), run(200)
	last := len(open.Times) - 1
	for j := range open.KM {
		if shaded.SolarWater[last][j] >= open.SolarWater[last][j] {
			t.Errorf("node %d: shaded solar %v >= open %v", j, shaded.SolarWater[last][j], open.SolarWater[last][j])
		}
		if shaded.Temperature[last][j] >= open.Temperature[last][j] {
			t.Errorf("node %d: shaded temperature %v >= open %v", j, shaded.Temperature[last][j], open.Temperature[last][j])
		}
	}
}

func TestBoundaryAndInflow(t *testing.T) {
	start := time.Date(2013, time.June, 21, 11, 0, 0, 0, time.UTC)
	boundary := NewBoundary(&Series{
		Columns: []string{"Temperature"},
		Times:   []time.Time{start},
		Values:  [][]float64{{8}},
	})
	withInflow := func(c *config.Config) {
		c.Inflows = []config.InflowConfig{{Name: "spring", KM: 1.91, Flow: 1, Temperature: 4}}
	}

	base, err := Build(testConfig(t, nil), constantMet(15, 0.6, 1, 1), boundary)
	if err != nil {
		t.Fatal(err)
	}
	mixed, err := Build(testConfig(t, withInflow), constantMet(15, 0.6, 1, 1), boundary)
	if err != nil {
		t.Fatal(err)
	}
	if mixed.inflows[0].node != 1 {
		t.Fatalf("inflow placed at node %d, want 1", mixed.inflows[0].node)
	}
	a, err := base.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := mixed.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	last := len(a.Times) - 1
	if a.Temperature[last][0] >= 15 {
		t.Fatalf("cold boundary did not cool the head node: %v", a.Temperature[last][0])
	}
	if b.Temperature[last][1] >= a.Temperature[last][1] {
		t.Fatalf("cold inflow did not cool node b: %v >= %v", b.Temperature[last][1], a.Temperature[last][1])
	}
	if b.Temperature[last][0] != a.Temperature[last][0] {
		t.Fatalf("inflow changed the upstream node: %v != %v", b.Temperature[last][0], a.Temperature[last][0])
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := Build(testConfig(t, nil), nil, nil); !errors.Is(err, ErrNoMeteorology) {
		t.Fatalf("nil meteorology: %v", err)
	}
	bad := testConfig(t, func(c *config.Config) { c.Nodes = nil })
	if _, err := Build(bad, constantMet(10, 0.5, 1, 0), nil); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("invalid config: %v", err)
	}
	unknown := testConfig(t, canopy(7))
	if _, err := Build(unknown, constantMet(10, 0.5, 1, 0), nil); err == nil || !strings.Contains(err.Error(), "node a") {
		t.Fatalf("unknown code: %v", err)
	}
	missing := testConfig(t, func(c *config.Config) {
		c.Landcover.Raster = filepath.Join(t.TempDir(), "missing.tif")
		c.Landcover.Grid.PixelSize = 1
	})
	if _, err := Build(missing, constantMet(10, 0.5, 1, 0), nil); err == nil {
		t.Fatal("missing raster accepted")
	}
}

func TestRasterProfiles(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 41, 41))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetGray(20, 20, color.Gray{Y: 1})
	path := filepath.Join(t.TempDir(), "lc.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, func(c *config.Config) {
		c.Landcover.Raster = path
		c.Landcover.Grid.PixelSize = 1
		c.Transects.Emergent = true
		for i := range c.Nodes {
			c.Nodes[i].X, c.Nodes[i].Y = 20.5, -20.5
		}
	})
	m, err := Build(cfg, constantMet(20, 0.5, 1, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	p := m.Profile(0)
	if p == nil {
		t.Fatal("no profile from raster")
	}
	if len(p.Transects) != 8 || p.Transects[3].MaxAngle <= 70 {
		t.Fatalf("profile %+v", p.Transects)
	}
	if p.Emergent == nil || p.Emergent.Height != 0 {
		t.Fatalf("emergent zone %+v, want the open node pixel", p.Emergent)
	}
}

func TestCancelledRun(t *testing.T) {
	m, err := Build(testConfig(t, nil), constantMet(20, 0.5, 1, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run on cancelled context = %v", err)
	}
}

func TestNearestNode(t *testing.T) {
	nodes := []config.NodeConfig{{KM: 3}, {KM: 2}, {KM: 1}}
	for _, c := range []struct {
		km   float64
		want int
	}{{5, 0}, {2.4, 1}, {1.6, 1}, {0, 2}} {
		t.Run(fmt.Sprint(c.km), func(t *testing.T) {
			if got := nearestNode(nodes, c.km); got != c.want {
				t.Fatalf("nearestNode(%v) = %d, want %d", c.km, got, c.want)
			}
		})
	}
}
