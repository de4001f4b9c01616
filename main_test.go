package main

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"

	"github.com/echoflaresat/heatsource/internal/logging"
)

const control = `
name: smoke
site: {latitude: 44.5, longitude: -122.5, utc_offset_hours: -8}
timing:
  model_start: 2013-07-01
  model_end: 2013-07-09
  dt_minutes: 10
  flush_days: 0
  initial_temp: 14
transects: {count: 4, sample_count: 1, sample_distance_m: 10, lc_data_input: values}
inputs: {meteorology: met.csv, boundary: bc.csv}
nodes:
  - {km: 1.0, flow: 2, velocity: 0.2, depth: 0.5, width: 8, dx: 200,
     landcover: [[{height: 20, density: 0.6}], [{height: 20, density: 0.6}], [], [{}]]}
  - {km: 0.8, flow: 2, velocity: 0.2, depth: 0.5, width: 8, dx: 200}
`

const met = `Datetime,AirTemp,RelHumidity,WindSpeed,CloudCover
2013-07-01 00:00,14,80,1,10
2013-07-01 14:00,28,35,2,10
2013-07-02 00:00,14,80,1,10
`

const bc = `Datetime,Temperature
2013-07-01 00:00,14
2013-07-09 00:00,16
`

func writeInputs(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"control.yaml": yaml, "met.csv": met, "bc.csv": bc} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testOptions(dir string) options {
	str := func(s string) *string { return &s }
	workers, progress, help := 2, false, false
	return options{
		config:      str(filepath.Join(dir, "control.yaml")),
		out:         str(filepath.Join(dir, "out")),
		heatmap:     str(filepath.Join(dir, "out", "temp.png")),
		ramp:        str("thermal"),
		summary:     str(filepath.Join(dir, "out", "summary.json")),
		metricsAddr: str(""),
		workers:     &workers,
		progress:    &progress,
		showHelp:    &help,
	}
}

func TestRunEndToEnd(t *testing.T) {
	// the first node has one empty transect, which the builder rejects
	yaml := strings.Replace(control, "[], [{}]", "[{}], [{}]", 1)
	dir := writeInputs(t, yaml)
	opts := testOptions(dir)
	if err := run(context.Background(), opts, logging.Noop()); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Temp_H2O.csv", "Heat_SR6.csv", "Heat_TR.csv"} {
		if _, err := os.Stat(filepath.Join(*opts.out, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	f, err := os.Open(*opts.heatmap)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	// one column per node, hourly records over eight days
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 8*24 {
		t.Fatalf("heatmap bounds %v", b)
	}

	bs, err := os.ReadFile(*opts.summary)
	if err != nil {
		t.Fatal(err)
	}
	var got summary
	if err := jsoniter.Unmarshal(bs, &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "smoke" || len(got.Nodes) != 2 {
		t.Fatalf("summary %+v", got)
	}
	if !got.Nodes[1].Has7DADM || got.Nodes[1].MaxSevenDADM < 10 || got.Nodes[1].MaxSevenDADM > 35 {
		t.Fatalf("node 1 max 7DADM %v (%v)", got.Nodes[1].MaxSevenDADM, got.Nodes[1].Has7DADM)
	}
}

func TestRunReportsBadInputs(t *testing.T) {
	dir := writeInputs(t, control)
	if err := run(context.Background(), testOptions(dir), logging.Noop()); err == nil {
		t.Fatal("transect without zones accepted")
	}

	dir = writeInputs(t, strings.Replace(control, "met.csv", "missing.csv", 1))
	if err := run(context.Background(), testOptions(dir), logging.Noop()); err == nil {
		t.Fatal("missing meteorology accepted")
	}

	opts := testOptions(writeInputs(t, control))
	ramp := "viridis"
	opts.ramp = &ramp
	if err := run(context.Background(), opts, logging.Noop()); err == nil || !strings.Contains(err.Error(), "viridis") {
		t.Fatalf("unknown ramp: %v", err)
	}
}
