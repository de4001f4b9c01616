// Command heatmap renders a Temp_H2O output file as a PNG.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/echoflaresat/heatsource/colors"
	"github.com/echoflaresat/heatsource/model"
	"github.com/echoflaresat/heatsource/render"
)

func main() {
	in := flag.String("in", "output/Temp_H2O.csv", "Temp_H2O CSV to render")
	out := flag.String("out", "temp_h2o.png", "Output PNG file path")
	ramp := flag.String("ramp", "thermal", "Colour ramp: thermal, spectrum or grey")
	lo := flag.Float64("min", math.NaN(), "Temperature at the cold end of the ramp (default: data minimum)")
	hi := flag.Float64("max", math.NaN(), "Temperature at the hot end of the ramp (default: data maximum)")
	width := flag.Int("width", 0, "Image width in pixels (default: one per node)")
	height := flag.Int("height", 0, "Image height in pixels (default: one per record)")
	flag.Parse()

	r, err := colors.ByName(*ramp)
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal(err)
	}
	res, err := model.ReadCSV(f, time.UTC)
	f.Close()
	if err != nil {
		log.Fatalf("read %s: %v", *in, err)
	}

	scale := render.AutoScale(res.Temperature)
	if !math.IsNaN(*lo) {
		scale.Min = *lo
	}
	if !math.IsNaN(*hi) {
		scale.Max = *hi
	}

	img := render.Heatmap(res, r, scale, render.Options{Width: *width, Height: *height})
	if err := render.WritePNG(*out, img); err != nil {
		log.Fatalf("Failed to write PNG: %v", err)
	}
	fmt.Printf("%s: %d nodes x %d records, %.2f to %.2f C\n", *out, len(res.KM), len(res.Times), scale.Min, scale.Max)
}
