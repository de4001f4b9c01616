package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/echoflaresat/heatsource/config"
	"github.com/echoflaresat/heatsource/shade"
)

// headerRows is the number of descriptive lines preceding the column
// header in an output file.
const headerRows = 6

// Variable selects an output series.
type Variable int

const (
	VarTemperature Variable = iota
	VarSolarWater
	VarNet
)

// FileName is the output file stem of v.
func (v Variable) FileName() string {
	switch v {
	case VarSolarWater:
		return "Heat_SR6"
	case VarNet:
		return "Heat_TR"
	default:
		return "Temp_H2O"
	}
}

func (v Variable) describe() (name, units string) {
	switch v {
	case VarSolarWater:
		return "Solar Radiation, Received by Water Column", "W/m2"
	case VarNet:
		return "Total Heat Flux", "W/m2"
	default:
		return "Temperature, Water", "Celsius"
	}
}

// Result holds the recorded outputs. Series are indexed [record][node].
type Result struct {
	Name        string
	Times       []time.Time
	KM          []float64
	Temperature [][]float64
	SolarWater  [][]float64
	Net         [][]float64
}

func newResult(cfg config.Config) *Result {
	r := &Result{Name: cfg.Name, KM: make([]float64, len(cfg.Nodes))}
	for i, n := range cfg.Nodes {
		r.KM[i] = n.KM
	}
	return r
}

func (r *Result) record(t time.Time, temps []float64, fluxes []shade.Flux) {
	temp := append([]float64(nil), temps...)
	solarWater := make([]float64, len(fluxes))
	net := make([]float64, len(fluxes))
	for i, f := range fluxes {
		solarWater[i], net[i] = f.SolarWater, f.Net
	}
	r.Times = append(r.Times, t)
	r.Temperature = append(r.Temperature, temp)
	r.SolarWater = append(r.SolarWater, solarWater)
	r.Net = append(r.Net, net)
}

// Series returns the recorded values of v.
func (r *Result) Series(v Variable) [][]float64 {
	switch v {
	case VarSolarWater:
		return r.SolarWater
	case VarNet:
		return r.Net
	default:
		return r.Temperature
	}
}

// WriteCSV writes v with descriptive header lines followed by a Datetime
// column of spreadsheet serial days and one column per river km.
func (r *Result) WriteCSV(w io.Writer, v Variable) error {
	name, units := v.describe()
	lines := [headerRows]string{
		"Heat Source Output File",
		"Output Variable: " + name,
		"Model Name: " + r.Name,
		"Units: " + units,
		"Datetime: days since 1899-12-30 local standard time",
		"Columns: river km",
	}
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(r.KM)+1)
	header = append(header, "Datetime")
	for _, km := range r.KM {
		header = append(header, strconv.FormatFloat(km, 'f', 2, 64))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	values := r.Series(v)
	row := make([]string, len(header))
	for i, t := range r.Times {
		row[0] = strconv.FormatFloat(ToSerial(t), 'f', 5, 64)
		for j, x := range values[i] {
			row[j+1] = strconv.FormatFloat(x, 'f', 4, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes every output variable into dir as <name>.csv.
func (r *Result) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, v := range []Variable{VarTemperature, VarSolarWater, VarNet} {
		path := filepath.Join(dir, v.FileName()+".csv")
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = r.WriteCSV(f, v)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, fmt.Errorf("%s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadCSV parses a file written by WriteCSV into the Temperature series of
// a Result. Times are wall clock values in loc.
func ReadCSV(rd io.Reader, loc *time.Location) (*Result, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var header []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySeries
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "Datetime") {
			header = rec
			break
		}
	}

	r := &Result{KM: make([]float64, len(header)-1)}
	for i, h := range header[1:] {
		km, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: river km %q: %w", i+1, h, err)
		}
		r.KM[i] = km
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d: %d fields, want %d", len(r.Times)+1, len(rec), len(header))
		}
		t, err := parseTime(strings.TrimSpace(rec[0]), loc)
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(r.KM))
		for j := range row {
			if row[j], err = strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64); err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", len(r.Times)+1, j+1, err)
			}
		}
		r.Times = append(r.Times, t)
		r.Temperature = append(r.Temperature, row)
	}
	if len(r.Times) == 0 {
		return nil, ErrEmptySeries
	}
	return r, nil
}
