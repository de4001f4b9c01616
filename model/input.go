package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/echoflaresat/heatsource/shade"
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02",
	"1/2/2006",
}

// ReadSeries reads a CSV whose first column is Datetime and whose header
// names at least the requested columns. Blank lines and lines starting with
// # are skipped. Datetimes are wall clock values in loc or spreadsheet
// serial days.
func ReadSeries(r io.Reader, loc *time.Location, columns ...string) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySeries
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make([]int, len(columns))
	for i, want := range columns {
		index[i] = -1
		for j, have := range header {
			if j > 0 && strings.EqualFold(strings.TrimSpace(have), want) {
				index[i] = j
				break
			}
		}
		if index[i] < 0 {
			return nil, fmt.Errorf("missing column %q in header %q", want, strings.Join(header, ","))
		}
	}

	s := &Series{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(record) == 0 || strings.TrimSpace(record[0]) == "" {
			continue
		}
		t, err := parseTime(strings.TrimSpace(record[0]), loc)
		if err != nil {
			return nil, err
		}
		row := make([]float64, len(columns))
		for i, j := range index {
			if j >= len(record) {
				return nil, fmt.Errorf("row %s: missing %s", record[0], columns[i])
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %s: parse %s: %w", record[0], columns[i], err)
			}
			row[i] = v
		}
		s.Times = append(s.Times, t)
		s.Values = append(s.Values, row)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func parseTime(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	if days, err := strconv.ParseFloat(v, 64); err == nil {
		return FromSerial(days, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised datetime %q", v)
}

// FromSerial converts spreadsheet serial days to a wall clock time in loc.
func FromSerial(days float64, loc *time.Location) time.Time {
	ns := math.Round(days*86400) * float64(time.Second)
	t := excelEpoch.Add(time.Duration(ns))
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

// ToSerial converts t to spreadsheet serial days of its wall clock.
func ToSerial(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return wall.Sub(excelEpoch).Hours() / 24
}

func loadSeries(path string, loc *time.Location, columns ...string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSeries(f, loc, columns...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Meteorology is the air temperature, relative humidity, wind speed and
// cloud cover forcing of the reach.
type Meteorology struct {
	series *Series
}

// MeteorologyColumns are the required columns of a meteorology file.
var MeteorologyColumns = []string{"AirTemp", "RelHumidity", "WindSpeed", "CloudCover"}

// NewMeteorology wraps a series with MeteorologyColumns.
func NewMeteorology(s *Series) *Meteorology { return &Meteorology{series: s} }

// LoadMeteorology reads a meteorology CSV. Humidity and cloud cover are
// fractions; values above 1 are taken as percent.
func LoadMeteorology(path string, loc *time.Location) (*Meteorology, error) {
	s, err := loadSeries(path, loc, MeteorologyColumns...)
	if err != nil {
		return nil, err
	}
	return NewMeteorology(s), nil
}

// At returns the interpolated meteorology at t.
func (m *Meteorology) At(t time.Time) shade.Met {
	v := m.series.At(t, nil)
	return shade.Met{
		AirTemp:     v[0],
		RelHumidity: fraction(v[1]),
		WindSpeed:   math.Max(0, v[2]),
		CloudCover:  fraction(v[3]),
	}
}

func fraction(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	return math.Max(0, math.Min(1, v))
}

// Boundary is the water temperature entering the upstream node.
type Boundary struct {
	series *Series
}

// NewBoundary wraps a single column Temperature series.
func NewBoundary(s *Series) *Boundary { return &Boundary{series: s} }

// LoadBoundary reads a boundary condition CSV with a Temperature column.
func LoadBoundary(path string, loc *time.Location) (*Boundary, error) {
	s, err := loadSeries(path, loc, "Temperature")
	if err != nil {
		return nil, err
	}
	return NewBoundary(s), nil
}

// Temperature returns the boundary temperature at t.
func (b *Boundary) Temperature(t time.Time) float64 {
	return b.series.At(t, nil)[0]
}

// InflowSeries is the flow and temperature of one tributary.
type InflowSeries struct {
	series *Series
}

// ConstantInflow returns an inflow with fixed flow and temperature.
func ConstantInflow(flow, temperature float64) *InflowSeries {
	return &InflowSeries{series: &Series{
		Columns: []string{"Flow", "Temperature"},
		Times:   []time.Time{{}},
		Values:  [][]float64{{flow, temperature}},
	}}
}

// LoadInflow reads a tributary CSV with Flow and Temperature columns.
func LoadInflow(path string, loc *time.Location) (*InflowSeries, error) {
	s, err := loadSeries(path, loc, "Flow", "Temperature")
	if err != nil {
		return nil, err
	}
	return &InflowSeries{series: s}, nil
}

// At returns the tributary flow and temperature at t.
func (in *InflowSeries) At(t time.Time) (flow, temperature float64) {
	v := in.series.At(t, nil)
	return math.Max(0, v[0]), v[1]
}
