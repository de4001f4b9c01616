// Package config loads and validates the YAML control file of a run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/echoflaresat/heatsource/landcover"
	"github.com/echoflaresat/heatsource/shade"
	"github.com/echoflaresat/heatsource/solar"
	"github.com/echoflaresat/heatsource/thermal"
	"github.com/echoflaresat/heatsource/transect"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the control file of a run.
type Config struct {
	Name      string          `yaml:"name"`
	Site      SiteConfig      `yaml:"site"`
	Timing    TimingConfig    `yaml:"timing"`
	Transects TransectConfig  `yaml:"transects"`
	Heat      HeatConfig      `yaml:"heat"`
	Landcover LandcoverConfig `yaml:"landcover"`
	Inputs    InputsConfig    `yaml:"inputs"`
	Nodes     []NodeConfig    `yaml:"nodes"`
	Inflows   []InflowConfig  `yaml:"inflows"`
	Workers   int             `yaml:"workers"`
}

// SiteConfig locates the reach. Node coordinates default to it.
type SiteConfig struct {
	Latitude       float64 `yaml:"latitude"`
	Longitude      float64 `yaml:"longitude"`
	UTCOffsetHours float64 `yaml:"utc_offset_hours"`
}

// TimingConfig holds the model clock. Start and end are local standard
// time wall clock values.
type TimingConfig struct {
	ModelStart            time.Time `yaml:"model_start"`
	ModelEnd              time.Time `yaml:"model_end"`
	DTMinutes             float64   `yaml:"dt_minutes"`
	OutputIntervalMinutes float64   `yaml:"output_interval_minutes"`
	FlushDays             int       `yaml:"flush_days"`
	InitialTemp           float64   `yaml:"initial_temp"`
}

// TransectConfig controls directional sampling and riparian shade.
type TransectConfig struct {
	Count          int     `yaml:"count"`
	Heatsource8    bool    `yaml:"heatsource8"`
	SampleCount    int     `yaml:"sample_count"`
	SampleDistance float64 `yaml:"sample_distance_m"`
	Emergent       bool    `yaml:"emergent"`
	LCDataInput    string  `yaml:"lc_data_input"`
	CanopyData     string  `yaml:"canopy_data"`
	LAIExtinction  float64 `yaml:"lai_extinction"`
}

// HeatConfig holds heat budget options.
type HeatConfig struct {
	EvapMethod           string  `yaml:"evap_method"`
	CalcEvap             bool    `yaml:"calc_evap"`
	WindA                float64 `yaml:"wind_a"`
	WindB                float64 `yaml:"wind_b"`
	CalcAlluvium         bool    `yaml:"calc_alluvium"`
	AlluviumTemp         float64 `yaml:"alluvium_temp"`
	SedimentDepth        float64 `yaml:"sediment_depth_m"`
	SedimentConductivity float64 `yaml:"sediment_conductivity"`
}

// LandcoverConfig holds the code table and an optional code raster.
type LandcoverConfig struct {
	Raster            string          `yaml:"raster"`
	Grid              landcover.Grid  `yaml:",inline"`
	Codes             landcover.Codes `yaml:"codes"`
	RasterCacheBlocks int             `yaml:"raster_cache_blocks"`
}

// InputsConfig names the time series files.
type InputsConfig struct {
	Meteorology string `yaml:"meteorology"`
	Boundary    string `yaml:"boundary"`
}

// NodeConfig is one stream node. Latitude and Longitude default to the
// site; X and Y are projected coordinates used for raster sampling.
type NodeConfig struct {
	ID        string               `yaml:"id"`
	KM        float64              `yaml:"km"`
	Latitude  *float64             `yaml:"latitude"`
	Longitude *float64             `yaml:"longitude"`
	X         float64              `yaml:"x"`
	Y         float64              `yaml:"y"`
	Elevation float64              `yaml:"elevation"`
	Flow      float64              `yaml:"flow"`
	Velocity  float64              `yaml:"velocity"`
	Depth     float64              `yaml:"depth"`
	Width     float64              `yaml:"width"`
	DX        float64              `yaml:"dx"`
	Topo      []float64            `yaml:"topo"`
	Emergent  *landcover.Sample    `yaml:"emergent"`
	Landcover [][]landcover.Sample `yaml:"landcover"`
}

// InflowConfig is a tributary entering at river km KM. With no File the
// constant Flow and Temperature are used.
type InflowConfig struct {
	Name        string  `yaml:"name"`
	KM          float64 `yaml:"km"`
	File        string  `yaml:"file"`
	Flow        float64 `yaml:"flow"`
	Temperature float64 `yaml:"temperature"`
}

// DefaultConfig returns the defaults applied to omitted settings.
func DefaultConfig() Config {
	params := shade.DefaultParams()
	return Config{
		Name: "heatsource",
		Timing: TimingConfig{
			DTMinutes:             1,
			OutputIntervalMinutes: 60,
			FlushDays:             1,
			InitialTemp:           10,
		},
		Transects: TransectConfig{
			Count:          8,
			SampleCount:    4,
			SampleDistance: 8,
			LCDataInput:    "codes",
			CanopyData:     "CanopyCover",
			LAIExtinction:  params.LAIExtinction,
		},
		Heat: HeatConfig{
			EvapMethod:           "Mass Transfer",
			WindA:                params.WindA,
			WindB:                params.WindB,
			AlluviumTemp:         12,
			SedimentDepth:        params.SedimentDepth,
			SedimentConductivity: params.SedimentConductivity,
		},
		Landcover: LandcoverConfig{
			RasterCacheBlocks: 64,
		},
	}
}

// normalize fills defaults for values the control file left at zero.
func (c *Config) normalize() {
	def := DefaultConfig()
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Timing.DTMinutes == 0 {
		c.Timing.DTMinutes = def.Timing.DTMinutes
	}
	if c.Timing.OutputIntervalMinutes <= 0 {
		c.Timing.OutputIntervalMinutes = def.Timing.OutputIntervalMinutes
	}
	if c.Timing.FlushDays < 0 {
		c.Timing.FlushDays = 0
	}
	if c.Transects.Heatsource8 {
		c.Transects.Count = transect.LegacyCount
	}
	if c.Transects.SampleDistance <= 0 {
		c.Transects.SampleDistance = def.Transects.SampleDistance
	}
	if strings.TrimSpace(c.Transects.LCDataInput) == "" {
		c.Transects.LCDataInput = def.Transects.LCDataInput
	}
	if strings.TrimSpace(c.Transects.CanopyData) == "" {
		c.Transects.CanopyData = def.Transects.CanopyData
	}
	if c.Transects.LAIExtinction <= 0 {
		c.Transects.LAIExtinction = def.Transects.LAIExtinction
	}
	if strings.TrimSpace(c.Heat.EvapMethod) == "" {
		c.Heat.EvapMethod = def.Heat.EvapMethod
	}
	if c.Heat.SedimentDepth <= 0 {
		c.Heat.SedimentDepth = def.Heat.SedimentDepth
	}
	if c.Heat.SedimentConductivity <= 0 {
		c.Heat.SedimentConductivity = def.Heat.SedimentConductivity
	}
	if c.Landcover.RasterCacheBlocks <= 0 {
		c.Landcover.RasterCacheBlocks = def.Landcover.RasterCacheBlocks
	}
	for i := range c.Nodes {
		if strings.TrimSpace(c.Nodes[i].ID) == "" {
			c.Nodes[i].ID = fmt.Sprintf("n%d", i)
		}
	}
}

// Parse decodes YAML over the defaults.
func Parse(bs []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, nil
}

// LoadFile loads YAML config and applies defaults. Relative input paths
// are taken relative to the directory of the file.
func LoadFile(path string) (Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), err
	}
	cfg, err := Parse(bs)
	if err != nil {
		return cfg, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	resolve(&c.Landcover.Raster)
	resolve(&c.Inputs.Meteorology)
	resolve(&c.Inputs.Boundary)
	for i := range c.Inflows {
		resolve(&c.Inflows[i].File)
	}
}

// Validate reports every problem found, each wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if err := c.SolarSite().Validate(); err != nil {
		fail("site: %w", err)
	}
	if c.Timing.DTMinutes <= 0 {
		fail("timing.dt_minutes must be > 0, got %v", c.Timing.DTMinutes)
	}
	if !c.Timing.ModelEnd.After(c.Timing.ModelStart) {
		fail("timing.model_end must be after model_start")
	}
	if _, err := c.Indexer(); err != nil {
		fail("transects.count %d: %w", c.Transects.Count, err)
	}
	if _, err := c.ShadeParams(); err != nil {
		fail("%w", err)
	}
	if _, err := landcover.ParseDataInput(c.Transects.LCDataInput); err != nil {
		fail("%w", err)
	}
	if err := c.Landcover.Codes.Validate(); err != nil {
		fail("landcover.codes: %w", err)
	}
	if c.Landcover.Raster != "" && c.Landcover.Grid.PixelSize <= 0 {
		fail("landcover.pixel_size must be > 0 with a raster")
	}
	if c.Transects.SampleCount < 0 {
		fail("transects.sample_count must be >= 0")
	}
	if c.Workers < 0 {
		fail("workers must be >= 0")
	}

	if len(c.Nodes) == 0 {
		fail("no nodes")
	}
	dt := c.DT().Seconds()
	for i, n := range c.Nodes {
		if n.DX <= 0 {
			fail("nodes[%d] %s: dx must be > 0", i, n.ID)
			continue
		}
		if n.Depth < 0 || n.Width < 0 || n.Flow < 0 || n.Velocity < 0 {
			fail("nodes[%d] %s: negative hydraulics", i, n.ID)
		}
		if cr := thermal.Courant(n.Velocity, dt, n.DX); c.Timing.DTMinutes > 0 && cr > 1 {
			fail("nodes[%d] %s: courant %.3f > 1: %w", i, n.ID, cr, thermal.ErrCourant)
		}
		lat, lon := c.NodePosition(i)
		if err := (solar.Site{Latitude: lat, Longitude: lon}).Validate(); err != nil {
			fail("nodes[%d] %s: %w", i, n.ID, err)
		}
		if i > 0 && n.KM >= c.Nodes[i-1].KM {
			fail("nodes[%d] %s: km must decrease downstream", i, n.ID)
		}
	}
	for i, in := range c.Inflows {
		if in.File == "" && in.Flow < 0 {
			fail("inflows[%d] %s: negative flow", i, in.Name)
		}
	}
	return errors.Join(errs...)
}

// SolarSite is the site as used by the solar package.
func (c Config) SolarSite() solar.Site {
	return solar.Site{
		Latitude:       c.Site.Latitude,
		Longitude:      c.Site.Longitude,
		UTCOffsetHours: c.Site.UTCOffsetHours,
	}
}

// NodePosition returns the latitude and longitude of node i.
func (c Config) NodePosition(i int) (lat, lon float64) {
	lat, lon = c.Site.Latitude, c.Site.Longitude
	if p := c.Nodes[i].Latitude; p != nil {
		lat = *p
	}
	if p := c.Nodes[i].Longitude; p != nil {
		lon = *p
	}
	return lat, lon
}

// Indexer builds the transect indexer selected by the control file.
func (c Config) Indexer() (transect.Indexer, error) {
	if c.Transects.Heatsource8 {
		return transect.New(transect.ModeLegacy, transect.LegacyCount)
	}
	return transect.New(transect.ModeRadial, c.Transects.Count)
}

// ShadeParams resolves the flux engine coefficients.
func (c Config) ShadeParams() (shade.Params, error) {
	canopy, err := shade.ParseCanopy(c.Transects.CanopyData)
	if err != nil {
		return shade.Params{}, err
	}
	evap, err := shade.ParseEvapMethod(c.Heat.EvapMethod)
	if err != nil {
		return shade.Params{}, err
	}
	return shade.Params{
		Canopy:               canopy,
		LAIExtinction:        c.Transects.LAIExtinction,
		Evap:                 evap,
		WindA:                c.Heat.WindA,
		WindB:                c.Heat.WindB,
		SedimentConductivity: c.Heat.SedimentConductivity,
		SedimentDepth:        c.Heat.SedimentDepth,
	}, nil
}

// Location is the fixed local standard time zone of the run. Daylight
// saving is never applied.
func (c Config) Location() *time.Location {
	return time.FixedZone("LST", int(c.Site.UTCOffsetHours*3600))
}

// Start is model_start interpreted in local standard time.
func (c Config) Start() time.Time { return c.wallClock(c.Timing.ModelStart) }

// End is model_end interpreted in local standard time.
func (c Config) End() time.Time { return c.wallClock(c.Timing.ModelEnd) }

// FlushStart is the start of the spin up period preceding Start.
func (c Config) FlushStart() time.Time {
	return c.Start().AddDate(0, 0, -c.Timing.FlushDays)
}

// DT is the model timestep.
func (c Config) DT() time.Duration {
	return time.Duration(c.Timing.DTMinutes * float64(time.Minute))
}

// OutputInterval is the spacing of recorded results.
func (c Config) OutputInterval() time.Duration {
	return time.Duration(c.Timing.OutputIntervalMinutes * float64(time.Minute))
}

func (c Config) wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.Location())
}
