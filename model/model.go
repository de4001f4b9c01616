// Package model assembles a run from a control file and drives it: sun
// positions, per node heat budgets and the thermal update at every step.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/echoflaresat/heatsource/config"
	"github.com/echoflaresat/heatsource/internal/logging"
	"github.com/echoflaresat/heatsource/internal/observability"
	"github.com/echoflaresat/heatsource/landcover"
	"github.com/echoflaresat/heatsource/landcover/raster"
	"github.com/echoflaresat/heatsource/shade"
	"github.com/echoflaresat/heatsource/solar"
	"github.com/echoflaresat/heatsource/thermal"
	"github.com/echoflaresat/heatsource/timectrl"
	"github.com/echoflaresat/heatsource/transect"
)

// ErrNoMeteorology is returned by Build without a meteorology series.
var ErrNoMeteorology = errors.New("no meteorology input")

// Option customises a Model.
type Option func(*Model)

// WithLogger sets the run logger.
func WithLogger(l logging.Logger) Option { return func(m *Model) { m.log = l } }

// WithMetrics records step metrics on c.
func WithMetrics(c *observability.RunCollector) Option { return func(m *Model) { m.metrics = c } }

// WithWorkers overrides the configured worker count.
func WithWorkers(n int) Option { return func(m *Model) { m.workers = n } }

// WithProgress registers fn to be called after every step.
func WithProgress(fn func(done, total int)) Option {
	return func(m *Model) { m.progress = fn }
}

type inflow struct {
	name   string
	node   int
	series *InflowSeries
}

// Model is a fully resolved run.
type Model struct {
	cfg      config.Config
	indexer  transect.Indexer
	profiles []*landcover.Profile
	batch    *solar.Batch
	engine   *shade.Engine
	reach    *thermal.Reach
	clock    *timectrl.Controller

	met      *Meteorology
	boundary *Boundary
	inflows  []inflow

	workers  int
	log      logging.Logger
	metrics  *observability.RunCollector
	progress func(done, total int)

	fluxes  []shade.Flux
	flows   []thermal.Inflow
	temps   []float64
	result  *Result
	daytime int
}

// Build validates cfg and resolves everything a run needs. boundary may be
// nil, in which case the upstream temperature is held at the initial
// temperature.
func Build(cfg config.Config, met *Meteorology, boundary *Boundary, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if met == nil {
		return nil, ErrNoMeteorology
	}
	m := &Model{
		cfg:      cfg,
		met:      met,
		boundary: boundary,
		workers:  cfg.Workers,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers <= 0 {
		m.workers = runtime.NumCPU()
	}
	if m.log == nil {
		m.log = logging.Noop()
	}

	var err error
	if m.indexer, err = cfg.Indexer(); err != nil {
		return nil, err
	}
	params, err := cfg.ShadeParams()
	if err != nil {
		return nil, err
	}
	m.engine = shade.New(params)

	if m.profiles, err = buildProfiles(cfg); err != nil {
		return nil, err
	}

	n := len(cfg.Nodes)
	lat, lon := make([]float64, n), make([]float64, n)
	nodes := make([]thermal.Node, n)
	for i, nc := range cfg.Nodes {
		lat[i], lon[i] = cfg.NodePosition(i)
		nodes[i] = thermal.Node{
			ID:       nc.ID,
			KM:       nc.KM,
			Flow:     nc.Flow,
			Velocity: nc.Velocity,
			Depth:    nc.Depth,
			Width:    nc.Width,
			DX:       nc.DX,
		}
	}
	m.batch = solar.NewBatch(lat, lon, cfg.Site.UTCOffsetHours, m.indexer)

	m.reach = thermal.NewReach(nodes, cfg.Timing.InitialTemp)
	m.reach.SedimentDepth = cfg.Heat.SedimentDepth
	m.reach.CalcEvap = cfg.Heat.CalcEvap
	if cfg.Heat.CalcAlluvium {
		t := cfg.Heat.AlluviumTemp
		m.reach.Alluvium = &t
	}
	if err := m.reach.CheckCourant(cfg.DT().Seconds()); err != nil {
		return nil, err
	}

	for _, ic := range cfg.Inflows {
		src := ConstantInflow(ic.Flow, ic.Temperature)
		if ic.File != "" {
			if src, err = LoadInflow(ic.File, cfg.Location()); err != nil {
				return nil, fmt.Errorf("inflow %s: %w", ic.Name, err)
			}
		}
		m.inflows = append(m.inflows, inflow{name: ic.Name, node: nearestNode(cfg.Nodes, ic.KM), series: src})
	}

	if m.clock, err = timectrl.New(cfg.FlushStart(), cfg.End(), cfg.DT()); err != nil {
		return nil, err
	}
	if m.progress != nil {
		total := m.clock.Steps()
		m.clock.AddListener(func(step int, _ time.Time) error {
			m.progress(step+1, total)
			return nil
		})
	}

	m.fluxes = make([]shade.Flux, n)
	m.flows = make([]thermal.Inflow, len(m.inflows))
	m.result = newResult(cfg)
	return m, nil
}

// buildProfiles resolves the shade profile of every node from the raster
// when one is configured, otherwise from the samples in the control file.
// Nodes without land cover get a nil profile.
func buildProfiles(cfg config.Config) ([]*landcover.Profile, error) {
	input, err := landcover.ParseDataInput(cfg.Transects.LCDataInput)
	if err != nil {
		return nil, err
	}
	builder := landcover.Builder{
		Input:          input,
		Codes:          cfg.Landcover.Codes,
		Transects:      cfg.Transects.Count,
		SampleCount:    cfg.Transects.SampleCount,
		SampleDistance: cfg.Transects.SampleDistance,
		Emergent:       cfg.Transects.Emergent,
		Bearing:        transect.Bearing,
	}

	var sampler *landcover.Sampler
	if cfg.Landcover.Raster != "" {
		r, err := raster.OpenCached(cfg.Landcover.Raster, cfg.Landcover.RasterCacheBlocks)
		if err != nil {
			return nil, fmt.Errorf("land cover raster: %w", err)
		}
		defer r.Close()
		builder.Input = landcover.DataCodes
		sampler = &landcover.Sampler{
			Raster:      r,
			Grid:        cfg.Landcover.Grid,
			Transects:   cfg.Transects.Count,
			SampleCount: cfg.Transects.SampleCount,
			Distance:    cfg.Transects.SampleDistance,
		}
	}

	profiles := make([]*landcover.Profile, len(cfg.Nodes))
	for i, nc := range cfg.Nodes {
		nd := landcover.NodeData{Topo: nc.Topo, Emergent: nc.Emergent, Samples: nc.Landcover}
		if sampler != nil {
			sampled, err := sampler.Sample(nc.X, nc.Y)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", nc.ID, err)
			}
			nd.Samples, nd.Emergent = sampled.Samples, sampled.Emergent
		}
		if nd.Samples == nil && nd.Topo == nil {
			continue
		}
		if nd.Samples == nil {
			nd.Samples = openSamples(cfg.Transects.Count, cfg.Transects.SampleCount)
			builder := builder
			builder.Input = landcover.DataValues
			p, err := builder.Build(nd)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", nc.ID, err)
			}
			profiles[i] = &p
			continue
		}
		p, err := builder.Build(nd)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", nc.ID, err)
		}
		profiles[i] = &p
	}
	return profiles, nil
}

// openSamples is a bare ground land cover for nodes with topography only.
func openSamples(transects, zones int) [][]landcover.Sample {
	rows := make([][]landcover.Sample, transects)
	for i := range rows {
		rows[i] = make([]landcover.Sample, zones)
	}
	return rows
}

func nearestNode(nodes []config.NodeConfig, km float64) int {
	best, dist := 0, math.Inf(1)
	for i, n := range nodes {
		if d := math.Abs(n.KM - km); d < dist {
			best, dist = i, d
		}
	}
	return best
}

// Steps is the number of timesteps including the flush period.
func (m *Model) Steps() int { return m.clock.Steps() }

// Profile returns the shade profile of node i, or nil when unshaded.
func (m *Model) Profile(i int) *landcover.Profile { return m.profiles[i] }

// Run advances the model from the start of the flush period to the end of
// the run and returns the recorded outputs.
func (m *Model) Run(ctx context.Context) (*Result, error) {
	ctx, log := logging.WithRunLogger(ctx, m.log)
	ctx, span := observability.Tracer().Start(ctx, "model.run", trace.WithAttributes(
		attribute.String("run.name", m.cfg.Name),
		attribute.Int("run.nodes", len(m.cfg.Nodes)),
		attribute.Int("run.steps", m.clock.Steps()),
		attribute.String("transect.mode", m.indexer.Mode().String()),
	))
	defer span.End()

	log.Info(ctx, "run starting",
		logging.String("name", m.cfg.Name),
		logging.Int("nodes", len(m.cfg.Nodes)),
		logging.Int("steps", m.clock.Steps()),
		logging.Int("workers", m.workers),
		logging.Time("flush_start", m.cfg.FlushStart()),
		logging.Time("end", m.cfg.End()),
	)

	began := time.Now()
	err := m.clock.Run(ctx, func(step int, now time.Time) error {
		return m.step(ctx, now)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "run failed", logging.Err(err), logging.Time("at", m.clock.Now()))
		return nil, err
	}

	log.Info(ctx, "run complete",
		logging.Int("records", len(m.result.Times)),
		logging.Duration("elapsed", time.Since(began)),
	)
	return m.result, nil
}

func (m *Model) step(ctx context.Context, now time.Time) error {
	began := time.Now()
	dt := m.cfg.DT()

	minutes := solar.LocalMinutes(now, m.cfg.Site.UTCOffsetHours)
	if err := m.batch.ComputeParallel(ctx, m.workers, minutes, solar.JulianCentury(now)); err != nil {
		return err
	}
	if err := m.evaluate(ctx, now); err != nil {
		return err
	}

	boundary := m.cfg.Timing.InitialTemp
	if m.boundary != nil {
		boundary = m.boundary.Temperature(now)
	}
	for i, in := range m.inflows {
		flow, temp := in.series.At(now)
		m.flows[i] = thermal.Inflow{Node: in.node, Flow: flow, Temperature: temp}
	}
	if err := m.reach.Step(dt.Seconds(), boundary, m.fluxes, m.flows); err != nil {
		return fmt.Errorf("step at %s: %w", now.Format(time.RFC3339), err)
	}

	m.temps = m.reach.Temperatures(m.temps)
	hottest := math.Inf(-1)
	for _, t := range m.temps {
		hottest = math.Max(hottest, t)
	}
	m.metrics.ObserveStep(time.Since(began), len(m.temps), m.daytime, hottest)

	end := now.Add(dt)
	if start := m.cfg.Start(); !end.Before(start) && end.Sub(start)%m.cfg.OutputInterval() == 0 {
		m.result.record(end, m.temps, m.fluxes)
		m.metrics.ObserveRecord()
		logging.FromContext(ctx).Debug(ctx, "recorded",
			logging.Time("at", end), logging.Float("max_temp", hottest))
	}
	return nil
}

// evaluate computes the heat budget of every node on up to m.workers
// goroutines, each owning a contiguous block of nodes.
func (m *Model) evaluate(ctx context.Context, now time.Time) error {
	met := m.met.At(now)
	doy := now.YearDay()
	n := len(m.fluxes)
	chunk := (n + m.workers - 1) / m.workers

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				node := &m.reach.Nodes[i]
				m.fluxes[i] = m.engine.Evaluate(shade.Input{
					Sun: m.batch.At(i),
					Channel: shade.Channel{
						Width:     node.Width,
						Depth:     node.Depth,
						Elevation: m.cfg.Nodes[i].Elevation,
					},
					Profile:      m.profiles[i],
					Met:          met,
					WaterTemp:    node.Temperature,
					SedimentTemp: node.SedimentTemperature,
					DayOfYear:    doy,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.daytime = 0
	for _, d := range m.batch.Daytime {
		if d {
			m.daytime++
		}
	}
	return nil
}
