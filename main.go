package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uiprogress"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/echoflaresat/heatsource/colors"
	"github.com/echoflaresat/heatsource/config"
	"github.com/echoflaresat/heatsource/internal/logging"
	"github.com/echoflaresat/heatsource/internal/observability"
	"github.com/echoflaresat/heatsource/model"
	"github.com/echoflaresat/heatsource/postpro"
	"github.com/echoflaresat/heatsource/render"
)

type options struct {
	config      *string
	out         *string
	heatmap     *string
	ramp        *string
	summary     *string
	metricsAddr *string
	workers     *int
	progress    *bool
	showHelp    *bool
}

func defineFlags() options {
	return options{
		config: flag.String("config", "heatsource.yaml", "Control file path"),

		out:     flag.String("out", "output", "Directory for the output CSV files"),
		heatmap: flag.String("heatmap", "", "Write a water temperature heatmap PNG to this path"),
		ramp:    flag.String("ramp", "thermal", "Heatmap colour ramp: thermal, spectrum or grey"),
		summary: flag.String("summary", "", "Write daily statistics and 7DADM as JSON to this path"),

		metricsAddr: flag.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run"),
		workers:     flag.Int("workers", 0, "Parallel workers (0 uses the control file, then the CPU count)"),
		progress:    flag.Bool("progress", false, "Show a progress bar"),

		showHelp: flag.Bool("h", false, "Show this help message"),
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Heat Source - Stream Temperature Model

Usage:
  %[1]s [options]

`, os.Args[0])

	printGroup("Input", []string{"config"})
	printGroup("Output", []string{"out", "heatmap", "ramp", "summary"})
	printGroup("Run", []string{"workers", "progress", "metrics-addr"})
	printGroup("Misc", []string{"h"})
	fmt.Fprintln(os.Stderr, "Logging and tracing read HEATSOURCE_LOG_* and HEATSOURCE_TRACING_* from the environment.")
}

func printGroup(title string, keys []string) {
	fmt.Fprintf(os.Stderr, "%s:\n", title)
	for _, name := range keys {
		if f := flag.Lookup(name); f != nil {
			fmt.Fprintf(os.Stderr, "  -%-13s %s (default %q)\n", f.Name, f.Usage, f.DefValue)
		}
	}
	fmt.Fprintln(os.Stderr)
}

func main() {
	opts := defineFlags()
	flag.Usage = printHelp
	flag.Parse()

	if *opts.showHelp {
		printHelp()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log := logging.NewFromEnv()
	if err := run(ctx, opts, log); err != nil {
		log.Error(ctx, "heatsource failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log logging.Logger) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	cfg, err := config.LoadFile(*opts.config)
	if err != nil {
		return fmt.Errorf("load %s: %w", *opts.config, err)
	}
	ramp, err := colors.ByName(*opts.ramp)
	if err != nil {
		return err
	}

	if cfg.Inputs.Meteorology == "" {
		return errors.New("inputs.meteorology is required")
	}
	met, err := model.LoadMeteorology(cfg.Inputs.Meteorology, cfg.Location())
	if err != nil {
		return err
	}
	var boundary *model.Boundary
	if cfg.Inputs.Boundary != "" {
		if boundary, err = model.LoadBoundary(cfg.Inputs.Boundary, cfg.Location()); err != nil {
			return err
		}
	}

	modelOpts := []model.Option{model.WithLogger(log)}
	if *opts.workers > 0 {
		modelOpts = append(modelOpts, model.WithWorkers(*opts.workers))
	}
	if *opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		collector, err := observability.NewRunCollector(reg)
		if err != nil {
			return err
		}
		srv := serveMetrics(ctx, *opts.metricsAddr, collector, log)
		defer srv.Close()
		modelOpts = append(modelOpts, model.WithMetrics(collector))
	}
	if *opts.progress {
		var bar *uiprogress.Bar
		modelOpts = append(modelOpts, model.WithProgress(func(done, total int) {
			if bar == nil {
				uiprogress.Start()
				bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
			}
			bar.Set(done)
		}))
		defer func() {
			if bar != nil {
				uiprogress.Stop()
			}
		}()
	}

	m, err := model.Build(cfg, met, boundary, modelOpts...)
	if err != nil {
		return err
	}
	began := time.Now()
	res, err := m.Run(ctx)
	if err != nil {
		return err
	}

	paths, err := res.WriteFiles(*opts.out)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil {
			log.Info(ctx, "wrote output", logging.String("path", p), logging.String("size", humanize.Bytes(uint64(st.Size()))))
		}
	}

	if *opts.heatmap != "" {
		img := render.Heatmap(res, ramp, render.AutoScale(res.Temperature), render.Options{})
		if err := render.WritePNG(*opts.heatmap, img); err != nil {
			return fmt.Errorf("write heatmap: %w", err)
		}
		log.Info(ctx, "wrote heatmap", logging.String("path", *opts.heatmap))
	}
	if *opts.summary != "" {
		if err := writeSummary(*opts.summary, cfg.Name, postpro.Summarize(res)); err != nil {
			return err
		}
		log.Info(ctx, "wrote summary", logging.String("path", *opts.summary))
	}

	log.Info(ctx, "done",
		logging.String("steps", humanize.Comma(int64(m.Steps()))),
		logging.String("node_steps", humanize.Comma(int64(m.Steps())*int64(len(cfg.Nodes)))),
		logging.String("records", humanize.Comma(int64(len(res.Times)))),
		logging.Duration("elapsed", time.Since(began).Round(time.Millisecond)),
	)
	return nil
}

func serveMetrics(ctx context.Context, addr string, c *observability.RunCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "metrics server stopped", logging.Err(err))
		}
	}()
	log.Info(ctx, "serving metrics", logging.String("addr", addr))
	return srv
}

type summary struct {
	Name    string         `json:"name"`
	Created time.Time      `json:"created"`
	Nodes   []postpro.Node `json:"nodes"`
}

func writeSummary(path, name string, nodes []postpro.Node) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	bs, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(summary{
		Name:    name,
		Created: time.Now().UTC(),
		Nodes:   nodes,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0o644)
}
