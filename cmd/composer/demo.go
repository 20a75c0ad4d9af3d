package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/compose/internal/config"
	"github.com/vango-dev/compose/internal/errors"
	"github.com/vango-dev/compose/pkg/compose"
	"github.com/vango-dev/compose/pkg/devtools"
	"github.com/vango-dev/compose/pkg/loop"
	"github.com/vango-dev/compose/pkg/metrics"
	"github.com/vango-dev/compose/pkg/store"
	"github.com/vango-dev/compose/pkg/stream"
	"github.com/vango-dev/compose/pkg/tracing"
)

func demoCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		interval time.Duration
		depth    int
		devAddr  string
		exporter string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a ticking counter and a tree of views",
		Long: `Run a counter service and a Sierpinski triangle of views on an
event loop. Every dot in the triangle shows the counter, which
advances once per simulated second.

Runtime events are exported as Prometheus metrics, streamed to
devtools clients and optionally traced.

Examples:
  composer demo
  composer demo --duration 30s --devtools localhost:7070
  composer demo --depth 3 --trace stdout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if cmd.Flags().Changed("duration") {
				cfg.Demo.Duration = duration.String()
			}
			if cmd.Flags().Changed("interval") {
				cfg.Demo.Interval = interval.String()
			}
			if cmd.Flags().Changed("depth") {
				cfg.Demo.Depth = depth
			}
			if cmd.Flags().Changed("devtools") {
				cfg.Devtools.Enabled = devAddr != ""
				cfg.Devtools.Addr = devAddr
			}
			if cmd.Flags().Changed("trace") {
				cfg.Tracing.Exporter = exporter
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			summary, err := runDemo(cmd.Context(), cmd.OutOrStdout(), a.logger, &cfg)
			if err != nil {
				return err
			}
			summary.print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "How long to run (default from compose.json)")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Tick period (default from compose.json)")
	cmd.Flags().IntVar(&depth, "depth", 0, "Triangle depth (default from compose.json)")
	cmd.Flags().StringVar(&devAddr, "devtools", "", "Serve devtools on this address")
	cmd.Flags().StringVar(&exporter, "trace", "", "Trace exporter: stdout or none")

	return cmd
}

// demoSummary reports what a demo run did.
type demoSummary struct {
	elapsed time.Duration
	views   int
	ticks   int
	count   int
	renders int64
	loop    loop.Stats
	events  devtools.Stats
}

func (s demoSummary) print(w io.Writer) {
	success(w, "demo finished in %s", s.elapsed.Round(time.Millisecond))
	info(w, "views:      %s", humanize.Comma(int64(s.views)))
	info(w, "ticks:      %s (counter at %d)", humanize.Comma(int64(s.ticks)), s.count)
	info(w, "renders:    %s", humanize.Comma(s.renders))
	info(w, "flushes:    %s", humanize.Comma(int64(s.events.Flushes)))
	info(w, "loop turns: %s (%d dropped, %d panics)",
		humanize.Comma(int64(s.loop.Turns)), s.loop.Dropped, s.loop.Panics)
}

// counterService advances count to 1 + elapsed seconds mod 10 on every
// tick, recording ticks in st. Store errors panic so they reach the
// service's error handler.
func counterService(st *store.Store, ticks stream.Subscribable[int], interval time.Duration) func() *compose.Cell[int] {
	return func() *compose.Cell[int] {
		total, err := store.Define(st, "ticks", 0)
		if err != nil {
			panic(err)
		}
		count, err := store.Define(st, "count", 1)
		if err != nil {
			panic(err)
		}
		store.Handle(st, "tick", func(n int) {
			total.Set(n + 1)
			elapsed := time.Duration(n+1) * interval
			count.Set(1 + int(elapsed/time.Second)%10)
		})

		compose.Subscribe(ticks, compose.Next(func(n int) compose.Cleanup {
			if err := st.Dispatch("tick", n); err != nil {
				panic(err)
			}
			return nil
		}), compose.WithName("counter"))
		return count
	}
}

func runDemo(ctx context.Context, out io.Writer, logger *slog.Logger, cfg *config.Config) (demoSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	duration, err := cfg.DemoDuration()
	if err != nil {
		return demoSummary{}, errors.New("E102").WithDetail("demo.duration: " + err.Error()).Wrap(err)
	}
	interval, err := cfg.DemoInterval()
	if err != nil {
		return demoSummary{}, errors.New("E102").WithDetail("demo.interval: " + err.Error()).Wrap(err)
	}

	// Instrumentation
	reg := prometheus.NewRegistry()
	bus := devtools.NewBus()
	insts := compose.MultiInstrumentation{
		metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace)),
		bus,
	}
	if cfg.Tracing.Exporter != tracing.ExporterNone {
		tp, err := tracing.NewProvider(tracing.ProviderConfig{
			ServiceName:  cfg.Tracing.ServiceName,
			Exporter:     cfg.Tracing.Exporter,
			Writer:       out,
			SamplingRate: cfg.Tracing.SamplingRate,
		})
		if err != nil {
			return demoSummary{}, errors.New("E141").WithDetail(err.Error()).Wrap(err)
		}
		defer tp.Shutdown(context.Background())
		insts = append(insts, tracing.New(tracing.WithTracerProvider(tp)))
	}

	previous := compose.CurrentConfig()
	instrumented := previous
	instrumented.Instrumentation = insts
	compose.Configure(instrumented)
	defer compose.Configure(previous)

	lp := loop.New(loop.Config{Logger: logger})
	loopErr := make(chan error, 1)
	go func() { loopErr <- lp.Run(context.Background()) }()
	defer func() {
		lp.Stop()
		<-loopErr
	}()

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	devErr := make(chan error, 1)
	if cfg.Devtools.Enabled {
		srv := devtools.NewServer(devtools.Config{Bus: bus, Gatherer: reg, Logger: logger})
		go func() { devErr <- srv.ListenAndServe(runCtx, cfg.Devtools.Addr) }()
		info(out, "devtools on http://%s (/events, /stats, /metrics)", cfg.Devtools.Addr)
	}

	var (
		errs    []error
		renders atomic.Int64
		st      *store.Store
		counter *compose.Service[*compose.Cell[int]]
		tree    *triangle
	)
	handler := compose.ErrorHandlerFunc(func(err error) {
		errs = append(errs, err)
		logger.Error("demo error", "error", err)
	})

	start := time.Now()
	err = lp.DispatchWait(ctx, func() {
		var err error
		st, err = store.New("demo",
			store.WithPlugins(store.LogPlugin(logger)),
			store.WithErrorHandler(handler))
		if err != nil {
			errs = append(errs, err)
			return
		}

		ticks := stream.Interval(interval, lp)
		counter, err = compose.NewService(nil, counterService(st, ticks, interval),
			compose.WithName("counter"), compose.WithErrorHandler(handler))
		if err != nil {
			errs = append(errs, err)
			return
		}

		resolver := compose.ResolverFunc(func(token any) (any, error) {
			if token == counterToken {
				return counter.Value(), nil
			}
			return nil, compose.ErrNotProvided
		})
		tree = newTriangle("triangle", cfg.Demo.Depth, resolver, handler, &renders)
		tree.mount(0, 0, rootSize(cfg.Demo.Depth))
	})
	if err != nil {
		return demoSummary{}, errors.FromError(err, "E161")
	}

	var serveErr error
	select {
	case <-runCtx.Done():
	case serveErr = <-devErr:
	}

	var summary demoSummary
	err = lp.DispatchWait(context.Background(), func() {
		summary = demoSummary{
			elapsed: time.Since(start),
			renders: renders.Load(),
		}
		if tree != nil {
			summary.views = tree.count()
			tree.destroy()
		}
		if st != nil {
			snap := st.Snapshot()
			summary.ticks, _ = snap["ticks"].(int)
			summary.count, _ = snap["count"].(int)
		}
		if counter != nil {
			counter.Destroy()
		}
		if st != nil {
			st.Destroy()
		}
	})
	if err != nil {
		logger.Warn("demo teardown skipped", "error", err)
	}
	summary.loop = lp.Stats()
	summary.events = bus.Stats()

	if serveErr != nil {
		return summary, errors.New("E142").WithDetail(serveErr.Error()).Wrap(serveErr)
	}
	if len(errs) > 0 {
		return summary, errors.FromError(stderrors.Join(errs...), "E161")
	}
	if err := ctx.Err(); err != nil && !stderrors.Is(err, context.DeadlineExceeded) {
		return summary, errors.FromError(err, "E161")
	}
	return summary, nil
}
