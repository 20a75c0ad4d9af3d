package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vango-dev/compose/internal/errors"
	"github.com/vango-dev/compose/pkg/compose"
)

// Bench modes.
const (
	modeEffects = "effects"
	modeViews   = "views"
)

func benchCmd(a *app) *cobra.Command {
	var (
		widths  []int
		heights []int
		iters   int
		mode    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure propagation through computed chains",
		Long: `Measure how long one write takes to propagate.

Each case builds width chains of height computed values on a shared
source cell. In effects mode every chain ends in a watch effect; in
views mode every chain is bound to a view that renders on change.

Examples:
  composer bench
  composer bench --width 1,10 --height 100 --iters 500
  composer bench --mode views`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if !cmd.Flags().Changed("width") {
				widths = cfg.Bench.Widths
			}
			if !cmd.Flags().Changed("height") {
				heights = cfg.Bench.Heights
			}
			if !cmd.Flags().Changed("iters") {
				iters = cfg.Bench.Iterations
			}
			for _, n := range append(append([]int{iters}, widths...), heights...) {
				if n <= 0 {
					return errors.New("E140").
						WithDetail("--width, --height and --iters must be positive")
				}
			}
			if mode != modeEffects && mode != modeViews {
				return errors.New("E140").
					WithDetail(fmt.Sprintf("--mode is %q", mode)).
					WithSuggestion("Use --mode effects or --mode views")
			}

			a.logger.Debug("bench starting", "mode", mode, "widths", widths, "heights", heights, "iters", iters)
			results, err := runBench(mode, widths, heights, iters)
			if err != nil {
				return err
			}
			renderResults(cmd.OutOrStdout(), mode, results)
			return nil
		},
	}

	cmd.Flags().IntSliceVarP(&widths, "width", "w", nil, "Chains per case (default from compose.json)")
	cmd.Flags().IntSliceVarP(&heights, "height", "H", nil, "Chain length per case (default from compose.json)")
	cmd.Flags().IntVarP(&iters, "iters", "n", 0, "Writes measured per case (default from compose.json)")
	cmd.Flags().StringVarP(&mode, "mode", "m", modeEffects, "Chain sink: effects or views")

	return cmd
}

// benchResult is one measured case.
type benchResult struct {
	width, height int
	calc          *tachymeter.Metrics
	reactions     int64
}

func runBench(mode string, widths, heights []int, iters int) ([]benchResult, error) {
	var results []benchResult
	for _, w := range widths {
		for _, h := range heights {
			r, err := benchCase(mode, w, h, iters)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// benchCase builds one graph, writes its source iters times and tears it
// down again.
func benchCase(mode string, width, height, iters int) (benchResult, error) {
	var (
		errs      []error
		reactions atomic.Int64
	)
	handler := compose.ErrorHandlerFunc(func(err error) { errs = append(errs, err) })

	src := compose.NewCell(1)
	chain := func() *compose.Computed[int] {
		var last compose.Readable[int] = src
		var c *compose.Computed[int]
		for j := 0; j < height; j++ {
			prev := last
			c = compose.NewComputed(func() int { return prev.Get() + 1 })
			last = c
		}
		return c
	}

	var teardown func()
	switch mode {
	case modeViews:
		views := make([]*compose.View, 0, width)
		for i := 0; i < width; i++ {
			host := &countingHost{renders: &reactions}
			v := compose.NewView(host, nil, func() compose.State {
				return compose.State{"value": chain()}
			}, compose.WithName(fmt.Sprintf("chain-%d", i)), compose.WithErrorHandler(handler))
			v.DoCheck()
			v.ContentChecked()
			v.ViewChecked()
			views = append(views, v)
		}
		teardown = func() {
			for _, v := range views {
				v.Destroy()
			}
		}

	default:
		svc, err := compose.NewService[struct{}](nil, func() struct{} {
			for i := 0; i < width; i++ {
				last := chain()
				compose.Watch(func() compose.Cleanup {
					last.Get()
					reactions.Add(1)
					return nil
				})
			}
			return struct{}{}
		}, compose.WithName("bench"), compose.WithErrorHandler(handler))
		if err != nil {
			return benchResult{}, errors.FromError(err, "E160")
		}
		teardown = svc.Destroy
	}
	defer teardown()

	reactions.Store(0)
	tach := tachymeter.New(&tachymeter.Config{Size: iters})
	for i := 0; i < iters; i++ {
		start := time.Now()
		src.Set(src.Peek() + 1)
		tach.AddTime(time.Since(start))
	}

	if len(errs) > 0 {
		return benchResult{}, errors.FromError(errs[0], "E160")
	}
	return benchResult{
		width:     width,
		height:    height,
		calc:      tach.Calc(),
		reactions: reactions.Load(),
	}, nil
}

func renderResults(w io.Writer, mode string, results []benchResult) {
	tbl := table.NewWriter()
	tbl.SetTitle(fmt.Sprintf("compose propagation (%s)", mode))
	tbl.SetOutputMirror(w)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "reactions"})

	var total int64
	for _, r := range results {
		total += r.reactions
		tbl.AppendRow(table.Row{
			fmt.Sprintf("propagate: %d * %d", r.width, r.height),
			r.calc.Time.Avg,
			r.calc.Time.Min,
			r.calc.Time.P75,
			r.calc.Time.P99,
			r.calc.Time.Max,
			humanize.Comma(r.reactions),
		})
	}
	tbl.AppendFooter(table.Row{"total", "", "", "", "", "", humanize.Comma(total)})
	tbl.Render()
}

// countingHost renders by counting.
type countingHost struct {
	renders *atomic.Int64
}

func (h *countingHost) DetectChanges() error {
	h.renders.Add(1)
	return nil
}

func (h *countingHost) CheckNoChanges() error { return nil }
