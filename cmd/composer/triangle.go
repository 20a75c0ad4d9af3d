package main

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/vango-dev/compose/pkg/compose"
)

// targetSize is the edge length below which a triangle draws a dot.
const targetSize = 25.0

// counterToken provides the ticking counter to dots.
var counterToken = compose.NewToken[*compose.Cell[int]]("counter")

// triangle is one node of a Sierpinski tree of views. Inner nodes pass
// their inputs to three children on every render, the way a template
// would. Leaves inject the counter.
type triangle struct {
	view     *compose.View
	props    compose.MapProps
	children []*triangle
	renders  *atomic.Int64
}

// newTriangle builds a tree of the given depth. Depth 0 is a single dot.
func newTriangle(name string, depth int, resolver compose.Resolver, errs compose.ErrorHandler, renders *atomic.Int64) *triangle {
	t := &triangle{
		props:   compose.MapProps{},
		renders: renders,
	}
	if depth > 0 {
		for i := 0; i < 3; i++ {
			t.children = append(t.children,
				newTriangle(fmt.Sprintf("%s.%d", name, i), depth-1, resolver, errs, renders))
		}
	}

	leaf := depth == 0
	t.view = compose.NewView(t, t.props, func() compose.State {
		x := compose.NewCell(0.0)
		y := compose.NewCell(0.0)
		s := compose.NewCell(0.0)

		state := compose.State{
			"x":              x,
			"y":              y,
			"s":              s,
			"targetSize":     targetSize,
			"halfTargetSize": targetSize / 2,
			"halfS":          compose.NewComputed(func() float64 { return s.Get() / 2 }),
			"half2S":         compose.NewComputed(func() float64 { return s.Get() / 4 }),
			"isFinal":        compose.NewComputed(func() bool { return s.Get() < targetSize }),
		}
		if leaf {
			state["count"] = compose.MustInject(counterToken)
		}
		return state
	}, compose.WithName(name), compose.WithResolver(resolver), compose.WithErrorHandler(errs))
	return t
}

// rootSize is the edge length whose tree of the given depth ends in dots
// of half the target size.
func rootSize(depth int) float64 {
	return targetSize / 2 * math.Pow(2, float64(depth))
}

// mount sets the inputs and runs one check cycle.
func (t *triangle) mount(x, y, s float64) {
	t.props.Set("x", x)
	t.props.Set("y", y)
	t.props.Set("s", s)
	t.view.DoCheck()
	t.view.ContentChecked()
	t.view.ViewChecked()
}

// DetectChanges renders the triangle by pushing inputs to its children.
func (t *triangle) DetectChanges() error {
	t.renders.Add(1)
	if len(t.children) == 0 {
		return nil
	}

	x, _ := t.props.Get("x").(float64)
	y, _ := t.props.Get("y").(float64)
	half, _ := t.props.Get("halfS").(float64)
	inputs := [3][2]float64{
		{x, y - half/2},
		{x - half, y + half/2},
		{x + half, y + half/2},
	}
	for i, c := range t.children {
		c.mount(inputs[i][0], inputs[i][1], half)
	}
	return nil
}

// destroy tears the tree down, leaves first.
func (t *triangle) destroy() {
	for _, c := range t.children {
		c.destroy()
	}
	t.view.Destroy()
}

// count returns the number of views in the tree.
func (t *triangle) count() int {
	n := 1
	for _, c := range t.children {
		n += c.count()
	}
	return n
}

// dots returns the leaves.
func (t *triangle) dots() []*triangle {
	if len(t.children) == 0 {
		return []*triangle{t}
	}
	var out []*triangle
	for _, c := range t.children {
		out = append(out, c.dots()...)
	}
	return out
}
