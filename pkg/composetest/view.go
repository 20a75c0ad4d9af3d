package composetest

import (
	"reflect"
	"strings"
	"testing"

	"github.com/vango-dev/compose/pkg/compose"
)

// ViewBuilder configures a view before mounting it.
type ViewBuilder struct {
	factory  func() compose.State
	props    compose.Props
	name     string
	resolver MapResolver
	host     *Host
}

// NewView starts building a view around factory.
func NewView(factory func() compose.State) *ViewBuilder {
	return &ViewBuilder{factory: factory, resolver: MapResolver{}}
}

// WithProps sets the host property bag. The default is an empty
// compose.MapProps.
func (b *ViewBuilder) WithProps(p compose.Props) *ViewBuilder {
	b.props = p
	return b
}

// WithName names the view.
func (b *ViewBuilder) WithName(name string) *ViewBuilder {
	b.name = name
	return b
}

// WithProvider makes value injectable under token.
func (b *ViewBuilder) WithProvider(token, value any) *ViewBuilder {
	b.resolver[token] = value
	return b
}

// WithHost uses h instead of a fresh Host.
func (b *ViewBuilder) WithHost(h *Host) *ViewBuilder {
	b.host = h
	return b
}

// Build creates the view without running any lifecycle hook.
func (b *ViewBuilder) Build(t testing.TB) *Mounted {
	t.Helper()
	m := &Mounted{
		Host:   b.host,
		Props:  b.props,
		Errors: &ErrorRecorder{},
	}
	if m.Host == nil {
		m.Host = &Host{}
	}
	if m.Props == nil {
		m.Props = compose.MapProps{}
	}

	opts := []compose.HostOption{
		compose.WithErrorHandler(m.Errors),
		compose.WithResolver(b.resolver),
	}
	if b.name != "" {
		opts = append(opts, compose.WithName(b.name))
	}
	m.View = compose.NewView(m.Host, m.Props, b.factory, opts...)
	t.Cleanup(m.View.Destroy)
	return m
}

// Mount builds the view and runs one update cycle.
func (b *ViewBuilder) Mount(t testing.TB) *Mounted {
	t.Helper()
	m := b.Build(t)
	m.Update()
	return m
}

// Mounted is a view under test together with its host.
type Mounted struct {
	View   *compose.View
	Host   *Host
	Props  compose.Props
	Errors *ErrorRecorder
}

// Update runs DoCheck, ContentChecked and ViewChecked, as a host does on
// every change detection pass.
func (m *Mounted) Update() {
	m.View.DoCheck()
	m.View.ContentChecked()
	m.View.ViewChecked()
}

// Renders returns the host render count.
func (m *Mounted) Renders() int {
	return m.Host.Renders()
}

// Destroy tears the view down.
func (m *Mounted) Destroy() {
	m.View.Destroy()
}

// ExpectRenders asserts the host rendered exactly n times.
func ExpectRenders(t testing.TB, m *Mounted, n int) {
	t.Helper()
	if got := m.Renders(); got != n {
		t.Errorf("expected %d renders, got %d", n, got)
	}
}

// ExpectProp asserts props[key] deep-equals want.
func ExpectProp(t testing.TB, props compose.Props, key string, want any) {
	t.Helper()
	if got := props.Get(key); !reflect.DeepEqual(got, want) {
		t.Errorf("expected prop %q to be %v (%T), got %v (%T)", key, want, want, got, got)
	}
}

// ExpectNoErrors asserts nothing was reported to r.
func ExpectNoErrors(t testing.TB, r *ErrorRecorder) {
	t.Helper()
	errs := r.Errors()
	if len(errs) == 0 {
		return
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	t.Errorf("expected no errors, got %d:\n%s", len(errs), truncate(strings.Join(msgs, "\n"), 500))
}

// truncate truncates a string to limit bytes with ellipsis.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
