package compose

import "fmt"

// Option configures a Cell, Computed or Accessor.
type Option func(*valueOptions)

type valueOptions struct {
	equals   any
	phase    CheckPhase
	phaseSet bool
}

// WithEquals replaces the default strict equality. The function type must
// match the value type; a mismatch panics at construction.
func WithEquals[T any](fn func(a, b T) bool) Option {
	return func(o *valueOptions) {
		o.equals = fn
	}
}

// WithPhase selects the check phase a bound value reconciles in.
// The default is DoCheck.
func WithPhase(p CheckPhase) Option {
	return func(o *valueOptions) {
		o.phase = p
		o.phaseSet = true
	}
}

func applyValueOptions(opts []Option) valueOptions {
	var o valueOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func equalsFor[T any](o valueOptions) func(a, b T) bool {
	if o.equals == nil {
		return defaultEquals[T]
	}
	fn, ok := o.equals.(func(a, b T) bool)
	if !ok {
		var zero T
		panic(fmt.Sprintf("compose: WithEquals got %T for value type %T", o.equals, zero))
	}
	return fn
}

// hostConfig is shared by View and Service construction.
type hostConfig struct {
	name     string
	errors   ErrorHandler
	resolver Resolver
}

// effectConfig is built from EffectOptions.
type effectConfig struct {
	name   string
	errors ErrorHandler
	cancel cancellation
}

// HostOption configures a View or Service.
type HostOption interface {
	applyHost(*hostConfig)
}

// EffectOption configures an EffectObserver.
type EffectOption interface {
	applyEffect(*effectConfig)
}

// SharedOption applies to both hosts and effects.
type SharedOption interface {
	HostOption
	EffectOption
}

type nameOption string

func (n nameOption) applyHost(c *hostConfig)     { c.name = string(n) }
func (n nameOption) applyEffect(c *effectConfig) { c.name = string(n) }

// WithName names a host or effect in logs, metrics and traces.
func WithName(name string) SharedOption {
	return nameOption(name)
}

type errorHandlerOption struct {
	h ErrorHandler
}

func (o errorHandlerOption) applyHost(c *hostConfig)     { c.errors = o.h }
func (o errorHandlerOption) applyEffect(c *effectConfig) { c.errors = o.h }

// WithErrorHandler sets the handler escalated errors are reported to.
// Effects otherwise capture the handler of the scope they are created in.
func WithErrorHandler(h ErrorHandler) SharedOption {
	return errorHandlerOption{h: h}
}

type resolverOption struct {
	r Resolver
}

func (o resolverOption) applyHost(c *hostConfig) { c.resolver = o.r }

// WithResolver sets the resolver Inject uses inside a View.
func WithResolver(r Resolver) HostOption {
	return resolverOption{r: r}
}

func applyHostOptions(opts []HostOption) hostConfig {
	var c hostConfig
	for _, opt := range opts {
		if opt != nil {
			opt.applyHost(&c)
		}
	}
	if c.errors == nil {
		c.errors = DefaultErrorHandler()
	}
	return c
}
