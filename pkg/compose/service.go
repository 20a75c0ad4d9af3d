package compose

import "fmt"

// Service is a non-visual host. Its factory runs once at construction and
// its effects subscribe immediately afterwards.
type Service[T any] struct {
	name  string
	scope *Scope
	value T
}

// NewService runs factory inside a new service Scope using resolver for
// Inject. A panic in factory disposes the Scope and is returned as an
// error.
func NewService[T any](resolver Resolver, factory func() T, opts ...HostOption) (svc *Service[T], err error) {
	cfg := applyHostOptions(opts)
	if cfg.resolver == nil {
		cfg.resolver = resolver
	}

	scope := newScope(ServiceScope, nil)
	scope.errors = cfg.errors
	scope.resolv = cfg.resolver

	name := cfg.name
	if name == "" {
		name = fmt.Sprintf("service-%d", scope.ID())
	}
	svc = &Service[T]{name: name, scope: scope}

	defer func() {
		if r := recover(); r != nil {
			scope.dispose()
			svc, err = nil, fmt.Errorf("compose: service %s: %w", name, asError(r))
		}
	}()

	Batch(func() {
		RunInScope(scope, func() {
			svc.value = factory()
			scope.activateQueued()
		})
	})
	return svc, nil
}

// Name returns the service name.
func (s *Service[T]) Name() string { return s.name }

// Value returns what the factory returned.
func (s *Service[T]) Value() T { return s.value }

// Scope returns the service Scope.
func (s *Service[T]) Scope() *Scope { return s.scope }

// RunIn runs fn inside the service Scope and subscribes the effects it
// registered.
func (s *Service[T]) RunIn(fn func()) {
	Batch(func() {
		RunInScope(s.scope, func() {
			fn()
			s.scope.activateQueued()
		})
	})
}

// Destroy disposes the service Scope. Calling it again is a no-op.
func (s *Service[T]) Destroy() {
	s.scope.dispose()
}

// Destroyed reports whether Destroy was called.
func (s *Service[T]) Destroyed() bool {
	return s.scope.Disposed()
}
