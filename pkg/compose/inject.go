package compose

import "fmt"

// Resolver looks up dependencies by token. The runtime ships no container;
// hosts pass in whatever they already use.
type Resolver interface {
	Resolve(token any) (any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(token any) (any, error)

// Resolve calls f(token).
func (f ResolverFunc) Resolve(token any) (any, error) {
	return f(token)
}

// Token is a typed dependency key. Tokens compare by identity.
type Token[T any] struct {
	name string
}

// NewToken returns a new token. The name is only used in messages.
func NewToken[T any](name string) *Token[T] {
	return &Token[T]{name: name}
}

func (t *Token[T]) String() string {
	return "Token(" + t.name + ")"
}

// Resolve looks token up through the resolver of the active Scope.
// The resolver runs with no active Scope, so values it constructs do not
// attach themselves to the caller.
func Resolve(token any) (any, error) {
	s := currentScope()
	if s == nil {
		return nil, callContextError("Resolve")
	}
	r := s.resolver()
	if r == nil {
		return nil, &ResolveError{Token: token, Err: ErrNotProvided}
	}

	var (
		v   any
		err error
	)
	RunInScope(nil, func() {
		v, err = r.Resolve(token)
	})
	if err != nil {
		return nil, &ResolveError{Token: token, Err: err}
	}
	return v, nil
}

// Inject resolves tok and asserts the result to T.
func Inject[T any](tok *Token[T]) (T, error) {
	var zero T
	v, err := Resolve(tok)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &ResolveError{Token: tok, Err: fmt.Errorf("resolved %T, want %T", v, zero)}
	}
	return t, nil
}

// MustInject is Inject for factories, where a missing dependency is a
// programming error.
func MustInject[T any](tok *Token[T]) T {
	v, err := Inject(tok)
	if err != nil {
		panic(err)
	}
	return v
}
