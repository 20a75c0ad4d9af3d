package stream

import "sync"

// Func builds a Subscribable from a producer. It is an alias of New that
// reads better at call sites wrapping callback APIs.
func Func[T any](produce func(obs Observer[T]) func()) Subscribable[T] {
	return New(produce)
}

// Of emits each value in order and then completes.
func Of[T any](values ...T) Subscribable[T] {
	return New(func(obs Observer[T]) func() {
		for _, v := range values {
			obs.Next(v)
		}
		obs.Complete()
		return nil
	})
}

// Empty completes immediately.
func Empty[T any]() Subscribable[T] {
	return New(func(obs Observer[T]) func() {
		obs.Complete()
		return nil
	})
}

// Map applies fn to every value of src.
func Map[T, U any](src Subscribable[T], fn func(T) U) Subscribable[U] {
	return New(func(obs Observer[U]) func() {
		sub := src.Subscribe(Funcs[T]{
			NextFn:     func(v T) { obs.Next(fn(v)) },
			ErrorFn:    obs.Error,
			CompleteFn: obs.Complete,
		})
		return sub.Unsubscribe
	})
}

// Filter forwards only the values of src for which keep returns true.
func Filter[T any](src Subscribable[T], keep func(T) bool) Subscribable[T] {
	return New(func(obs Observer[T]) func() {
		sub := src.Subscribe(Funcs[T]{
			NextFn: func(v T) {
				if keep(v) {
					obs.Next(v)
				}
			},
			ErrorFn:    obs.Error,
			CompleteFn: obs.Complete,
		})
		return sub.Unsubscribe
	})
}

// Merge interleaves values from every source. It completes once all sources
// completed and errors as soon as one of them errors.
func Merge[T any](sources ...Subscribable[T]) Subscribable[T] {
	return New(func(obs Observer[T]) func() {
		if len(sources) == 0 {
			obs.Complete()
			return nil
		}

		var mu sync.Mutex
		active := len(sources)
		group := NewSubscription()
		for _, src := range sources {
			group.Add(src.Subscribe(Funcs[T]{
				NextFn:  obs.Next,
				ErrorFn: obs.Error,
				CompleteFn: func() {
					mu.Lock()
					active--
					done := active == 0
					mu.Unlock()
					if done {
						obs.Complete()
					}
				},
			}))
		}
		return group.Unsubscribe
	})
}

// Pair is a previous/current value pair emitted by Pairwise.
type Pair[T any] struct {
	Previous T
	Current  T
}

// Pairwise emits consecutive values of src as pairs. The first value is
// held back until a second one arrives.
func Pairwise[T any](src Subscribable[T]) Subscribable[Pair[T]] {
	return New(func(obs Observer[Pair[T]]) func() {
		var (
			prev    T
			hasPrev bool
		)
		sub := src.Subscribe(Funcs[T]{
			NextFn: func(v T) {
				if hasPrev {
					obs.Next(Pair[T]{Previous: prev, Current: v})
				}
				prev, hasPrev = v, true
			},
			ErrorFn:    obs.Error,
			CompleteFn: obs.Complete,
		})
		return sub.Unsubscribe
	})
}

// Take forwards the first n values of src and then completes.
func Take[T any](src Subscribable[T], n int) Subscribable[T] {
	return New(func(obs Observer[T]) func() {
		if n <= 0 {
			obs.Complete()
			return nil
		}

		var (
			mu    sync.Mutex
			count int
		)
		sub := src.Subscribe(Funcs[T]{
			NextFn: func(v T) {
				mu.Lock()
				count++
				c := count
				mu.Unlock()
				if c > n {
					return
				}
				obs.Next(v)
				if c == n {
					obs.Complete()
				}
			},
			ErrorFn:    obs.Error,
			CompleteFn: obs.Complete,
		})
		return sub.Unsubscribe
	})
}
