package compose

import "github.com/vango-dev/compose/pkg/stream"

// FromStream returns a Cell holding initial and then every value src
// emits. src is subscribed by an effect registered in the active Scope,
// so inside a View it starts once the View is mounted.
func FromStream[T any](src stream.Subscribable[T], initial T, opts ...Option) *Cell[T] {
	cell := NewCell(initial, opts...)
	Subscribe(src, Next(func(v T) Cleanup {
		cell.Set(v)
		return nil
	}))
	return cell
}

// Pipe applies a stream operator chain to src and holds the result in a
// Cell, like FromStream.
//
//	evens := compose.Pipe[int, int](count, 0, func(s stream.Subscribable[int]) stream.Subscribable[int] {
//	    return stream.Filter(s, func(n int) bool { return n%2 == 0 })
//	})
func Pipe[T, U any](src stream.Subscribable[T], initial U, op func(stream.Subscribable[T]) stream.Subscribable[U], opts ...Option) *Cell[U] {
	return FromStream(op(src), initial, opts...)
}
