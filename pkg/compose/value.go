package compose

import "github.com/vango-dev/compose/pkg/stream"

// Kind tags the reactive primitives.
type Kind int

const (
	KindCell Kind = iota
	KindEmitter
	KindComputed
	KindAccessor
)

func (k Kind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindEmitter:
		return "emitter"
	case KindComputed:
		return "computed"
	case KindAccessor:
		return "accessor"
	default:
		return "unknown"
	}
}

// Readable is a value that can be read synchronously and observed.
// Cell, Computed and Accessor implement it.
type Readable[T any] interface {
	Get() T
	Subscribe(obs stream.Observer[T]) *stream.Subscription
}

// Writable accepts writes. Cell, Emitter, Accessor and WriterFunc
// implement it.
type Writable[T any] interface {
	Next(value T)
}

// WriterFunc adapts a function to Writable.
type WriterFunc[T any] func(value T)

// Next calls f(value).
func (f WriterFunc[T]) Next(value T) {
	f(value)
}

// Reactive is implemented by every primitive.
type Reactive interface {
	Kind() Kind
}

// checkSubject is the capability binding glue needs to keep a host
// property and a reactive value in sync.
type checkSubject interface {
	Reactive
	checkPhase() CheckPhase
	currentAny() any
	// differsAny reports whether a host-side value should be written back.
	// Read-only subjects always report false.
	differsAny(v any) bool
	assignAny(v any)
	subscribeAny(next func(any), fail func(error)) *stream.Subscription
	notifyChange(previous, current any)
}

// convertAny converts a host-side value to T. nil converts to the zero
// value.
func convertAny[T any](v any) (T, bool) {
	if v == nil {
		var zero T
		return zero, true
	}
	t, ok := v.(T)
	return t, ok
}

// changeHandlers holds OnChange callbacks in registration order.
type changeHandlers[T any] struct {
	nextID   uint64
	handlers []changeHandler[T]
}

type changeHandler[T any] struct {
	id uint64
	fn func(previous, current T)
}

func (h *changeHandlers[T]) add(fn func(previous, current T)) uint64 {
	h.nextID++
	h.handlers = append(h.handlers, changeHandler[T]{id: h.nextID, fn: fn})
	return h.nextID
}

func (h *changeHandlers[T]) remove(id uint64) {
	for i, ch := range h.handlers {
		if ch.id == id {
			h.handlers = append(h.handlers[:i], h.handlers[i+1:]...)
			return
		}
	}
}

func (h *changeHandlers[T]) snapshot() []changeHandler[T] {
	out := make([]changeHandler[T], len(h.handlers))
	copy(out, h.handlers)
	return out
}
