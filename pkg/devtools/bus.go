package devtools

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/compose/pkg/compose"
)

// EventType names a runtime event.
type EventType string

const (
	EventFlushStarted     EventType = "flush-started"
	EventFlushFinished    EventType = "flush-finished"
	EventRender           EventType = "render"
	EventEffectError      EventType = "effect-error"
	EventEffectSubscribed EventType = "effect-subscribed"
	EventEffectDisposed   EventType = "effect-disposed"
)

// Event is a runtime event as sent to devtools clients.
type Event struct {
	Type     EventType `json:"type"`
	Time     time.Time `json:"time"`
	Host     string    `json:"host,omitempty"`
	Duration float64   `json:"durationMs,omitempty"`
	Pending  int       `json:"pending,omitempty"`
	Renders  int       `json:"renders,omitempty"`
	EffectID uint64    `json:"effectId,omitempty"`
	Handled  bool      `json:"handled,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Stats are running totals kept by a Bus.
type Stats struct {
	Flushes       uint64 `json:"flushes"`
	Renders       uint64 `json:"renders"`
	RenderErrors  uint64 `json:"renderErrors"`
	EffectErrors  uint64 `json:"effectErrors"`
	EffectsActive int64  `json:"effectsActive"`
	Subscribers   int    `json:"subscribers"`
	Dropped       uint64 `json:"dropped"`
}

// Bus is a compose.Instrumentation that fans runtime events out to
// subscribers. Publishing never blocks the reactive thread: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64

	flushes       atomic.Uint64
	renders       atomic.Uint64
	renderErrors  atomic.Uint64
	effectErrors  atomic.Uint64
	effectsActive atomic.Int64
	dropped       atomic.Uint64

	now func() time.Time
}

var _ compose.Instrumentation = (*Bus)(nil)

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[uint64]chan Event),
		now:  time.Now,
	}
}

// Subscribe returns a channel receiving events and a function that
// cancels the subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Stats returns the running totals.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	subs := len(b.subs)
	b.mu.RUnlock()

	return Stats{
		Flushes:       b.flushes.Load(),
		Renders:       b.renders.Load(),
		RenderErrors:  b.renderErrors.Load(),
		EffectErrors:  b.effectErrors.Load(),
		EffectsActive: b.effectsActive.Load(),
		Subscribers:   subs,
		Dropped:       b.dropped.Load(),
	}
}

func (b *Bus) publish(e Event) {
	e.Time = b.now()

	// The read lock is held while sending so cancel cannot close a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// FlushStarted implements compose.Instrumentation.
func (b *Bus) FlushStarted(pending int) {
	b.publish(Event{Type: EventFlushStarted, Pending: pending})
}

// FlushFinished implements compose.Instrumentation.
func (b *Bus) FlushFinished(renders int, d time.Duration) {
	b.flushes.Add(1)
	b.publish(Event{Type: EventFlushFinished, Renders: renders, Duration: millis(d)})
}

// RenderFinished implements compose.Instrumentation.
func (b *Bus) RenderFinished(host string, d time.Duration, err error) {
	b.renders.Add(1)
	e := Event{Type: EventRender, Host: host, Duration: millis(d)}
	if err != nil {
		b.renderErrors.Add(1)
		e.Error = err.Error()
	}
	b.publish(e)
}

// EffectError implements compose.Instrumentation.
func (b *Bus) EffectError(effectID uint64, err error, handled bool) {
	b.effectErrors.Add(1)
	b.publish(Event{Type: EventEffectError, EffectID: effectID, Handled: handled, Error: err.Error()})
}

// EffectSubscribed implements compose.Instrumentation.
func (b *Bus) EffectSubscribed(effectID uint64) {
	b.effectsActive.Add(1)
	b.publish(Event{Type: EventEffectSubscribed, EffectID: effectID})
}

// EffectDisposed implements compose.Instrumentation.
func (b *Bus) EffectDisposed(effectID uint64) {
	b.effectsActive.Add(-1)
	b.publish(Event{Type: EventEffectDisposed, EffectID: effectID})
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
