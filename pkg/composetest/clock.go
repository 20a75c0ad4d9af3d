package composetest

import (
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/compose/pkg/stream"
)

// ManualClock is a stream.Clock whose tickers only fire on Tick.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*ManualTicker
}

// NewManualClock returns a clock starting at the Unix epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(0, 0)}
}

// NewTicker implements stream.Clock.
func (c *ManualClock) NewTicker(d time.Duration) stream.Ticker {
	t := &ManualTicker{
		period:  d,
		ch:      make(chan time.Time),
		stopped: make(chan struct{}),
	}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick advances the clock and fires every live ticker once. It returns the
// number of tickers that received the tick. A ticker is live until its
// source is unsubscribed.
func (c *ManualClock) Tick() int {
	c.mu.Lock()
	c.now = c.now.Add(time.Second)
	now := c.now
	tickers := make([]*ManualTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.Stopped() {
			tickers = append(tickers, t)
		}
	}
	c.tickers = tickers
	c.mu.Unlock()

	n := 0
	for _, t := range tickers {
		if t.fire(now) {
			n++
		}
	}
	return n
}

// Live returns the number of tickers not yet stopped.
func (c *ManualClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// ManualTicker is the stream.Ticker handed out by ManualClock.
type ManualTicker struct {
	period  time.Duration
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

// C implements stream.Ticker.
func (t *ManualTicker) C() <-chan time.Time { return t.ch }

// Stop implements stream.Ticker.
func (t *ManualTicker) Stop() { t.once.Do(func() { close(t.stopped) }) }

// Period returns the period the ticker was created with.
func (t *ManualTicker) Period() time.Duration { return t.period }

// Stopped reports whether Stop was called.
func (t *ManualTicker) Stopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// fire blocks until the source receives now or the ticker stops.
func (t *ManualTicker) fire(now time.Time) bool {
	select {
	case t.ch <- now:
		return true
	case <-t.stopped:
		return false
	}
}

// QueueDispatcher is a stream.Dispatcher that holds work until the test
// goroutine runs it.
type QueueDispatcher struct {
	ch chan func()
}

// NewQueueDispatcher returns a dispatcher buffering up to 64 calls.
func NewQueueDispatcher() *QueueDispatcher {
	return &QueueDispatcher{ch: make(chan func(), 64)}
}

// Dispatch implements stream.Dispatcher.
func (d *QueueDispatcher) Dispatch(fn func()) {
	d.ch <- fn
}

// RunNext runs the next dispatched call, waiting up to a second for it.
func (d *QueueDispatcher) RunNext(t testing.TB) {
	t.Helper()
	select {
	case fn := <-d.ch:
		fn()
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched work")
	}
}

// RunPending runs every call already queued and returns how many ran.
func (d *QueueDispatcher) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-d.ch:
			fn()
			n++
		default:
			return n
		}
	}
}
