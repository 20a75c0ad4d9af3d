package compose

import (
	"sync"
	"time"

	"github.com/vango-dev/compose/pkg/stream"
)

// testHost counts renders.
type testHost struct {
	mu       sync.Mutex
	renders  int
	checks   int
	detached bool
	onRender func()
	err      error
}

func (h *testHost) DetectChanges() error {
	h.mu.Lock()
	h.renders++
	fn := h.onRender
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.err
}

func (h *testHost) CheckNoChanges() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks++
	return nil
}

func (h *testHost) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detached = true
}

func (h *testHost) renderCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renders
}

// errorRecorder collects reported errors.
type errorRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errorRecorder) HandleError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errorRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func (r *errorRecorder) last() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func mount(v *View) {
	v.DoCheck()
	v.ContentChecked()
	v.ViewChecked()
}

func collect[T any](dst *[]T) Observer[T] {
	return Next(func(v T) Cleanup {
		*dst = append(*dst, v)
		return nil
	})
}

// manualClock hands out tickers the test fires by hand.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

func (c *manualClock) NewTicker(time.Duration) stream.Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// tick fires every live ticker and reports how many received it.
func (c *manualClock) tick() int {
	c.mu.Lock()
	tickers := append([]*manualTicker(nil), c.tickers...)
	c.mu.Unlock()

	n := 0
	for _, t := range tickers {
		select {
		case t.ch <- time.Now():
			n++
		case <-t.stopped:
		}
	}
	return n
}

// queueDispatcher lets the test goroutine run dispatched work.
type queueDispatcher struct {
	ch chan func()
}

func newQueueDispatcher() *queueDispatcher {
	return &queueDispatcher{ch: make(chan func(), 64)}
}

func (d *queueDispatcher) Dispatch(fn func()) { d.ch <- fn }

func (d *queueDispatcher) runNext() bool {
	select {
	case fn := <-d.ch:
		fn()
		return true
	case <-time.After(time.Second):
		return false
	}
}
