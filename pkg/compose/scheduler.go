package compose

import (
	"fmt"
	"sync"
	"time"

	"github.com/vango-dev/compose/pkg/stream"
)

// ChangeDetector is the host's render primitive.
type ChangeDetector interface {
	DetectChanges() error
}

// ChangeDetectorFunc adapts a function to ChangeDetector.
type ChangeDetectorFunc func() error

// DetectChanges calls f.
func (f ChangeDetectorFunc) DetectChanges() error {
	return f()
}

// NoChangesChecker is implemented by hosts that can verify a render left
// nothing dirty. It is called after each render in DevMode.
type NoChangesChecker interface {
	CheckNoChanges() error
}

// Detacher is implemented by hosts with their own change detection. The
// Scheduler detaches them on construction and renders them on demand.
type Detacher interface {
	Detach()
}

// RenderPhase is emitted on Scheduler.Events around each render.
type RenderPhase int

const (
	BeforeRender RenderPhase = iota
	AfterRender
)

func (p RenderPhase) String() string {
	if p == BeforeRender {
		return "before-render"
	}
	return "after-render"
}

// Scheduler tracks whether one host needs rendering.
//
// MarkDirty enqueues the Scheduler into the process-wide dirty set; Flush
// renders every queued Scheduler once. A closed Scheduler ignores marks.
type Scheduler struct {
	id     uint64
	name   string
	host   ChangeDetector
	errors ErrorHandler
	events *stream.Subject[RenderPhase]

	mu      sync.Mutex
	dirty   bool
	closed  bool
	renders int
}

// NewScheduler returns a clean Scheduler for host. host may be nil, in
// which case renders only emit events.
func NewScheduler(name string, host ChangeDetector, errs ErrorHandler) *Scheduler {
	if errs == nil {
		errs = DefaultErrorHandler()
	}
	id := nextID()
	if name == "" {
		name = fmt.Sprintf("scheduler-%d", id)
	}
	return &Scheduler{
		id:     id,
		name:   name,
		host:   host,
		errors: errs,
		events: stream.NewSubject[RenderPhase](),
	}
}

// ID returns the scheduler's unique identifier.
func (s *Scheduler) ID() uint64 { return s.id }

// Name returns the scheduler's name, used in logs and metrics.
func (s *Scheduler) Name() string { return s.name }

// Events emits BeforeRender and AfterRender around every render.
func (s *Scheduler) Events() stream.Subscribable[RenderPhase] { return s.events }

// Dirty reports whether a render is pending.
func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Closed reports whether the Scheduler was closed.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MarkDirty schedules a render. It is a no-op while already dirty or
// after Close.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	if s.closed || s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = true
	s.mu.Unlock()

	dirtySet.add(s)
}

// Close leaves the dirty set and rejects later marks.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.dirty = false
	s.mu.Unlock()

	dirtySet.remove(s)
	s.events.Complete()
}

// Unsubscribe closes the Scheduler so a Scope registry can own it.
func (s *Scheduler) Unsubscribe() {
	s.Close()
}

// detectChanges renders the host if it is dirty. It reports whether a
// render happened.
func (s *Scheduler) detectChanges() bool {
	limit := CurrentConfig().MaxRendersPerFlush

	s.mu.Lock()
	if !s.dirty || s.closed {
		s.mu.Unlock()
		return false
	}
	// Cleared before rendering so marks raised by the render re-queue.
	s.dirty = false
	s.renders++
	renders := s.renders
	s.mu.Unlock()

	if renders > limit {
		if renders == limit+1 {
			s.errors.HandleError(fmt.Errorf("%w: %s rendered %d times in one flush", ErrRenderBudget, s.name, limit))
		}
		return false
	}

	start := time.Now()
	err := s.render()
	instrumentation().RenderFinished(s.name, time.Since(start), err)
	if err != nil {
		s.errors.HandleError(err)
	}
	return true
}

func (s *Scheduler) render() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = asError(r)
		}
	}()

	s.events.Next(BeforeRender)
	if s.host != nil {
		if err := s.host.DetectChanges(); err != nil {
			return err
		}
		if CurrentConfig().DevMode {
			if c, ok := s.host.(NoChangesChecker); ok {
				if err := c.CheckNoChanges(); err != nil {
					return err
				}
			}
		}
	}
	s.events.Next(AfterRender)
	return nil
}

func (s *Scheduler) resetRenders() {
	s.mu.Lock()
	s.renders = 0
	s.mu.Unlock()
}

type flushState int

const (
	flushIdle flushState = iota
	flushFlushing
)

// dirtyQueue is the process-wide ordered set of dirty Schedulers.
type dirtyQueue struct {
	mu    sync.Mutex
	queue []*Scheduler
	state flushState
}

var dirtySet dirtyQueue

func (q *dirtyQueue) add(s *Scheduler) {
	q.mu.Lock()
	q.queue = append(q.queue, s)
	q.mu.Unlock()
}

// remove drops s while idle. During a flush the walk skips closed
// Schedulers instead, so indices stay stable.
func (q *dirtyQueue) remove(s *Scheduler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == flushFlushing {
		return
	}
	for i, queued := range q.queue {
		if queued == s {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}

func (q *dirtyQueue) at(i int) (*Scheduler, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if i >= len(q.queue) {
		return nil, false
	}
	return q.queue[i], true
}

// Pending returns the number of Schedulers waiting in the dirty set.
func Pending() int {
	dirtySet.mu.Lock()
	defer dirtySet.mu.Unlock()
	return len(dirtySet.queue)
}

// Flush renders every dirty Scheduler once, in the order they were marked.
//
// Schedulers marked while the flush runs are appended and rendered by the
// same flush. A Flush called during a flush returns immediately. Flushing
// with nothing dirty is a no-op.
func Flush() {
	dirtySet.mu.Lock()
	if dirtySet.state == flushFlushing || len(dirtySet.queue) == 0 {
		dirtySet.mu.Unlock()
		return
	}
	dirtySet.state = flushFlushing
	pending := len(dirtySet.queue)
	dirtySet.mu.Unlock()

	inst := instrumentation()
	inst.FlushStarted(pending)
	start := time.Now()

	renders := 0
	visited := make(map[*Scheduler]struct{}, pending)
	defer func() {
		dirtySet.mu.Lock()
		dirtySet.queue = nil
		dirtySet.state = flushIdle
		dirtySet.mu.Unlock()

		for s := range visited {
			s.resetRenders()
		}
		inst.FlushFinished(renders, time.Since(start))
	}()

	for i := 0; ; i++ {
		s, ok := dirtySet.at(i)
		if !ok {
			break
		}
		visited[s] = struct{}{}
		if s.detectChanges() {
			renders++
		}
	}
}
