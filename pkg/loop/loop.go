// Package loop runs compose reactions on a single goroutine.
//
// Cells, effects and hosts are not safe for concurrent writers. Code running
// on other goroutines (timers, network reads, database calls) hands its
// writes to a Loop, which executes them one at a time inside a
// compose.Batch so every turn ends with at most one render per dirty host.
//
//	l := loop.New(loop.Config{})
//	go l.Run(ctx)
//
//	go func() {
//	    user, err := db.FindUser(ctx, id)
//	    l.Dispatch(func() {
//	        if err != nil {
//	            lastError.Set(err)
//	            return
//	        }
//	        current.Set(user)
//	    })
//	}()
package loop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/compose/pkg/compose"
)

// DefaultQueueSize is the dispatch buffer used when Config.QueueSize is 0.
const DefaultQueueSize = 256

// ErrStopped is returned by Run after Stop and by DispatchWait on a
// stopped Loop.
var ErrStopped = errors.New("loop: stopped")

// Config configures a Loop.
type Config struct {
	// QueueSize bounds the number of pending dispatches. Dispatch drops
	// work when the queue is full.
	QueueSize int

	// Scope, if set, is the active compose Scope for every turn, so
	// dispatched functions may register effects and teardowns.
	Scope *compose.Scope

	// Logger receives panics and dropped dispatches. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Loop is a serial executor for reactive writes.
type Loop struct {
	dispatchCh chan func()
	done       chan struct{}
	stopOnce   sync.Once
	running    atomic.Bool
	closed     atomic.Bool

	scope  *compose.Scope
	logger *slog.Logger

	turns   atomic.Uint64
	panics  atomic.Uint64
	dropped atomic.Uint64
}

// New returns a Loop. Nothing runs until Run is called.
func New(cfg Config) *Loop {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		dispatchCh: make(chan func(), cfg.QueueSize),
		done:       make(chan struct{}),
		scope:      cfg.Scope,
		logger:     cfg.Logger.With("component", "loop"),
	}
}

// Run executes dispatched functions until ctx is done or Stop is called.
// It returns ctx.Err() or ErrStopped. Only one Run may be active. The
// Loop is stopped once Run returns, so later dispatches are rejected.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop: already running")
	}
	defer l.running.Store(false)
	defer l.Stop()

	for {
		select {
		case fn := <-l.dispatchCh:
			l.execute(fn)
		case <-l.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Dispatch queues fn to run on the loop. It never blocks: work dispatched
// to a stopped Loop or a full queue is dropped and logged.
func (l *Loop) Dispatch(fn func()) {
	if l.closed.Load() {
		return
	}
	select {
	case l.dispatchCh <- fn:
	case <-l.done:
	default:
		l.dropped.Add(1)
		l.logger.Warn("dispatch queue full, discarding callback")
	}
}

// DispatchWait queues fn and waits for it to finish.
func (l *Loop) DispatchWait(ctx context.Context, fn func()) error {
	if l.closed.Load() {
		return ErrStopped
	}
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.dispatchCh <- wrapped:
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run. Pending dispatches are discarded.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

// Done is closed by Stop.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stats reports counters since New.
type Stats struct {
	Turns   uint64
	Panics  uint64
	Dropped uint64
	Queued  int
}

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Turns:   l.turns.Load(),
		Panics:  l.panics.Load(),
		Dropped: l.dropped.Load(),
		Queued:  len(l.dispatchCh),
	}
}

// execute runs one turn. Writes made by fn flush once when it returns.
func (l *Loop) execute(fn func()) {
	l.turns.Add(1)
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	compose.Batch(func() {
		if l.scope == nil {
			fn()
			return
		}
		compose.RunInScope(l.scope, func() {
			fn()
			_ = compose.SubscribeQueued()
		})
	})
}
