package compose

import (
	"runtime"
	"sync"
)

// trackingContext holds the ambient reactive state of one goroutine.
type trackingContext struct {
	// scope is the active Scope. Context-scoped operations act on it.
	scope *Scope

	// tracker is the Computed currently evaluating. Reads of cells and
	// computeds register themselves with it. nil means reads are untracked.
	tracker tracker
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns the id of the calling goroutine, parsed from the
// header of its stack trace ("goroutine <id> [...]").
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

func loadTrackingContext() *trackingContext {
	if ctx, ok := trackingContexts.Load(getGoroutineID()); ok {
		return ctx.(*trackingContext)
	}
	return nil
}

// updateTrackingContext applies fn to the goroutine's context. The entry
// is dropped once it holds nothing, so short-lived goroutines do not leak
// map entries.
func updateTrackingContext(fn func(ctx *trackingContext)) {
	gid := getGoroutineID()
	var ctx *trackingContext
	if v, ok := trackingContexts.Load(gid); ok {
		ctx = v.(*trackingContext)
	} else {
		ctx = &trackingContext{}
		trackingContexts.Store(gid, ctx)
	}
	fn(ctx)
	if ctx.scope == nil && ctx.tracker == nil {
		trackingContexts.CompareAndDelete(gid, ctx)
	}
}

func currentScope() *Scope {
	if ctx := loadTrackingContext(); ctx != nil {
		return ctx.scope
	}
	return nil
}

func setCurrentScope(s *Scope) (old *Scope) {
	updateTrackingContext(func(ctx *trackingContext) {
		old, ctx.scope = ctx.scope, s
	})
	return old
}

func currentTracker() tracker {
	if ctx := loadTrackingContext(); ctx != nil {
		return ctx.tracker
	}
	return nil
}

func setCurrentTracker(t tracker) (old tracker) {
	updateTrackingContext(func(ctx *trackingContext) {
		old, ctx.tracker = ctx.tracker, t
	})
	return old
}

// CurrentScope returns the Scope active on the calling goroutine, or nil.
func CurrentScope() *Scope {
	return currentScope()
}

// RunInScope runs fn with s as the active Scope and restores the previous
// Scope on every exit path, including panics. A nil s runs fn with no
// active Scope.
//
// Scopes do not follow goroutines. Code started with go must call
// RunInScope itself:
//
//	s := compose.CurrentScope()
//	go func() {
//	    compose.RunInScope(s, func() {
//	        // AddTeardown etc. act on s here
//	    })
//	}()
func RunInScope(s *Scope, fn func()) {
	old := setCurrentScope(s)
	defer setCurrentScope(old)
	fn()
}

// Untracked runs fn without recording reads as dependencies of the
// Computed currently evaluating.
func Untracked(fn func()) {
	old := setCurrentTracker(nil)
	defer setCurrentTracker(old)
	fn()
}
