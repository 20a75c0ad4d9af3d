// Package compose is a fine-grained reactive state runtime that binds
// application state to a host component's update lifecycle.
//
// A factory function runs once per host instance inside a fresh Scope and
// returns a State record of reactive values. Each Cell, Computed or
// Accessor in the record is bound to the host property of the same name
// and kept in sync in both directions. Writes mark the host's Scheduler
// dirty; Flush renders every dirty host once.
//
// # Primitives
//
// Cell[T] is a dirty-checked value that replays to new subscribers:
//
//	count := compose.NewCell(0)
//	count.Set(1)
//	count.Update(func(n int) int { return n + 1 })
//
// Emitter[T] is a stateless multicast channel. Computed[T] derives a value
// from other values and re-runs its whole function when one of them
// changes. Accessor[T, U] reads from one source and writes to another.
//
// # Effects
//
// Subscribe and Watch register an EffectObserver. Each reaction runs in
// the effect's own Scope, and whatever it registered is released before
// the next one:
//
//	compose.Watch(func() compose.Cleanup {
//	    t := time.AfterFunc(time.Second, func() { log.Println(count.Get()) })
//	    return func() { t.Stop() }
//	})
//
// Effects created inside a Scope are disposed with it unless Detached,
// AbortWith or GroupWith say otherwise.
//
// # Hosts
//
//	v := compose.NewView(host, compose.MapProps{}, func() compose.State {
//	    n := compose.NewCell(0)
//	    return compose.State{"count": n}
//	})
//	v.DoCheck()
//	v.ContentChecked()
//	v.ViewChecked() // mounted: queued effects subscribe, dirty hosts render
//	v.Destroy()
//
// Services are hosts without a view; their effects subscribe as soon as
// the factory returns.
//
// # Threading
//
// The active Scope is tracked per goroutine. Reactions are synchronous and
// meant to run on one goroutine at a time; asynchronous sources should
// deliver through a stream.Dispatcher such as the one in package loop.
package compose
