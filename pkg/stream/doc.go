// Package stream is the minimal push-based stream contract the reactive
// runtime is built on.
//
// Everything in this package is synchronous: a call to Next on a Subject
// returns only after every current observer has handled the value. The only
// asynchronous sources are Interval and Timer, and they deliver through a
// Dispatcher so notifications still arrive on the caller's reactive thread.
//
// # Core Types
//
// Observer[T] receives next/error/complete notifications:
//
//	obs := stream.Funcs[int]{
//	    NextFn:  func(v int) { fmt.Println(v) },
//	    ErrorFn: func(err error) { log.Println(err) },
//	}
//
// Subscription is an idempotent teardown group:
//
//	sub := src.Subscribe(obs)
//	sub.AddFunc(func() { fmt.Println("closed") })
//	sub.Unsubscribe()
//	sub.Unsubscribe() // no-op
//
// Subject[T] is a multicast channel with no replay.
//
// # Composition
//
// Map, Filter, Merge, Pairwise and Take build derived streams from any
// Subscribable:
//
//	evens := stream.Filter(numbers, func(n int) bool { return n%2 == 0 })
//	labels := stream.Map(evens, strconv.Itoa)
//
// # Cancellation
//
// AbortController/AbortSignal model one-shot external cancellation. Abort
// fires listeners exactly once no matter how many times it is called.
package stream
