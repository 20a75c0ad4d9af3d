package stream

import (
	"time"
)

// Dispatcher runs functions on the reactive thread.
//
// Asynchronous sources never call observers from their own goroutine; they
// hand every notification to a Dispatcher instead.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Ticker is the clock used by Interval and Timer. It matches the subset of
// *time.Ticker the sources need so tests can drive time manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates Tickers.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// SystemClock is the wall clock.
var SystemClock Clock = realClock{}

// Interval emits 0, 1, 2, ... every period. Values are delivered through d.
func Interval(period time.Duration, d Dispatcher) Subscribable[int] {
	return IntervalWithClock(period, d, SystemClock)
}

// IntervalWithClock is Interval driven by an explicit clock.
func IntervalWithClock(period time.Duration, d Dispatcher, clock Clock) Subscribable[int] {
	return New(func(obs Observer[int]) func() {
		ticker := clock.NewTicker(period)
		done := make(chan struct{})
		go func() {
			n := 0
			for {
				select {
				case <-done:
					return
				case <-ticker.C():
					v := n
					n++
					d.Dispatch(func() { obs.Next(v) })
				}
			}
		}()
		return func() {
			ticker.Stop()
			close(done)
		}
	})
}

// Timer emits 0 once after delay and then completes.
func Timer(delay time.Duration, d Dispatcher) Subscribable[int] {
	return TimerWithClock(delay, d, SystemClock)
}

// TimerWithClock is Timer driven by an explicit clock.
func TimerWithClock(delay time.Duration, d Dispatcher, clock Clock) Subscribable[int] {
	return New(func(obs Observer[int]) func() {
		ticker := clock.NewTicker(delay)
		done := make(chan struct{})
		go func() {
			select {
			case <-done:
			case <-ticker.C():
				ticker.Stop()
				d.Dispatch(func() {
					obs.Next(0)
					obs.Complete()
				})
			}
		}()
		return func() {
			ticker.Stop()
			close(done)
		}
	})
}
