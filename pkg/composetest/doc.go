// Package composetest provides testing helpers for compose views,
// services and time-driven sources.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    m := composetest.NewView(func() compose.State {
//	        return compose.State{"count": compose.NewCell(0)}
//	    }).Mount(t)
//
//	    composetest.ExpectProp(t, m.Props, "count", 0)
//	    composetest.ExpectRenders(t, m, 1)
//	}
//
// # Fluent View Builder
//
// The view builder allows chaining setup before mounting:
//
//	m := composetest.NewView(factory).
//	    WithName("profile").
//	    WithProvider(userToken, &User{ID: "123"}).
//	    WithProps(compose.MapProps{"title": "Profile"}).
//	    Mount(t)
//
// Mount drives the host through one full update cycle (DoCheck,
// ContentChecked, ViewChecked) and registers Destroy with t.Cleanup.
// Errors reported by the view are recorded and can be asserted with
// ExpectNoErrors.
//
// # Driving Time
//
// ManualClock and QueueDispatcher make interval and timer sources
// deterministic:
//
//	clock := composetest.NewManualClock()
//	d := composetest.NewQueueDispatcher()
//	ticks := stream.IntervalWithClock(time.Second, d, clock)
//
//	clock.Tick()  // the source hands its value to d
//	d.RunNext(t)  // the value is delivered on the test goroutine
package composetest
