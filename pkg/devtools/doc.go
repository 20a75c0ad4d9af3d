// Package devtools serves a live view of the compose runtime.
//
// A Bus is registered as the runtime's instrumentation and a Server
// exposes it over HTTP:
//
//	GET /events   WebSocket stream of JSON Events
//	GET /stats    JSON Stats
//	GET /metrics  Prometheus exposition
//
// Example:
//
//	bus := devtools.NewBus()
//	compose.Configure(compose.Config{Instrumentation: bus})
//	srv := devtools.NewServer(devtools.Config{Bus: bus})
//	go srv.ListenAndServe(ctx, ":9090")
package devtools
