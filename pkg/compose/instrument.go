package compose

import "time"

// Instrumentation observes the runtime. Implementations must be cheap;
// they are called synchronously on the reactive thread.
type Instrumentation interface {
	FlushStarted(pending int)
	FlushFinished(renders int, d time.Duration)
	RenderFinished(host string, d time.Duration, err error)
	EffectError(effectID uint64, err error, handled bool)
	EffectSubscribed(effectID uint64)
	EffectDisposed(effectID uint64)
}

// NopInstrumentation ignores every event.
type NopInstrumentation struct{}

func (NopInstrumentation) FlushStarted(int)                            {}
func (NopInstrumentation) FlushFinished(int, time.Duration)            {}
func (NopInstrumentation) RenderFinished(string, time.Duration, error) {}
func (NopInstrumentation) EffectError(uint64, error, bool)             {}
func (NopInstrumentation) EffectSubscribed(uint64)                     {}
func (NopInstrumentation) EffectDisposed(uint64)                       {}

// MultiInstrumentation fans events out to several instrumentations in order.
type MultiInstrumentation []Instrumentation

func (m MultiInstrumentation) FlushStarted(pending int) {
	for _, i := range m {
		i.FlushStarted(pending)
	}
}

func (m MultiInstrumentation) FlushFinished(renders int, d time.Duration) {
	for _, i := range m {
		i.FlushFinished(renders, d)
	}
}

func (m MultiInstrumentation) RenderFinished(host string, d time.Duration, err error) {
	for _, i := range m {
		i.RenderFinished(host, d, err)
	}
}

func (m MultiInstrumentation) EffectError(effectID uint64, err error, handled bool) {
	for _, i := range m {
		i.EffectError(effectID, err, handled)
	}
}

func (m MultiInstrumentation) EffectSubscribed(effectID uint64) {
	for _, i := range m {
		i.EffectSubscribed(effectID)
	}
}

func (m MultiInstrumentation) EffectDisposed(effectID uint64) {
	for _, i := range m {
		i.EffectDisposed(effectID)
	}
}
