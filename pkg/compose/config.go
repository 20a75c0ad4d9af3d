package compose

import (
	"log/slog"
	"sync/atomic"
)

// DefaultMaxRendersPerFlush bounds how often one Scheduler may render
// during a single flush.
const DefaultMaxRendersPerFlush = 100

// Config holds process-wide runtime settings.
//
// Set it once at startup:
//
//	compose.Configure(compose.Config{
//	    DevMode: os.Getenv("COMPOSE_DEV") == "1",
//	    Logger:  logger,
//	})
type Config struct {
	// DevMode enables CheckNoChanges after every host render.
	DevMode bool

	// MaxRendersPerFlush caps renders per Scheduler per flush.
	// Zero means DefaultMaxRendersPerFlush.
	MaxRendersPerFlush int

	// Logger is used by LogErrorHandler and the runtime's own diagnostics.
	// Nil means slog.Default().
	Logger *slog.Logger

	// Instrumentation receives runtime events. Nil disables it.
	Instrumentation Instrumentation
}

var currentConfig atomic.Pointer[Config]

func init() {
	Configure(Config{})
}

// Configure replaces the runtime configuration, filling in defaults.
func Configure(cfg Config) {
	if cfg.MaxRendersPerFlush <= 0 {
		cfg.MaxRendersPerFlush = DefaultMaxRendersPerFlush
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default().With("component", "compose")
	}
	if cfg.Instrumentation == nil {
		cfg.Instrumentation = NopInstrumentation{}
	}
	currentConfig.Store(&cfg)
}

// CurrentConfig returns a copy of the active configuration.
func CurrentConfig() Config {
	return *currentConfig.Load()
}

func logger() *slog.Logger {
	return currentConfig.Load().Logger
}

func instrumentation() Instrumentation {
	return currentConfig.Load().Instrumentation
}
