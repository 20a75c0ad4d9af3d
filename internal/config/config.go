package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/compose/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "compose.json"

	// DefaultIterations is the number of source writes per bench case.
	DefaultIterations = 100

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "localhost:7070"

	// DefaultDemoDuration is how long the demo runs.
	DefaultDemoDuration = "5s"

	// DefaultDemoInterval is the demo tick period.
	DefaultDemoInterval = "100ms"

	// DefaultDemoDepth is the number of rows in the demo triangle.
	DefaultDemoDepth = 5

	// DefaultNamespace is the Prometheus namespace.
	DefaultNamespace = "compose"
)

// Config represents the complete compose.json configuration.
type Config struct {
	// DevMode enables the runtime's post-render consistency check.
	DevMode bool `json:"devMode,omitempty"`

	// MaxRendersPerFlush caps renders per host per flush.
	MaxRendersPerFlush int `json:"maxRendersPerFlush,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Bench contains benchmark configuration.
	Bench BenchConfig `json:"bench,omitempty"`

	// Demo contains demo configuration.
	Demo DemoConfig `json:"demo,omitempty"`

	// Devtools contains devtools server configuration.
	Devtools DevtoolsConfig `json:"devtools,omitempty"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// BenchConfig contains benchmark settings.
type BenchConfig struct {
	// Widths are the numbers of independent chains per case.
	Widths []int `json:"widths,omitempty"`

	// Heights are the chain lengths per case.
	Heights []int `json:"heights,omitempty"`

	// Iterations is the number of source writes measured per case.
	Iterations int `json:"iterations,omitempty"`
}

// DemoConfig contains demo settings.
type DemoConfig struct {
	// Duration is how long the demo runs (e.g., "5s").
	Duration string `json:"duration,omitempty"`

	// Interval is the tick period (e.g., "100ms").
	Interval string `json:"interval,omitempty"`

	// Depth is the number of rows in the triangle view.
	Depth int `json:"depth,omitempty"`
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Enabled starts the devtools server with the demo.
	Enabled bool `json:"enabled,omitempty"`

	// Addr is the listen address.
	Addr string `json:"addr,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Exporter is "stdout" or "none".
	Exporter string `json:"exporter,omitempty"`

	// ServiceName is the service.name resource attribute.
	ServiceName string `json:"serviceName,omitempty"`

	// SamplingRate is the fraction of flushes traced.
	SamplingRate float64 `json:"samplingRate,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for compose.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No compose.json found in " + filepath.Dir(path)).
				WithSuggestion("Create compose.json or pass settings as flags").
				Wrap(err)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse compose.json: " + err.Error()).
			WithSuggestion("Check that compose.json is valid JSON").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E103").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E103").WithDetail(err.Error()).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if len(c.Bench.Widths) == 0 {
		c.Bench.Widths = []int{1, 10, 100}
	}
	if len(c.Bench.Heights) == 0 {
		c.Bench.Heights = []int{1, 10, 100}
	}
	if c.Bench.Iterations == 0 {
		c.Bench.Iterations = DefaultIterations
	}

	if c.Demo.Duration == "" {
		c.Demo.Duration = DefaultDemoDuration
	}
	if c.Demo.Interval == "" {
		c.Demo.Interval = DefaultDemoInterval
	}
	if c.Demo.Depth == 0 {
		c.Demo.Depth = DefaultDemoDepth
	}

	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "composer"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("E102").WithDetail(detail)
	}

	if c.MaxRendersPerFlush < 0 {
		return invalid("maxRendersPerFlush must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be \"text\" or \"json\"")
	}
	for _, n := range append(append([]int{}, c.Bench.Widths...), c.Bench.Heights...) {
		if n <= 0 {
			return invalid("bench widths and heights must be positive")
		}
	}
	if c.Bench.Iterations <= 0 {
		return invalid("bench.iterations must be positive")
	}
	if d, err := c.DemoDuration(); err != nil || d <= 0 {
		return invalid("demo.duration must be a positive duration like \"5s\"")
	}
	if d, err := c.DemoInterval(); err != nil || d <= 0 {
		return invalid("demo.interval must be a positive duration like \"100ms\"")
	}
	if c.Demo.Depth <= 0 {
		return invalid("demo.depth must be positive")
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return errors.New("E141").WithDetail("tracing.exporter is " + c.Tracing.Exporter)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return invalid("tracing.samplingRate must be between 0 and 1")
	}
	return nil
}

// DemoDuration parses Demo.Duration.
func (c *Config) DemoDuration() (time.Duration, error) {
	return time.ParseDuration(c.Demo.Duration)
}

// DemoInterval parses Demo.Interval.
func (c *Config) DemoInterval() (time.Duration, error) {
	return time.ParseDuration(c.Demo.Interval)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, errors.New("E102").
			WithDetail("log.level must be debug, info, warn or error").
			Wrap(err)
	}
	return level, nil
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up directories to find compose.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("No compose.json found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent holding compose.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
