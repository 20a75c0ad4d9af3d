// Command composer benchmarks and demonstrates the compose runtime.
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/compose/internal/config"
	"github.com/vango-dev/compose/internal/errors"
	"github.com/vango-dev/compose/pkg/compose"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries state shared by subcommands once flags are parsed.
type app struct {
	configPath string
	devMode    bool
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	a := &app{}
	if err := a.rootCmd().Execute(); err != nil {
		a.printError(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return (&app{}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {

	rootCmd := &cobra.Command{
		Use:   "composer",
		Short: "Benchmark and explore the compose reactive runtime",
		Long: `composer drives the compose runtime from the command line.

  • bench measures propagation through chains of computed values
  • demo runs a ticking service and a tree of views on an event loop,
    optionally serving devtools and exporting traces

Settings are read from compose.json in the working directory or a
parent directory. Flags override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to compose.json")
	rootCmd.PersistentFlags().BoolVar(&a.devMode, "dev", false, "Enable dev mode checks")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		benchCmd(a),
		demoCmd(a),
		initCmd(),
		versionCmd(),
	)
	return rootCmd
}

// init loads configuration, builds the logger and configures the runtime.
func (a *app) init(stderr io.Writer) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.devMode {
		cfg.DevMode = true
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(stderr, cfg.Log.Format, level)

	compose.Configure(compose.Config{
		DevMode:            cfg.DevMode,
		MaxRendersPerFlush: cfg.MaxRendersPerFlush,
		Logger:             a.logger.With("component", "compose"),
	})
	return nil
}

// printError reports err as JSON when logs are JSON, otherwise as text.
// Colors are dropped when w is not a terminal.
func (a *app) printError(w io.Writer, err error) {
	if a.cfg != nil && a.cfg.Log.Format == "json" {
		errors.PrintJSON(w, err)
		return
	}
	if !isTerminal(w) {
		errors.DisableColors()
	}
	errors.PrintError(w, err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// loadConfig reads path, or searches the working directory when path is
// empty. A missing compose.json yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		var ce *errors.Error
		if stderrors.As(err, &ce) && ce.Code == "E100" {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
