// Command speechscope analyses recorded speech and reports prosodic metrics.
//
//	speechscope analyze answer.wav           # one JSON document per file
//	speechscope serve --config config.yaml   # HTTP service with hot reload
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speechscope/internal/config"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "speechscope: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "speechscope",
		Short:         "Prosodic speech analysis for recorded answers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to the YAML configuration file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCmd(g), newServeCmd(g))
	return root
}

// loadConfig resolves the configuration for a command: the file named by
// --config, or the built-in defaults, with --log-level applied on top.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", g.configPath)
			}
			return nil, err
		}
		cfg = loaded
	}
	if err := g.applyLogLevel(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globalFlags) applyLogLevel(cfg *config.Config) error {
	if g.logLevel == "" {
		return nil
	}
	lvl := config.LogLevel(g.logLevel)
	if !lvl.IsValid() {
		return fmt.Errorf("invalid --log-level %q", g.logLevel)
	}
	cfg.Server.LogLevel = lvl
	return nil
}

// newLogger returns a text logger on w whose level follows lv, so a config
// reload can change verbosity without rebuilding handlers.
func newLogger(w io.Writer, lv *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
