package main

import (
	"fmt"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	shapelang "github.com/shape-lang/shapelang"
)

const (
	appName   = "shape"
	envPrefix = "SHAPE_"
)

// config holds the CLI settings. Every field can be overridden through the
// environment with the SHAPE_ prefix, e.g. SHAPE_LOG_LEVEL=debug.
type config struct {
	HistoryFile string `koanf:"history_file"`
	Color       bool   `koanf:"color"`
	LogLevel    string `koanf:"log_level"`
}

func defaultConfig() config {
	return config{
		HistoryFile: ".shapelang_history",
		Color:       true,
		LogLevel:    "warn",
	}
}

func loadConfig() (*config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// charmLogger adapts charmbracelet/log to the shapelang.Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func newLogger(level string) shapelang.Logger {
	lvl := charmlog.WarnLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = charmlog.DebugLevel
	case "info":
		lvl = charmlog.InfoLevel
	case "warn":
		lvl = charmlog.WarnLevel
	case "error":
		lvl = charmlog.ErrorLevel
	}
	return &charmLogger{l: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           lvl,
		ReportTimestamp: false,
	})}
}

var (
	cfg *config
	log shapelang.Logger

	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Shapelang interpreter",
	Long: fmt.Sprintf(`Shapelang %s (built %s)

An interpreter for the shapelang scripting language. Shape declarations
synthesize struct types at load time; equal field signatures reuse the
same type across re-evaluations.

Run without arguments to start the REPL.`, shapelang.Version, shapelang.BuildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if noColor {
			cfg.Color = false
		}
		log = newLogger(cfg.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive REPL",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl()
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file.shape>",
	Short: "Run a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(args[0])
	},
}

var expandCmd = &cobra.Command{
	Use:   "expand <file.shape>",
	Short: "Print the statements each shape declaration expands to",
	Long: `Parses the file without running it and prints, for every shape
declaration, the struct, show, binding and constructor statements it
would evaluate. Types are numbered from a fresh registry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return expandFile(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the compiled version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(shapelang.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: cannot read %s: %w", appName, path, err)
	}
	rt := shapelang.NewRuntime(shapelang.WithLogger(log))
	if _, err := rt.EvalSource(string(src)); err != nil {
		return shapelang.WrapErrorWithName(err, path, string(src))
	}
	return nil
}

func expandFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: cannot read %s: %w", appName, path, err)
	}
	units, uerr := shapelang.ExpandSource(shapelang.NewRegistry(), string(src))
	for i, u := range units {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(shapelang.FormatUnit(u))
	}
	if uerr != nil {
		return shapelang.WrapErrorWithName(uerr, path, string(src))
	}
	return nil
}
