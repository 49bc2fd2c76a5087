package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AnyUserName/lazyimg-cli/internal/config"
	"github.com/AnyUserName/lazyimg-cli/internal/logging"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string
	logFormat  string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "lazyimg",
	Short: "Lazy-load images in generated static sites",
	Long: `lazyimg rewrites <img> markup in a built static site so images load
lazily, carry their true width and height, and show a tiny blurred
placeholder until the real image arrives.

Image dimensions and placeholders are cached in a JSON file keyed by
image reference, so unchanged images are never decoded twice.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"lazyimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// setup loads the config file and builds the logger before any command
// runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	format := cfg.Log.Format
	if logFormat != "" {
		format = logFormat
	}
	logger = logging.New(logging.Config{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	logger.Sugar().Debugf(format, args...)
}
