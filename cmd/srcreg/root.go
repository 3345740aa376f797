package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"srcreg/internal/config"
	srcerrors "srcreg/internal/errors"
	"srcreg/internal/paths"
	"srcreg/internal/slogutil"
	"srcreg/internal/version"
)

var (
	verboseFlag int
	quietFlag   bool
	configDir   string
)

var rootCmd = &cobra.Command{
	Use:   "srcreg",
	Short: "srcreg - source registry normalizer",
	Long: `srcreg canonicalizes the locators in a source registry (code paths, Figma nodes,
Notion pages, documentation and API URLs, free-form references), flags invalid rows
and collapses duplicates that point at the same source.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("srcreg version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress log output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "",
		"Project directory holding .srcreg/ (default: nearest ancestor with .srcreg, or the working directory)")
}

// appEnv bundles what every command needs: the project root, the effective
// configuration and a logger.
type appEnv struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func (e *appEnv) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

// envOptions carries the global flag values so tests can build an env without cobra.
type envOptions struct {
	ConfigDir string
	Verbose   int
	Quiet     bool
	Stderr    io.Writer
}

func globalEnvOptions() envOptions {
	return envOptions{
		ConfigDir: configDir,
		Verbose:   verboseFlag,
		Quiet:     quietFlag,
		Stderr:    os.Stderr,
	}
}

func newAppEnv(opts envOptions) (*appEnv, error) {
	start := opts.ConfigDir
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, srcerrors.New(srcerrors.InternalError, "failed to get current directory", err)
		}
		start = cwd
	}
	root, err := paths.FindRoot(start)
	if err != nil {
		return nil, srcerrors.New(srcerrors.InternalError, "failed to resolve project root", err)
	}

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, srcerrors.New(srcerrors.ConfigInvalid, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, srcerrors.New(srcerrors.ConfigInvalid, "invalid configuration", err)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	level := slogutil.LevelFromVerbosity(slogutil.LevelFromString(cfg.Logging.Level), opts.Verbose, opts.Quiet)
	logger, closer, err := slogutil.New(stderr, slogutil.Config{
		Format: cfg.Logging.Format,
		Level:  level,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, srcerrors.New(srcerrors.ConfigInvalid,
			fmt.Sprintf("cannot open log file %s", cfg.Logging.File), err)
	}

	logger.Debug("Loaded configuration", "root", root, "config", paths.ConfigPath(root))
	return &appEnv{root: root, cfg: cfg, logger: logger, closer: closer}, nil
}
