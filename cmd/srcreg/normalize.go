package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"srcreg/internal/config"
	srcerrors "srcreg/internal/errors"
	"srcreg/internal/export"
	"srcreg/internal/ingest"
	"srcreg/internal/registry"
	"srcreg/internal/runstore"
)

var (
	normalizeInput       string
	normalizeInputFormat string
	normalizeOutDir      string
	normalizeFormats     []string
	normalizeWorkers     int
	normalizeNoStore     bool
	normalizeOutput      string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a source registry",
	Long: `Read a source registry, canonicalize every locator and classify each row as
valid, duplicate or invalid.

Writes normalized.csv, duplicates.csv, invalid.csv and summary.json to the output
directory (plus normalized.json with --format json) and records the run in
.srcreg/runs.db.

Examples:
  srcreg normalize --input sources.csv
  srcreg normalize --input sources.yaml --out-dir build/sources --format csv,json
  cat sources.csv | srcreg normalize --input - --output json`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeInput, "input", "i", "", "Registry file (csv, tsv, json, yaml, toml; optionally .gz/.zst), or - for stdin")
	normalizeCmd.Flags().StringVar(&normalizeInputFormat, "input-format", "", "Input format, overriding the file extension")
	normalizeCmd.Flags().StringVarP(&normalizeOutDir, "out-dir", "o", "", "Output directory (default: output.dir from config)")
	normalizeCmd.Flags().StringSliceVar(&normalizeFormats, "format", nil, "Output formats: csv, json (default: output.formats from config)")
	normalizeCmd.Flags().IntVar(&normalizeWorkers, "workers", 0, "Parallel normalization workers (default: engine.workers from config)")
	normalizeCmd.Flags().BoolVar(&normalizeNoStore, "no-store", false, "Do not record the run in the run history")
	normalizeCmd.Flags().StringVar(&normalizeOutput, "output", string(FormatHuman), "Summary output: human or json")
	_ = normalizeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(normalizeCmd)
}

// normalizeOptions are the per-invocation settings of a normalize run. Zero values
// defer to the configuration.
type normalizeOptions struct {
	Input       string
	InputFormat string
	OutDir      string
	Formats     []string
	// Workers overrides engine.workers when non-nil.
	Workers *int
	NoStore bool
	Stdin   io.Reader
}

// normalizeResult is what a normalize run reports.
type normalizeResult struct {
	Summary export.Summary `json:"summary"`
	Files   []string       `json:"files"`
	// PreviousRuns are stored runs over byte-identical input.
	PreviousRuns []string `json:"previousRuns,omitempty"`
}

func runNormalize(cmd *cobra.Command, args []string) error {
	output, err := parseOutputFormat(normalizeOutput)
	if err != nil {
		return err
	}

	env, err := newAppEnv(globalEnvOptions())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	if normalizeInput == ingest.StdinPath && stdinIsTerminal() {
		env.logger.Warn("Reading registry from the terminal; finish with Ctrl-D")
	}

	opts := normalizeOptions{
		Input:       normalizeInput,
		InputFormat: normalizeInputFormat,
		OutDir:      normalizeOutDir,
		Formats:     normalizeFormats,
		NoStore:     normalizeNoStore,
		Stdin:       cmd.InOrStdin(),
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = &normalizeWorkers
	}

	result, err := executeNormalize(cmd.Context(), env, opts)
	if err != nil {
		return err
	}
	return writeNormalizeResult(cmd.OutOrStdout(), result, output)
}

func executeNormalize(ctx context.Context, env *appEnv, opts normalizeOptions) (*normalizeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	cfg := *env.cfg

	if opts.OutDir != "" {
		cfg.Output.Dir = opts.OutDir
	}
	if len(opts.Formats) > 0 {
		cfg.Output.Formats = config.NormalizeFormats(opts.Formats)
	}
	if opts.Workers != nil {
		cfg.Engine.Workers = *opts.Workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, srcerrors.New(srcerrors.ConfigInvalid, "invalid options", err)
	}

	ingestOpts := ingest.Options{Stdin: opts.Stdin, Logger: env.logger}
	if opts.InputFormat != "" {
		f, ok := ingest.ParseFormat(opts.InputFormat)
		if !ok {
			return nil, srcerrors.Newf(srcerrors.InputFormatUnsupported,
				"unknown input format %q", opts.InputFormat)
		}
		ingestOpts.Format = f
	}

	ds, err := ingest.Open(ctx, opts.Input, ingestOpts)
	if err != nil {
		return nil, err
	}

	engine, err := registry.NewEngine(registry.Options{
		Workers:   cfg.Engine.Workers,
		CacheSize: cfg.Engine.CacheSize,
	}, env.logger)
	if err != nil {
		return nil, srcerrors.New(srcerrors.ConfigInvalid, "invalid engine options", err)
	}
	classified, err := engine.Classify(ctx, ds.Records)
	if err != nil {
		return nil, err
	}

	result := &normalizeResult{}

	var (
		store *runstore.Store
		run   *runstore.Run
	)
	if cfg.Runs.Enabled && !opts.NoStore {
		store, err = runstore.OpenStore(env.root, env.logger)
		if err != nil {
			return nil, srcerrors.New(srcerrors.OutputFailed, "cannot open run history", err)
		}
		defer func() { _ = store.Close() }()

		previous, err := store.FindByDigest(ctx, ds.Digest)
		if err != nil {
			return nil, srcerrors.New(srcerrors.InternalError, "cannot query run history", err)
		}
		for _, p := range previous {
			result.PreviousRuns = append(result.PreviousRuns, p.ID)
		}
		if len(previous) > 0 {
			env.logger.Info("Input unchanged since an earlier run",
				"run", previous[0].ShortID(),
				"at", previous[0].CreatedAt.Format(time.RFC3339))
		}
		run = runstore.NewRun(ds.Path, string(ds.Format), ds.Digest, cfg.Output.Dir, registry.Summarize(classified))
	}

	exportOpts := export.Options{
		Dir:                  cfg.Output.Dir,
		CSV:                  cfg.HasFormat(config.FormatCSV),
		JSON:                 cfg.HasFormat(config.FormatJSON),
		LowercasePassthrough: cfg.Output.PassthroughLowercase,
	}
	if run != nil {
		exportOpts.RunID = run.ID
	}
	exported, err := export.NewExporter(env.logger).Export(ctx, classified, exportOpts)
	if err != nil {
		return nil, err
	}
	result.Summary = exported.Summary
	result.Files = exported.Files

	if store != nil {
		if err := store.Save(ctx, run, exported.Rows); err != nil {
			return nil, srcerrors.New(srcerrors.OutputFailed, "cannot record run", err)
		}
		if days := cfg.Runs.RetentionDays; days > 0 {
			if _, err := store.Prune(ctx, time.Duration(days)*24*time.Hour); err != nil {
				env.logger.Warn("Failed to prune run history", "error", err.Error())
			}
		}
	}

	env.logger.Info("Normalized registry",
		"input", ds.Path,
		"rows", result.Summary.InputRows,
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	return result, nil
}

func writeNormalizeResult(w io.Writer, result *normalizeResult, format OutputFormat) error {
	if format == FormatJSON {
		// One compact line, the same document as summary.json.
		data, err := json.Marshal(result.Summary)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	text := export.FormatText(result.Summary, result.Files)
	if len(result.PreviousRuns) > 0 {
		text += fmt.Sprintf("Same input as:  %d earlier run(s), latest %s\n",
			len(result.PreviousRuns), result.PreviousRuns[0])
	}
	_, err := fmt.Fprint(w, text)
	return err
}

// stdinIsTerminal reports whether stdin is an interactive terminal.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
