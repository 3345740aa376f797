package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	srcerrors "srcreg/internal/errors"
	"srcreg/internal/export"
	"srcreg/internal/runstore"
)

var (
	runsListLimit  int
	runsShowWhere  string
	runsPruneDays  int
	runsOutputFlag string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run history",
	Long:  "List, show and prune normalization runs recorded in .srcreg/runs.db.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show a run and its records",
	Long: `Show a stored run. RUN_ID may be any unique prefix of the run id.

--where takes a CEL expression over the record variables:
  row (int), source_type, status, canonical_key, locator, reason, section,
  priority, evidence_level (string)

Examples:
  srcreg runs show 3f2a
  srcreg runs show 3f2a --where 'status == "invalid"'
  srcreg runs show 3f2a --where 'source_type == "figma" && row > 10' --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsShow,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsPrune,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsOutputFlag, "output", string(FormatHuman), "Output format: human or json")
	runsListCmd.Flags().IntVarP(&runsListLimit, "limit", "n", runstore.DefaultListLimit, "Maximum number of runs to list")
	runsShowCmd.Flags().StringVarP(&runsShowWhere, "where", "w", "", "CEL filter over records")
	runsPruneCmd.Flags().IntVar(&runsPruneDays, "older-than", -1, "Delete runs older than DAYS (default: runs.retentionDays from config)")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// withStore opens the environment and run store for a runs subcommand.
func withStore(fn func(env *appEnv, store *runstore.Store) error) error {
	env, err := newAppEnv(globalEnvOptions())
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	store, err := runstore.OpenStore(env.root, env.logger)
	if err != nil {
		return srcerrors.New(srcerrors.InternalError, "cannot open run history", err)
	}
	defer func() { _ = store.Close() }()

	return fn(env, store)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(runsOutputFlag)
	if err != nil {
		return err
	}
	return withStore(func(env *appEnv, store *runstore.Store) error {
		resp, err := executeRunsList(cmd.Context(), store, runsListLimit)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp, format)
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	format, err := parseOutputFormat(runsOutputFlag)
	if err != nil {
		return err
	}
	return withStore(func(env *appEnv, store *runstore.Store) error {
		resp, err := executeRunsShow(cmd.Context(), store, args[0], runsShowWhere)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp, format)
	})
}

func runRunsPrune(cmd *cobra.Command, args []string) error {
	return withStore(func(env *appEnv, store *runstore.Store) error {
		days := runsPruneDays
		if days < 0 {
			days = env.cfg.Runs.RetentionDays
		}
		return executeRunsPrune(cmd.Context(), cmd.OutOrStdout(), store, days)
	})
}

func executeRunsList(ctx context.Context, store *runstore.Store, limit int) (*runListResponse, error) {
	runs, err := store.List(ctx, limit)
	if err != nil {
		return nil, srcerrors.New(srcerrors.InternalError, "cannot list runs", err)
	}
	if runs == nil {
		runs = []*runstore.Run{}
	}
	return &runListResponse{Runs: runs}, nil
}

func executeRunsShow(ctx context.Context, store *runstore.Store, id, where string) (*runShowResponse, error) {
	var filter *runstore.Filter
	if where != "" {
		f, err := runstore.CompileFilter(where)
		if err != nil {
			return nil, err
		}
		filter = f
	}

	run, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := store.Records(ctx, run.ID, filter)
	if err != nil {
		return nil, srcerrors.New(srcerrors.InternalError, "cannot read run records", err)
	}
	if records == nil {
		records = []export.Row{}
	}
	return &runShowResponse{Run: run, Filter: where, Records: records}, nil
}

func executeRunsPrune(ctx context.Context, w io.Writer, store *runstore.Store, days int) error {
	n, err := store.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		return srcerrors.New(srcerrors.InternalError, "cannot prune runs", err)
	}
	_, err = fmt.Fprintf(w, "Deleted %d run(s) older than %d day(s).\n", n, days)
	return err
}
