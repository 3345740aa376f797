package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"srcreg/internal/config"
	srcerrors "srcreg/internal/errors"
	"srcreg/internal/paths"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize srcreg configuration",
	Long:  "Creates a .srcreg/ directory with the default config.toml in the current directory (or --config)",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config.toml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root := configDir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return srcerrors.New(srcerrors.InternalError, "failed to get current directory", err)
		}
		root = cwd
	}
	return executeInit(cmd.OutOrStdout(), root, initForce)
}

func executeInit(w io.Writer, root string, force bool) error {
	configPath := paths.ConfigPath(root)
	if _, statErr := os.Stat(configPath); statErr == nil && !force {
		// Already initialized is success.
		fmt.Fprintln(w, "srcreg already initialized.")
		fmt.Fprintf(w, "Configuration at: %s\n", configPath)
		fmt.Fprintln(w, "\nRun 'srcreg init --force' to reset it to defaults.")
		return nil
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return srcerrors.New(srcerrors.OutputFailed, "failed to write configuration", err)
	}

	fmt.Fprintln(w, "srcreg initialized successfully!")
	fmt.Fprintf(w, "Configuration written to: %s\n", configPath)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Run 'srcreg types' to see the supported source types")
	fmt.Fprintln(w, "  2. Run 'srcreg normalize --input sources.csv'")
	return nil
}
