package main

import (
	"github.com/spf13/cobra"
)

var typesOutput string

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported source types",
	Long:  "Lists the source types a registry row may declare and the canonical key each produces.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseOutputFormat(typesOutput)
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), supportedTypes(), format)
	},
}

func init() {
	typesCmd.Flags().StringVar(&typesOutput, "output", string(FormatHuman), "Output format: human or json")
	rootCmd.AddCommand(typesCmd)
}
