package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	srcerrors "srcreg/internal/errors"
)

func main() {
	// A missing .env is fine; it only supplies SRCREG_* overrides.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err and any suggested fixes to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var se *srcerrors.SrcregError
	if !errors.As(err, &se) || len(se.SuggestedFixes) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSuggested fixes:")
	for _, fix := range se.SuggestedFixes {
		switch {
		case fix.Command != "" && fix.Description != "":
			fmt.Fprintf(w, "  - %s: %s\n", fix.Description, fix.Command)
		case fix.Command != "":
			fmt.Fprintf(w, "  - %s\n", fix.Command)
		default:
			fmt.Fprintf(w, "  - %s\n", fix.Description)
		}
	}
}
