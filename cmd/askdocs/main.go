// Package main provides the entry point for the askdocs CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/askdocs/cmd/askdocs/cmd"
	askerrors "github.com/Aman-CERP/askdocs/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Fatal errors mean local data is unrecoverable without a re-sync;
		// the distinct exit code lets wrappers tell them apart.
		if askerrors.IsFatal(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
