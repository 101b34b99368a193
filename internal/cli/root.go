// Package cli implements catalogctl, a terminal client for the real-time
// catalog feed.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func Main() {
	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Catalog feed client",
		SilenceUsage: true,
	}

	root.AddCommand(watchCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
