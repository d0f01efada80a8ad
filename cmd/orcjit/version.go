package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const cliVersion = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the orcjit CLI version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "orcjit %s\n", cliVersion)
		return nil
	},
}
