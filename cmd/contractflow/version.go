package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/contractflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of contractflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "contractflow version %s\n", strings.TrimSpace(contractflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
