package cmd

import (
	"github.com/spf13/cobra"
)

// sheetsCmd lists the sheets of a workbook so one can be passed to --sheet.
var sheetsCmd = &cobra.Command{
	Use:   "sheets INPUT",
	Short: "List the sheets of a workbook with their row counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSheets(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
}
