package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
)

// fieldsCmd prints the target catalog grouped by category.
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the product import catalog with field categories",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printFields(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}

func printFields(w io.Writer) {
	for _, c := range mapping.Categories {
		fields := mapping.FieldsIn(c)
		fmt.Fprintf(w, "%s (%d):\n", c, len(fields))
		for _, f := range fields {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
}
