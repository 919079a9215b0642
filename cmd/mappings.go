package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/store"
)

var mappingsUser string

// mappingsCmd manages saved mappings in the configured store.
var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List or delete saved mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the saved mappings of --user, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mappingsUser == "" {
			return fmt.Errorf("--user is required")
		}
		st, err := store.Open(cmd.Context(), appConfig.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		saved, err := st.List(cmd.Context(), mappingsUser)
		if err != nil {
			return err
		}
		if len(saved) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved mappings.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tSAVED\tMAPPED")
		for _, m := range saved {
			mapped := 0
			for _, h := range m.Mapping {
				if h != "" {
					mapped++
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.ID, m.Filename, m.CreatedAt.Local().Format("2006-01-02 15:04"), mapped)
		}
		return tw.Flush()
	},
}

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a saved mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cmd.Context(), appConfig.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	mappingsCmd.AddCommand(mappingsListCmd, mappingsDeleteCmd)
	mappingsListCmd.Flags().StringVar(&mappingsUser, "user", "", "User id")
}
