package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/session"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/validation"
)

var (
	automapSheet    string
	automapWrite    string
	automapSemantic bool
)

// automapCmd prints the suggested mapping of a file's headers. The output
// can be edited and passed back to convert --mapping.
var automapCmd = &cobra.Command{
	Use:   "automap INPUT",
	Short: "Suggest a mapping for a file's headers and print it as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAutoMap(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(automapCmd)
	automapCmd.Flags().StringVar(&automapSheet, "sheet", "", "Workbook sheet to read")
	automapCmd.Flags().StringVar(&automapWrite, "write", "", "Write the mapping to this file (.yaml or .xlsx template)")
	automapCmd.Flags().BoolVar(&automapSemantic, "semantic", false, "Use the configured semantic service")
}

func runAutoMap(ctx context.Context, stdout, stderr io.Writer, input string) error {
	data, err := readInput(input)
	if err != nil {
		return err
	}
	mapper, err := newMapper(automapSemantic)
	if err != nil {
		return err
	}

	sess := session.New(session.OptionsFrom(appConfig, mapper))
	loaded, err := sess.Load(ctx, data, input, automapSheet)
	if err != nil {
		return err
	}
	if loaded.NeedsSheetSelection {
		printSheets(stdout, input)
		return errSheetRequired
	}

	res, err := sess.AutoMap(ctx)
	if err != nil {
		return err
	}
	if res.Fallback != nil {
		fmt.Fprintf(stderr, "WARNING: %s\n", apperrors.Message(res.Fallback).Action)
	}

	fmt.Fprintf(stderr, "Headers: %s\n", strings.Join(sess.Headers(), ", "))
	if report := validation.CheckMapping(res.Mapping); !report.Ready() {
		fmt.Fprintf(stderr, "WARNING: %s\n", report.Summary())
	}

	if automapWrite != "" {
		if err := writeMappingFile(automapWrite, res.Mapping); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Mapping written to %s\n", automapWrite)
		return nil
	}

	out, err := marshalMapping(res.Mapping)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}
