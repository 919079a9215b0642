// =============================================================================
// Inventory CSV Mapper - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main command of the CLI. It
// runs the whole pipeline for one file, or for every supported file in a
// directory.
//
// COMMAND USAGE:
//   mapper convert INPUT [flags]
//
// PROCESSING PIPELINE (per file):
//   1. Read the file under the size limit
//   2. Ingest it in chunks (sheet selection for workbooks)
//   3. Map headers: --mapping file, else semantic (--semantic), else auto-map
//   4. Transform rows with the processing options
//   5. Validate and print warnings
//   6. Write the output file
//   7. Optionally save the mapping and archive the raw file
//
// Directory inputs are processed concurrently, one session per file.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/archive"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/session"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/store"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/writer"
	"github.com/ginjaninja78/inventory-csv-mapper/pkg/utils"
)

// maxPrintedWarnings caps the row warnings printed per file.
const maxPrintedWarnings = 10

// errSheetRequired is returned when a workbook has several sheets and none
// was selected.
var errSheetRequired = errors.New("workbook has several sheets, select one with --sheet")

// =============================================================================
// COMMAND FLAGS
// =============================================================================

type convertOptions struct {
	sheet            string
	mappingFile      string
	output           string
	format           string
	brand            string
	weightAdjustment float64
	nationwide       bool
	semantic         bool
	save             bool
	user             string
	archive          bool
	workers          int
}

var convertOpts convertOptions

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert INPUT",
	Short: "Convert a supplier file into a product import file",
	Long: `The convert command reads a CSV or Excel file, maps its columns onto the
product import catalog and writes the import file.

INPUT may be a directory, in which case every .csv, .xlsx, .xlsm, .xltx and
.xls file directly inside it is converted and --output names a directory.

Without --mapping, headers are auto-mapped. Required catalog fields that stay
unmapped are reported but do not stop the conversion.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := convertOpts
		if !cmd.Flags().Changed("weight-adjustment") {
			opts.weightAdjustment = appConfig.Processing.WeightAdjustment
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runConvert(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.StringVar(&convertOpts.sheet, "sheet", "", "Workbook sheet to convert")
	f.StringVar(&convertOpts.mappingFile, "mapping", "", "Mapping file (YAML, or an .xlsx mapping template)")
	f.StringVarP(&convertOpts.output, "output", "o", "", "Output file (directory for directory input)")
	f.StringVar(&convertOpts.format, "format", "", `Output format "csv" or "xlsx" (default from the output name)`)
	f.StringVar(&convertOpts.brand, "brand", "", "Keep only rows of this brand")
	f.Float64Var(&convertOpts.weightAdjustment, "weight-adjustment", 2.0, "Pounds added to the weight before rounding up")
	f.BoolVar(&convertOpts.nationwide, "nationwide", false, `Append "Nationwide Shipping" to SEO descriptions`)
	f.BoolVar(&convertOpts.semantic, "semantic", false, "Map headers with the configured semantic service")
	f.BoolVar(&convertOpts.save, "save", false, "Save the mapping for --user")
	f.StringVar(&convertOpts.user, "user", "", "User id for saved mappings and archiving")
	f.BoolVar(&convertOpts.archive, "archive", false, "Upload the raw file to the configured archive bucket")
	f.IntVar(&convertOpts.workers, "workers", 4, "Files converted concurrently for directory input")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// fileResult is the outcome of converting one file.
type fileResult struct {
	input      string
	output     string
	inputRows  int
	outputRows int
	filtered   int
	unmapped   []string
	warnings   []string
	truncated  int
	notices    []string
	err        error
}

// converterDeps are shared by every file of one command run.
type converterDeps struct {
	opts     convertOptions
	mapper   *mapping.Mapper
	mappings mapping.FieldMapping
	store    store.Store
	archiver archive.Archiver
	progress *ingest.Broadcaster
}

func runConvert(ctx context.Context, stdout, stderr io.Writer, input string, opts convertOptions) error {
	start := time.Now()

	deps, cleanup, err := newConverterDeps(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	files, isDir, err := resolveInputs(input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "No supported files found.")
		return nil
	}

	stopProgress := watchProgress(stderr, deps.progress)
	results := convertAll(ctx, deps, files, isDir)
	stopProgress()

	var failed int
	for _, res := range results {
		printResult(stdout, res)
		if res.err != nil {
			failed++
		}
	}

	if len(files) == 1 {
		if errors.Is(results[0].err, errSheetRequired) {
			printSheets(stdout, files[0])
		}
		return results[0].err
	}

	fmt.Fprintln(stdout, "\n=== Conversion Complete ===")
	fmt.Fprintf(stdout, "Total files:  %d\n", len(files))
	fmt.Fprintf(stdout, "Successful:   %d\n", len(files)-failed)
	fmt.Fprintf(stdout, "Errors:       %d\n", failed)
	fmt.Fprintf(stdout, "Time elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
	}
	return nil
}

func newConverterDeps(ctx context.Context, opts convertOptions) (*converterDeps, func(), error) {
	deps := &converterDeps{opts: opts, progress: ingest.NewBroadcaster()}
	cleanup := func() {}

	mapper, err := newMapper(opts.semantic)
	if err != nil {
		return nil, cleanup, err
	}
	deps.mapper = mapper

	if opts.mappingFile != "" {
		m, err := loadMappingFile(opts.mappingFile)
		if err != nil {
			return nil, cleanup, err
		}
		deps.mappings = m
	}

	if opts.save {
		if opts.user == "" {
			return nil, cleanup, apperrors.New(apperrors.KindInvalidArgument, "convert", errors.New("--save needs --user"))
		}
		st, err := store.Open(ctx, appConfig.Store)
		if err != nil {
			return nil, cleanup, err
		}
		deps.store = st
		cleanup = func() { st.Close() }
	}

	if opts.archive {
		a, err := archive.New(ctx, appConfig.Archive)
		if err != nil {
			// Archiving never blocks a conversion.
			logging.FromContext(ctx).Warn("archive disabled", "error", err)
		} else {
			deps.archiver = a
		}
	}
	return deps, cleanup, nil
}

// resolveInputs expands a directory into its supported files.
func resolveInputs(input string) ([]string, bool, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open input: %w", err)
	}
	if !info.IsDir() {
		return []string{input}, false, nil
	}
	files, err := utils.DiscoverInputFiles(input)
	return files, true, err
}

// convertAll converts files with a bounded number of workers and returns the
// results in input order.
func convertAll(ctx context.Context, deps *converterDeps, files []string, isDir bool) []fileResult {
	results := make([]fileResult, len(files))

	workers := deps.opts.workers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	outputs := outputPaths(deps.opts, files, isDir)

	var wg sync.WaitGroup
	for i, file := range files {
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = convertFile(ctx, deps, file, outputs[i])
		}(i, file)
	}
	wg.Wait()
	return results
}

// outputPaths picks an output file per input. Inputs that would share an
// output name, such as a.csv and a.xlsx, get their source extension added
// to the name.
func outputPaths(opts convertOptions, files []string, isDir bool) []string {
	paths := make([]string, len(files))
	seen := make(map[string]int, len(files))
	for i, file := range files {
		paths[i] = outputPath(opts, file, isDir)
		seen[strings.ToLower(paths[i])]++
	}
	for i, file := range files {
		if seen[strings.ToLower(paths[i])] < 2 {
			continue
		}
		ext := filepath.Ext(file)
		stem := strings.TrimSuffix(file, ext) + "-" + strings.ToLower(strings.TrimPrefix(ext, "."))
		paths[i] = outputPath(opts, stem+ext, isDir)
	}
	return paths
}

// outputPath picks the output file for input.
func outputPath(opts convertOptions, input string, isDir bool) string {
	if opts.output != "" && !isDir {
		return opts.output
	}
	dir := appConfig.Output.Dir
	if opts.output != "" {
		dir = opts.output
	}
	format, _ := outputFormat(opts, "")
	return filepath.Join(dir, utils.GenerateOutputFileName(appConfig.Output.FileNameFormat, input, format.Extension()))
}

// outputFormat resolves --format, then the configured format, then the
// output file extension.
func outputFormat(opts convertOptions, output string) (writer.Format, error) {
	switch {
	case opts.format != "":
		return writer.ParseFormat(opts.format)
	case appConfig.Output.Format != "":
		return writer.ParseFormat(appConfig.Output.Format)
	case output != "":
		return writer.FormatFromFilename(output), nil
	default:
		return writer.FormatFromFilename(appConfig.Output.FileNameFormat), nil
	}
}

// convertFile runs the pipeline for one file in its own session.
func convertFile(ctx context.Context, deps *converterDeps, input, output string) fileResult {
	res := fileResult{input: input, output: output}
	log := logging.WithFields(ctx, "file", filepath.Base(input))

	format, err := outputFormat(deps.opts, output)
	if err != nil {
		res.err = apperrors.New(apperrors.KindInvalidArgument, "convert", err)
		return res
	}

	data, err := readInput(input)
	if err != nil {
		res.err = err
		return res
	}

	sessOpts := session.OptionsFrom(appConfig, deps.mapper)
	sessOpts.Ingest.Broadcaster = deps.progress
	sess := session.New(sessOpts)

	p := sess.Processing()
	if deps.opts.brand != "" {
		p.BrandFilter = deps.opts.brand
	}
	p.WeightAdjustment = deps.opts.weightAdjustment
	p.NationwideShipping = p.NationwideShipping || deps.opts.nationwide
	sess.SetProcessing(p)

	loaded, err := sess.Load(ctx, data, input, deps.opts.sheet)
	if err != nil {
		res.err = err
		return res
	}
	if loaded.NeedsSheetSelection {
		res.err = errSheetRequired
		return res
	}
	res.inputRows = loaded.Rows
	res.notices = append(res.notices, loaded.Advisories...)

	switch {
	case deps.mappings != nil:
		if err := sess.ReplaceMapping(deps.mappings); err != nil {
			res.err = err
			return res
		}
	case deps.mapper.Remote():
		mres, err := sess.AutoMap(ctx)
		if err != nil {
			res.err = err
			return res
		}
		if mres.Fallback != nil {
			res.notices = append(res.notices, apperrors.Message(mres.Fallback).Action)
		}
	}

	if deps.archiver != nil {
		if key, err := deps.archiver.Upload(ctx, deps.opts.user, input, data); err != nil {
			log.Warn("archive upload failed", "error", err)
			res.notices = append(res.notices, "raw file was not archived")
		} else {
			log.Info("raw file archived", "key", key)
		}
	}

	out, err := sess.Convert(ctx, format)
	if err != nil {
		res.err = err
		return res
	}
	if err := utils.WriteOutput(output, out.Data); err != nil {
		res.err = err
		return res
	}

	res.outputRows = out.Stats.OutputRows
	res.filtered = out.Stats.FilteredRows
	res.unmapped = out.Report.Mapping.UnmappedRequired
	for i, w := range out.Report.Rows.Warnings {
		if i == maxPrintedWarnings {
			break
		}
		res.warnings = append(res.warnings, w.String())
	}
	res.truncated = out.Report.Rows.Total - len(res.warnings)

	if deps.store != nil {
		res.notices = append(res.notices, saveMapping(ctx, deps.store, deps.opts.user, sess))
	}
	return res
}

// saveMapping stores the session's mapping and returns a line for the user.
// A quota rejection is reported, not returned.
func saveMapping(ctx context.Context, st store.Store, userID string, sess *session.Session) string {
	saved, err := st.Save(ctx, store.SaveRequest{
		UserID:     userID,
		Filename:   filepath.Base(sess.FileName()),
		Mapping:    sess.Mapping(),
		RawContent: sess.RawContent(),
	})
	if err != nil {
		msg := apperrors.Message(err)
		return fmt.Sprintf("mapping not saved: %s (%s)", msg.Message, msg.Action)
	}
	return "mapping saved as " + saved.ID
}

// printResult prints one file's outcome.
func printResult(w io.Writer, res fileResult) {
	name := filepath.Base(res.input)
	if res.err != nil {
		if msg := apperrors.Message(res.err); msg.Code != "ERR000" {
			fmt.Fprintf(w, "  ✗ %s: %s [%s]\n", name, msg.Message, msg.Code)
		}
		fmt.Fprintf(w, "  ✗ %s: %v\n", name, res.err)
		return
	}

	fmt.Fprintf(w, "  ✓ %s -> %s (%d row(s) in, %d out", name, res.output, res.inputRows, res.outputRows)
	if res.filtered > 0 {
		fmt.Fprintf(w, ", %d filtered", res.filtered)
	}
	fmt.Fprintln(w, ")")

	if len(res.unmapped) > 0 {
		fmt.Fprintf(w, "    WARNING: required field(s) unmapped: %s\n", strings.Join(res.unmapped, ", "))
	}
	for _, warn := range res.warnings {
		fmt.Fprintf(w, "    %s\n", warn)
	}
	if res.truncated > 0 {
		fmt.Fprintf(w, "    ... and %d more warning(s)\n", res.truncated)
	}
	for _, n := range res.notices {
		fmt.Fprintf(w, "    %s\n", n)
	}
}
