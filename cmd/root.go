// =============================================================================
// Inventory CSV Mapper - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand is
// attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (mapper)
//   ├── convertCmd  (mapper convert INPUT)
//   ├── sheetsCmd   (mapper sheets INPUT)
//   ├── automapCmd  (mapper automap INPUT)
//   ├── fieldsCmd   (mapper fields)
//   ├── mappingsCmd (mapper mappings list|delete)
//   ├── serveCmd    (mapper serve)
//   └── versionCmd  (mapper version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads .env files into the environment
//   2. Loads config.yaml (defaults when the file is missing)
//   3. Applies MAPPER_* environment overrides
//   4. Sets up slog from the config and the --verbose/--log-format flags
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile is the .env file loaded before the config.
var envFile string

// verbose forces debug logging.
var verbose bool

// logFormat overrides the configured log format ("text" or "json").
var logFormat string

// appConfig is the configuration loaded by the root command.
var appConfig *config.Config

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mapper",
	Short: "Inventory CSV Mapper - Turn supplier spreadsheets into product import files",
	Long: `Inventory CSV Mapper reads supplier inventory exports (CSV or Excel),
maps their columns onto the product import catalog and writes an import-ready
CSV or XLSX file.

Key Features:
  - Chunked ingestion of CSV and Excel workbooks with sheet selection
  - Automatic header mapping, optionally assisted by a semantic service
  - Derived fields: handles, weights in grams, HTML bodies, image rows
  - Saved mappings and processing options per user
  - An HTTP API for the same workflow

Example Usage:
  mapper convert feed.xlsx --sheet Products
  mapper automap feed.csv --write mapping.yaml
  mapper convert feed.csv --mapping mapping.yaml --brand Acme
  mapper serve`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError renders err with its user message and code.
func printError(w io.Writer, err error) {
	msg := apperrors.Message(err)
	if msg.Code == "ERR000" {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Error [%s]: %s\n  %v\n", msg.Code, msg.Message, err)
	if msg.Action != "" {
		fmt.Fprintf(w, "  %s\n", msg.Action)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with MAPPER_* overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", `Log format: "text" or "json" (default from config)`)
}

// initConfig loads the environment and the configuration, then sets up
// logging.
func initConfig() error {
	if err := config.LoadEnv(envFile); err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	logging.Setup(level, format)

	appConfig = cfg
	return nil
}
