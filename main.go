// =============================================================================
// Inventory CSV Mapper - Main Entry Point
// =============================================================================
//
// USAGE:
//   mapper convert INPUT   - Convert a supplier file into a product import file
//   mapper automap INPUT   - Print the suggested mapping of a file's headers
//   mapper serve           - Run the HTTP API
//
// ARCHITECTURE:
//   - cmd/       : Cobra command definitions
//   - internal/  : Ingestion, mapping, transformation and persistence
//   - pkg/       : Shared file-system utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/inventory-csv-mapper/cmd"
)

func main() {
	cmd.Execute()
}
