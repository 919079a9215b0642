package ingest

import (
	"math"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// EventKind identifies an ingestion event.
type EventKind string

const (
	// EventSheetList carries the workbook's sheets and ends a run that needs
	// a sheet selection.
	EventSheetList EventKind = "sheetList"
	// EventAdvisory is a non-fatal notice, such as a large file warning.
	EventAdvisory EventKind = "advisory"
	// EventHeaders carries the cleaned header set. It precedes every chunk.
	EventHeaders EventKind = "headers"
	// EventChunk carries one chunk of rows and the progress after it.
	EventChunk EventKind = "chunk"
	// EventComplete ends a successful run. Progress is exactly 100.
	EventComplete EventKind = "complete"
	// EventError ends a failed run.
	EventError EventKind = "error"
)

// Terminal reports whether no further events follow an event of this kind.
func (k EventKind) Terminal() bool {
	return k == EventSheetList || k == EventComplete || k == EventError
}

// Progress is the row-based position of a run.
type Progress struct {
	Percent   int `json:"percent"`
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// progressOf reports processed/total as a percentage held below 100 until
// the run completes.
func progressOf(processed, total int) Progress {
	p := Progress{Processed: processed, Total: total}
	if total > 0 {
		p.Percent = min(int(math.Round(float64(processed)/float64(total)*100)), 99)
	}
	return p
}

// Event is a message from an ingestion worker. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind  EventKind
	RunID string

	Sheets   []types.SheetDescriptor
	Headers  types.Headers
	Chunk    types.Chunk
	Progress Progress
	Message  string
	Err      error
}
