// =============================================================================
// Inventory CSV Mapper - Chunked Ingestion Pipeline
// =============================================================================
//
// Ingestion turns an uploaded file into a header set and a sequence of
// chunks. Each run executes on its own goroutine and reports through a typed
// event channel:
//
//   advisory?  ->  headers  ->  chunk*  ->  complete
//   sheetList                                       (workbook, no selection)
//   error                                           (at any point)
//
// Size limits are checked before the worker starts. A cancelled run stops at
// the next chunk boundary and closes its channel without a terminal event.
//
// =============================================================================

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/xlsxparser"
)

const mb = 1 << 20

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls one ingestion run.
type Options struct {
	// Sheet selects a workbook sheet. Ignored for CSV input.
	Sheet string

	// ChunkSize is the number of rows per chunk. Default: 1000
	ChunkSize int

	// WarnSize is the byte size above which an advisory event is emitted.
	// Default: 5 MB. Zero or negative uses the default.
	WarnSize int64

	// MaxSize is the byte size above which Start fails with FileTooLarge.
	// Default: 10 MB. Zero or negative uses the default.
	MaxSize int64

	// Broadcaster, if set, receives a progress update for every event.
	Broadcaster *Broadcaster
}

// DefaultOptions returns the default ingestion options.
func DefaultOptions() Options {
	return Options{
		ChunkSize: xlsxparser.DefaultChunkSize,
		WarnSize:  5 * mb,
		MaxSize:   10 * mb,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.WarnSize <= 0 {
		o.WarnSize = d.WarnSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = d.MaxSize
	}
	return o
}

// =============================================================================
// FORMAT DISPATCH
// =============================================================================

// Format is the container type of an input file.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatWorkbook
)

// DetectFormat chooses a decoder from the filename extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm", ".xltx", ".xls":
		return FormatWorkbook, nil
	default:
		return 0, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run is one in-flight ingestion.
type Run struct {
	ID       string
	FileName string

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Events returns the run's event channel. It is closed when the worker exits.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Cancel stops the worker. Events already buffered may still be received and
// must be discarded by the caller.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the worker has exited.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Start validates data against the size limits and starts a worker that
// decodes it. FileTooLarge and unsupported formats are returned directly,
// before any parsing.
func Start(ctx context.Context, data []byte, filename string, opts Options) (*Run, error) {
	opts = opts.withDefaults()

	size := int64(len(data))
	if size > opts.MaxSize {
		return nil, apperrors.New(apperrors.KindFileTooLarge, "ingest",
			fmt.Errorf("%w: %d bytes exceeds the %d byte limit", apperrors.ErrFileTooLarge, size, opts.MaxSize))
	}
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:       uuid.New().String(),
		FileName: filename,
		events:   make(chan Event, 16),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	runCtx = logging.WithRun(runCtx, run.ID)

	w := &worker{run: run, ctx: runCtx, opts: opts, size: size}
	go w.process(data, format)

	return run, nil
}

// =============================================================================
// WORKER
// =============================================================================

type worker struct {
	run  *Run
	ctx  context.Context
	opts Options
	size int64
}

func (w *worker) process(data []byte, format Format) {
	log := logging.WithFields(w.ctx, "file", w.run.FileName, "bytes", w.size)

	defer close(w.run.done)
	defer close(w.run.events)
	defer w.run.cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in ingestion", "panic", r)
			w.emit(Event{Kind: EventError, Err: fmt.Errorf("internal error: %v", r)})
		}
	}()

	log.Info("ingest started")

	if w.size > w.opts.WarnSize {
		msg := fmt.Sprintf("Large file detected (%.1f MB). Processing may take a moment.", float64(w.size)/mb)
		log.Warn("large file", "warn_bytes", w.opts.WarnSize)
		if !w.emit(Event{Kind: EventAdvisory, Message: msg}) {
			return
		}
	}

	var err error
	switch format {
	case FormatCSV:
		err = w.processCSV(data)
	case FormatWorkbook:
		err = w.processWorkbook(data)
	}

	if w.ctx.Err() != nil {
		log.Info("ingest cancelled")
		return
	}
	if err != nil {
		log.Warn("ingest failed", "error", err)
		w.emit(Event{Kind: EventError, Err: err})
	}
}

// emit sends ev unless the run is cancelled. It reports whether the worker
// should continue.
func (w *worker) emit(ev Event) bool {
	ev.RunID = w.run.ID
	if err := w.ctx.Err(); err != nil {
		return false
	}
	// Published before the send so subscribers have seen an event by the
	// time the consumer acts on it.
	w.opts.Broadcaster.Publish(Update{RunID: w.run.ID, FileName: w.run.FileName, Kind: ev.Kind, Progress: ev.Progress})
	select {
	case w.run.events <- ev:
	case <-w.ctx.Done():
		return false
	}
	return true
}

func (w *worker) complete(total int) {
	logging.FromContext(w.ctx).Info("ingest complete", "rows", total)
	w.emit(Event{Kind: EventComplete, Progress: Progress{Percent: 100, Processed: total, Total: total}})
}

func (w *worker) processCSV(data []byte) error {
	text := csvparser.Normalize(string(data))
	total := csvparser.CountRecords(text)

	p, err := csvparser.NewStreamingParser(strings.NewReader(text))
	if err != nil {
		return apperrors.New(apperrors.KindEmptyInput, "ingest csv", fmt.Errorf("%w: %v", apperrors.ErrEmptyInput, err))
	}
	if !w.emit(Event{Kind: EventHeaders, Headers: p.Headers(), Progress: progressOf(0, total)}) {
		return nil
	}

	var (
		rows   = make([]types.Row, 0, w.opts.ChunkSize)
		index  int
		offset int
	)
	flush := func() bool {
		chunk := types.Chunk{Index: index, Offset: offset, Rows: rows}
		index++
		offset += len(rows)
		rows = make([]types.Row, 0, w.opts.ChunkSize)
		logging.FromContext(w.ctx).Debug("chunk", "index", chunk.Index, "rows", chunk.Len())
		return w.emit(Event{Kind: EventChunk, Chunk: chunk, Progress: progressOf(offset, total)})
	}

	for p.Next() {
		rows = append(rows, p.Row())
		if len(rows) == w.opts.ChunkSize && !flush() {
			return nil
		}
	}
	if err := p.Err(); err != nil {
		return apperrors.New(apperrors.KindMalformedInput, "ingest csv", err)
	}
	if len(rows) > 0 && !flush() {
		return nil
	}
	if offset == 0 {
		return apperrors.New(apperrors.KindEmptyInput, "ingest csv", apperrors.ErrEmptyInput)
	}

	w.complete(offset)
	return nil
}

func (w *worker) processWorkbook(data []byte) error {
	wb, err := xlsxparser.Open(data)
	if err != nil {
		return err
	}
	defer wb.Close()

	sheets, err := wb.Sheets()
	if err != nil {
		return err
	}
	if len(sheets) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", apperrors.ErrCorruptWorkbook)
	}

	sheet := w.opts.Sheet
	if sheet == "" {
		if len(sheets) > 1 {
			logging.FromContext(w.ctx).Info("sheet selection required", "sheets", len(sheets))
			w.emit(Event{Kind: EventSheetList, Sheets: sheets})
			return nil
		}
		sheet = sheets[0].Name
	}

	r, err := wb.ReadSheet(sheet, w.opts.ChunkSize)
	if err != nil {
		return err
	}
	defer r.Close()

	total := r.TotalRows()
	if total == 0 {
		return apperrors.New(apperrors.KindEmptyInput, "ingest workbook", apperrors.ErrEmptyInput)
	}
	if !w.emit(Event{Kind: EventHeaders, Headers: r.Headers(), Sheets: sheets, Progress: progressOf(0, total)}) {
		return nil
	}

	rows := 0
	for r.Next() {
		chunk := r.Chunk()
		rows += chunk.Len()
		logging.FromContext(w.ctx).Debug("chunk", "index", chunk.Index, "rows", chunk.Len())
		if !w.emit(Event{Kind: EventChunk, Chunk: chunk, Progress: progressOf(r.Processed(), total)}) {
			return nil
		}
	}
	if rows == 0 {
		return apperrors.New(apperrors.KindEmptyInput, "ingest workbook", apperrors.ErrEmptyInput)
	}

	w.complete(rows)
	return nil
}

// =============================================================================
// COLLECTION
// =============================================================================

// Result is the accumulated outcome of a run.
type Result struct {
	RunID   string
	Headers types.Headers
	Chunks  []types.Chunk
	Sheets  []types.SheetDescriptor

	// NeedsSheetSelection is set when the workbook has several sheets and
	// none was selected. Headers and Chunks are empty; Sheets lists the
	// choices.
	NeedsSheetSelection bool

	// Advisories holds non-fatal notices in the order they were emitted.
	Advisories []string
}

// Rows returns all rows in order.
func (r *Result) Rows() []types.Row {
	return types.Flatten(r.Chunks)
}

// Collect drains run and accumulates its events. It returns the run's error,
// or ctx's error if ctx ends first. A cancelled run yields
// context.Canceled and no partial result.
func Collect(ctx context.Context, run *Run) (*Result, error) {
	res := &Result{RunID: run.ID}
	for {
		select {
		case <-ctx.Done():
			run.Cancel()
			return nil, ctx.Err()
		case ev, ok := <-run.Events():
			if !ok {
				return nil, context.Canceled
			}
			if ev.RunID != run.ID {
				continue
			}
			switch ev.Kind {
			case EventAdvisory:
				res.Advisories = append(res.Advisories, ev.Message)
			case EventHeaders:
				res.Headers = ev.Headers
				res.Sheets = ev.Sheets
			case EventChunk:
				res.Chunks = append(res.Chunks, ev.Chunk)
			case EventSheetList:
				res.Sheets = ev.Sheets
				res.NeedsSheetSelection = true
				return res, nil
			case EventComplete:
				return res, nil
			case EventError:
				return nil, ev.Err
			}
		}
	}
}

// Ingest runs a full ingestion and waits for its result.
func Ingest(ctx context.Context, data []byte, filename string, opts Options) (*Result, error) {
	run, err := Start(ctx, data, filename, opts)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, run)
}

// ListSheets returns the sheets of a workbook file, or a single descriptor
// named after the file for CSV input.
func ListSheets(data []byte, filename string) ([]types.SheetDescriptor, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if format == FormatCSV {
		text := csvparser.Normalize(string(bytes.TrimSpace(data)))
		return []types.SheetDescriptor{{
			Name:     strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
			RowCount: len(csvparser.SplitLines(text)),
		}}, nil
	}
	return xlsxparser.ListSheets(data)
}
