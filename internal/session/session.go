// =============================================================================
// Inventory CSV Mapper - Session
// =============================================================================
//
// A Session holds the state of one user working on one file at a time: the
// loaded headers and chunks, the current mapping, the processing options and
// the active ingestion run.
//
// RUN OWNERSHIP:
//   Load cancels the previous run before starting a new one. Every event is
//   checked against the active run id; an event from an abandoned run is
//   rejected with ErrStaleRun and never merged.
//
// The session is safe for concurrent use. Convert works on a snapshot taken
// under the lock.
//
// =============================================================================

package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/converter"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/validation"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/writer"
)

var (
	// ErrStaleRun is returned for an event whose run is no longer active.
	ErrStaleRun = errors.New("event from an abandoned run")

	// ErrNoFile is returned by operations that need a loaded file.
	ErrNoFile = errors.New("no file loaded")
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Session.
type Options struct {
	Ingest  ingest.Options
	Convert converter.Options

	// Mapper suggests mappings. Nil maps locally only.
	Mapper *mapping.Mapper

	// WarningLimit caps row warnings in conversion reports.
	WarningLimit int
}

// OptionsFrom builds session options from the application config.
func OptionsFrom(cfg *config.Config, mapper *mapping.Mapper) Options {
	return Options{
		Ingest: ingest.Options{
			ChunkSize: cfg.Ingest.ChunkSize,
			WarnSize:  cfg.Ingest.WarnBytes(),
			MaxSize:   cfg.Ingest.MaxBytes(),
		},
		Convert:      converter.OptionsFrom(cfg, cfg.Processing),
		Mapper:       mapper,
		WarningLimit: validation.DefaultLimit,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the explicit state of one mapping workflow.
type Session struct {
	opts Options

	mu         sync.Mutex
	run        *ingest.Run
	fileName   string
	raw        []byte
	format     ingest.Format
	headers    types.Headers
	chunks     []types.Chunk
	sheets     []types.SheetDescriptor
	advisories []string
	mapping    mapping.FieldMapping
	processing config.ProcessingConfig
	loaded     bool

	// gen changes whenever file state is discarded.
	gen uint64
}

// New returns an empty session.
func New(opts Options) *Session {
	return &Session{
		opts:       opts,
		mapping:    mapping.Empty(),
		processing: opts.Convert.Processing,
	}
}

// LoadResult describes a finished Load.
type LoadResult struct {
	RunID               string                  `json:"runId"`
	FileName            string                  `json:"fileName"`
	Headers             types.Headers           `json:"headers"`
	Rows                int                     `json:"rows"`
	Sheets              []types.SheetDescriptor `json:"sheets"`
	NeedsSheetSelection bool                    `json:"needsSheetSelection"`
	Advisories          []string                `json:"advisories"`
}

// Load ingests data as the session's file. A previous run is cancelled and
// its state discarded. On success the mapping is reset to the local
// auto-mapping of the new headers.
//
// PARAMETERS:
//   - data: The raw file content.
//   - filename: Used for format detection and output naming.
//   - sheet: The workbook sheet to read; "" for CSV or a single-sheet book.
//
// RETURNS:
//   - The load summary. NeedsSheetSelection is set when sheet must be given.
//   - FileTooLarge, MalformedInput or EmptyInput errors from ingestion, or
//     context.Canceled when the run was superseded.
func (s *Session) Load(ctx context.Context, data []byte, filename, sheet string) (*LoadResult, error) {
	opts := s.opts.Ingest
	opts.Sheet = sheet

	s.mu.Lock()
	s.cancelLocked()
	s.clearLocked()

	format, err := ingest.DetectFormat(filename)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	run, err := ingest.Start(ctx, data, filename, opts)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.run = run
	s.fileName = filename
	s.raw = data
	s.format = format
	s.mu.Unlock()

	log := logging.WithFields(logging.WithRun(ctx, run.ID), "file", filename)

	for ev := range run.Events() {
		if err := s.Accept(ev); err != nil {
			if errors.Is(err, ErrStaleRun) {
				return nil, context.Canceled
			}
			return nil, err
		}
		switch ev.Kind {
		case ingest.EventSheetList:
			log.Info("sheet selection required", "sheets", len(ev.Sheets))
			return s.result(run.ID, true), nil
		case ingest.EventComplete:
			log.Info("file loaded", "rows", ev.Progress.Total)
			return s.result(run.ID, false), nil
		}
	}

	// Channel closed without a terminal event: the run was cancelled.
	return nil, context.Canceled
}

// Accept applies one ingestion event to the session. Events from a run other
// than the active one are rejected with ErrStaleRun. An error event clears
// the session and returns the run's error.
func (s *Session) Accept(ev ingest.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil || ev.RunID != s.run.ID {
		return fmt.Errorf("%w: %s", ErrStaleRun, ev.RunID)
	}

	switch ev.Kind {
	case ingest.EventAdvisory:
		s.advisories = append(s.advisories, ev.Message)
	case ingest.EventHeaders:
		s.headers = ev.Headers
		s.sheets = ev.Sheets
	case ingest.EventChunk:
		s.chunks = append(s.chunks, ev.Chunk)
	case ingest.EventSheetList:
		s.sheets = ev.Sheets
		s.run = nil
	case ingest.EventComplete:
		s.mapping = mapping.AutoMapCatalog(s.headers)
		s.loaded = true
		s.run = nil
	case ingest.EventError:
		s.clearLocked()
		s.run = nil
		return ev.Err
	}
	return nil
}

func (s *Session) result(runID string, needsSheet bool) *LoadResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &LoadResult{
		RunID:               runID,
		FileName:            s.fileName,
		Headers:             s.headers,
		Rows:                countRows(s.chunks),
		Sheets:              s.sheets,
		NeedsSheetSelection: needsSheet,
		Advisories:          s.advisories,
	}
}

// cancelLocked stops the active run. The caller holds s.mu.
func (s *Session) cancelLocked() {
	if s.run != nil {
		s.run.Cancel()
		s.run = nil
	}
}

// clearLocked discards file state. The caller holds s.mu.
func (s *Session) clearLocked() {
	s.fileName = ""
	s.raw = nil
	s.format = 0
	s.headers = nil
	s.chunks = nil
	s.sheets = nil
	s.advisories = nil
	s.mapping = mapping.Empty()
	s.loaded = false
	s.gen++
}

// Reset cancels any active run and discards all file state. Processing
// options are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.clearLocked()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// FileName returns the loaded file's name.
func (s *Session) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

// Headers returns the loaded header set.
func (s *Session) Headers() types.Headers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(types.Headers(nil), s.headers...)
}

// Rows returns all loaded rows in order.
func (s *Session) Rows() []types.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.Flatten(s.chunks)
}

// Sheets returns the workbook sheets seen by the last load.
func (s *Session) Sheets() []types.SheetDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.SheetDescriptor(nil), s.sheets...)
}

// Mapping returns a copy of the current mapping.
func (s *Session) Mapping() mapping.FieldMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Complete()
}

// Processing returns the current processing options.
func (s *Session) Processing() config.ProcessingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// SetProcessing replaces the processing options.
func (s *Session) SetProcessing(p config.ProcessingConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = p
}

// RawContent returns the text persisted with a saved mapping: the file
// itself for CSV input, or the loaded sheet rendered as CSV for workbooks.
func (s *Session) RawContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.format == ingest.FormatCSV {
		return string(s.raw)
	}
	if !s.loaded {
		return ""
	}
	return csvparser.EncodeRows(s.headers, types.Flatten(s.chunks))
}

// RawData returns the uploaded bytes.
func (s *Session) RawData() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// =============================================================================
// MAPPING EDITS
// =============================================================================

// SetField assigns header to one catalog field. An unknown field or header
// leaves the mapping unchanged.
func (s *Session) SetField(field, header string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.mapping.With(field, header, s.headers)
	if err != nil {
		return apperrors.New(apperrors.KindInvalidArgument, "set field", err)
	}
	s.mapping = m
	return nil
}

// ReplaceMapping swaps the whole mapping after validating it against the
// headers. Fields missing from m become unmapped.
func (s *Session) ReplaceMapping(m mapping.FieldMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := m.Validate(s.headers); err != nil {
		return apperrors.New(apperrors.KindInvalidArgument, "replace mapping", err)
	}
	s.mapping = m.Complete()
	return nil
}

// AutoMap recomputes the mapping from the headers, using the semantic
// service when one is configured. A service failure is reported in the
// result and the local mapping is used.
func (s *Session) AutoMap(ctx context.Context) (mapping.Result, error) {
	s.mu.Lock()
	headers := append(types.Headers(nil), s.headers...)
	gen := s.gen
	s.mu.Unlock()
	if len(headers) == 0 {
		return mapping.Result{}, ErrNoFile
	}

	mapper := s.opts.Mapper
	if mapper == nil {
		mapper = mapping.NewMapper(nil, 0)
	}
	res := mapper.Map(ctx, headers)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// A new file was loaded while the service was running.
		return mapping.Result{}, context.Canceled
	}
	s.mapping = res.Mapping.Complete()
	return res, nil
}

// =============================================================================
// CONVERSION
// =============================================================================

// Output is a converted file.
type Output struct {
	Data   []byte
	Format writer.Format
	Stats  converter.Stats
	Report validation.Report
}

// Convert transforms the loaded rows under the current mapping and
// processing options and serializes them.
func (s *Session) Convert(ctx context.Context, format writer.Format) (*Output, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNoFile
	}
	headers := s.headers
	chunks := s.chunks
	m := s.mapping.Complete()
	opts := s.opts.Convert
	opts.Processing = s.processing
	s.mu.Unlock()

	c, err := converter.New(headers, m, opts)
	if err != nil {
		return nil, err
	}
	rows, stats, err := c.TransformChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	report := validation.Check(m, rows, s.opts.WarningLimit)
	if !report.Mapping.Ready() {
		logging.FromContext(ctx).Warn("required fields unmapped", "fields", report.Mapping.UnmappedRequired)
	}

	chunkSize := s.opts.Ingest.ChunkSize
	if chunkSize <= 0 {
		chunkSize = writer.DefaultChunkSize
	}
	var buf bytes.Buffer
	if err := writer.Write(&buf, rows, c.Fields(), format, chunkSize); err != nil {
		return nil, fmt.Errorf("failed to serialize output: %w", err)
	}

	return &Output{Data: buf.Bytes(), Format: format, Stats: stats, Report: report}, nil
}

func countRows(chunks []types.Chunk) int {
	n := 0
	for _, c := range chunks {
		n += c.Len()
	}
	return n
}
