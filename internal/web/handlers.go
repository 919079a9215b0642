package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/session"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/validation"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/writer"
	"github.com/ginjaninja78/inventory-csv-mapper/pkg/utils"
)

// Response headers set by the convert endpoint.
const (
	HeaderUnmappedRequired = "X-Unmapped-Required"
	HeaderOutputRows       = "X-Output-Rows"
	HeaderRowWarnings      = "X-Row-Warnings"
	HeaderUserID           = "X-User-ID"
)

// =============================================================================
// CATALOG
// =============================================================================

type fieldInfo struct {
	Name     string           `json:"name"`
	Category mapping.Category `json:"category"`
}

// handleFields returns the catalog in output order with categories.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	fields := mapping.Fields()
	out := make([]fieldInfo, 0, len(fields))
	for _, f := range fields {
		c, _ := mapping.CategoryOf(f)
		out = append(out, fieldInfo{Name: f, Category: c})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":   out,
		"required": mapping.FieldsIn(mapping.Required),
	})
}

// =============================================================================
// UPLOADS
// =============================================================================

type upload struct {
	name string
	data []byte
}

// readUpload reads the multipart "file" part under the ingest size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	limit := s.cfg.Ingest.MaxBytes() + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.New(apperrors.KindFileTooLarge, "upload", fmt.Errorf("%w: %v", apperrors.ErrFileTooLarge, err))
		}
		return nil, apperrors.New(apperrors.KindInvalidArgument, "upload", fmt.Errorf("invalid multipart form: %w", err))
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "upload", fmt.Errorf("missing file: %w", err))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &upload{name: header.Filename, data: data}, nil
}

// handleSheets lists the sheets of an uploaded workbook.
func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	sheets, err := ingest.ListSheets(up.data, up.name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fileName": up.name, "sheets": sheets})
}

// =============================================================================
// AUTO-MAPPING
// =============================================================================

type autoMapRequest struct {
	Headers []string `json:"headers"`
}

type autoMapResponse struct {
	Mapping          mapping.FieldMapping `json:"mapping"`
	Source           mapping.Source       `json:"source"`
	UnmappedRequired []string             `json:"unmappedRequired"`
	Warning          string               `json:"warning,omitempty"`
}

// handleAutoMap maps a header set, using the semantic service when one is
// configured. A service failure still returns the local mapping.
func (s *Server) handleAutoMap(w http.ResponseWriter, r *http.Request) {
	var req autoMapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "automap", fmt.Errorf("invalid request body: %w", err)), 0)
		return
	}
	if len(req.Headers) == 0 {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "automap", errors.New("headers are required")), 0)
		return
	}

	mapper := s.mapper
	if mapper == nil {
		mapper = mapping.NewMapper(nil, 0)
	}
	res := mapper.Map(r.Context(), types.Headers(req.Headers))

	resp := autoMapResponse{
		Mapping:          res.Mapping,
		Source:           res.Source,
		UnmappedRequired: validation.CheckMapping(res.Mapping).UnmappedRequired,
	}
	if res.Fallback != nil {
		resp.Warning = apperrors.Message(res.Fallback).Message
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CONVERSION
// =============================================================================

// handleConvert ingests the uploaded file, applies the mapping and the
// processing options, and returns the output file.
//
// Form fields:
//   - file: The CSV or workbook.
//   - sheet: The workbook sheet; required when the workbook has several.
//   - mapping: JSON object of catalog field to header. Omitted means auto-map.
//   - config: JSON processing options. Omitted means the user's saved options.
//   - format: "csv" (default) or "xlsx".
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	format, err := writer.ParseFormat(r.FormValue("format"))
	if err != nil {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "convert", err), 0)
		return
	}
	userID := r.Header.Get(HeaderUserID)

	processing, err := s.processingFor(r, userID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	sess := s.newSession()
	sess.SetProcessing(processing)

	res, err := sess.Load(ctx, up.data, up.name, r.FormValue("sheet"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if res.NeedsSheetSelection {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "sheet selection required",
			"sheets": res.Sheets,
		})
		return
	}

	if raw := r.FormValue("mapping"); raw != "" {
		var m mapping.FieldMapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "convert", fmt.Errorf("invalid mapping: %w", err)), 0)
			return
		}
		if err := sess.ReplaceMapping(m); err != nil {
			s.respondError(w, r, err, 0)
			return
		}
	} else if s.mapper.Remote() {
		if _, err := sess.AutoMap(ctx); err != nil {
			s.respondError(w, r, err, 0)
			return
		}
	}

	s.archiveUpload(r, userID, up)

	out, err := sess.Convert(ctx, format)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	name := utils.GenerateOutputFileName(s.cfg.Output.FileNameFormat, up.name, format.Extension())
	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	h.Set(HeaderOutputRows, strconv.Itoa(out.Stats.OutputRows))
	h.Set(HeaderRowWarnings, strconv.Itoa(out.Report.Rows.Total))
	if missing := out.Report.Mapping.UnmappedRequired; len(missing) > 0 {
		h.Set(HeaderUnmappedRequired, strings.Join(missing, ","))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		logging.FromContext(ctx).Warn("failed to write output", "error", err)
	}
}

func (s *Server) newSession() *session.Session {
	opts := session.OptionsFrom(s.cfg, s.mapper)
	opts.Ingest.Broadcaster = s.progress
	return session.New(opts)
}

// processingFor returns the "config" form options, else the user's saved
// options, else the configured defaults.
func (s *Server) processingFor(r *http.Request, userID string) (config.ProcessingConfig, error) {
	if raw := r.FormValue("config"); raw != "" {
		p := s.cfg.Processing
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return p, apperrors.New(apperrors.KindInvalidArgument, "convert", fmt.Errorf("invalid config: %w", err))
		}
		return p, nil
	}
	if s.store == nil || userID == "" {
		return s.cfg.Processing, nil
	}

	p, err := s.store.LoadProcessingConfig(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("failed to load processing options, using defaults", "user", userID, "error", err)
		return s.cfg.Processing, nil
	}
	return p, nil
}

// archiveUpload stores the raw file when an archiver is configured. Failures
// are logged only.
func (s *Server) archiveUpload(r *http.Request, userID string, up *upload) {
	if s.archiver == nil {
		return
	}
	if _, err := s.archiver.Upload(r.Context(), userID, up.name, up.data); err != nil {
		logging.FromContext(r.Context()).Warn("archive upload failed", "file", up.name, "error", err)
	}
}

// =============================================================================
// PROGRESS
// =============================================================================

// handleProgress streams ingestion progress as server-sent events until the
// client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := s.progress.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSSE(w, "progress", u); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
