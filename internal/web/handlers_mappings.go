package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/store"
)

var errStoreDisabled = errors.New("persistence is not configured")

type saveMappingRequest struct {
	Filename   string               `json:"filename"`
	Mapping    mapping.FieldMapping `json:"mapping"`
	RawContent string               `json:"rawContent"`
}

// requireStore writes 503 and returns false when no store is configured.
func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store == nil {
		s.respondError(w, r, errStoreDisabled, http.StatusServiceUnavailable)
		return false
	}
	return true
}

// requireUser returns the X-User-ID header, or writes 400 when it is missing.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, r.URL.Path, errors.New("X-User-ID header is required")), 0)
		return "", false
	}
	return userID, true
}

// handleListMappings returns the user's saved mappings, newest first.
func (s *Server) handleListMappings(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	saved, err := s.store.List(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if saved == nil {
		saved = []store.SavedMapping{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mappings": saved})
}

// handleSaveMapping stores a mapping. The free-plan quota answers 402.
func (s *Server) handleSaveMapping(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req saveMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "save mapping", fmt.Errorf("invalid request body: %w", err)), 0)
		return
	}

	saved, err := s.store.Save(r.Context(), store.SaveRequest{
		UserID:     userID,
		Filename:   req.Filename,
		Mapping:    req.Mapping,
		RawContent: req.RawContent,
	})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// handleDeleteMapping removes a saved mapping by id.
func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadProcessing returns the user's processing options.
func (s *Server) handleLoadProcessing(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	p, err := s.store.LoadProcessingConfig(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSaveProcessing replaces the user's processing options.
func (s *Server) handleSaveProcessing(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w, r) {
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	p := config.DefaultProcessing()
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, r, apperrors.New(apperrors.KindInvalidArgument, "save processing", fmt.Errorf("invalid request body: %w", err)), 0)
		return
	}
	if err := s.store.SaveProcessingConfig(r.Context(), userID, p); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
