// Package store persists saved mappings and per-user processing options.
//
// Two backends implement Store: Postgres (pgxpool) for the hosted server and
// SQLite (gorm) for local use. Both enforce the free-plan quota and classify
// backend errors into the apperrors taxonomy, so callers can tell a quota
// rejection from a generic failure.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
)

// SavedMapping is a stored mapping with its metadata.
type SavedMapping struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	Filename  string               `json:"filename"`
	Mapping   mapping.FieldMapping `json:"mapping"`
	CreatedAt time.Time            `json:"createdAt"`
}

// SaveRequest is the input of Store.Save.
type SaveRequest struct {
	UserID     string               `json:"userId"`
	Filename   string               `json:"filename"`
	Mapping    mapping.FieldMapping `json:"mapping"`
	RawContent string               `json:"rawContent"`
}

// Store is the mapping persistence API.
type Store interface {
	// Save stores a mapping. It fails with KindLimitExceeded when the user
	// already holds the quota of saved mappings.
	Save(ctx context.Context, req SaveRequest) (SavedMapping, error)

	// List returns the user's mappings, newest first.
	List(ctx context.Context, userID string) ([]SavedMapping, error)

	// Delete removes a mapping. An unknown id is KindNotFound.
	Delete(ctx context.Context, id string) error

	// SaveProcessingConfig stores the user's processing options.
	SaveProcessingConfig(ctx context.Context, userID string, cfg config.ProcessingConfig) error

	// LoadProcessingConfig returns the stored options, or the defaults when
	// none were saved.
	LoadProcessingConfig(ctx context.Context, userID string) (config.ProcessingConfig, error)

	Close() error
}

// Open opens the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		s, err := NewSQLite(cfg.DSN, cfg.FreeLimit)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		p, err := NewPostgres(ctx, cfg.DSN, cfg.FreeLimit)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Driver)
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func validateSave(req SaveRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return apperrors.New(apperrors.KindInvalidArgument, "save mapping", errors.New("user id is required"))
	case strings.TrimSpace(req.Filename) == "":
		return apperrors.New(apperrors.KindInvalidArgument, "save mapping", errors.New("filename is required"))
	}
	for field := range req.Mapping {
		if !mapping.IsField(field) {
			return apperrors.New(apperrors.KindInvalidArgument, "save mapping", fmt.Errorf("%w: %q", apperrors.ErrUnknownField, field))
		}
	}
	return nil
}

func limitError(limit int) error {
	return apperrors.New(apperrors.KindLimitExceeded, "save mapping",
		fmt.Errorf("%w: free plan allows %d saved files, upgrade to save more files", apperrors.ErrLimitExceeded, limit))
}

// classify maps a backend error to the taxonomy. Quota trigger messages
// become LimitExceeded; everything else is an external service failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if apperrors.IsQuotaMessage(err.Error()) {
		return apperrors.New(apperrors.KindLimitExceeded, op, fmt.Errorf("%w: %v", apperrors.ErrLimitExceeded, err))
	}
	return apperrors.External(op, err)
}

func encodeMapping(m mapping.FieldMapping) ([]byte, error) {
	data, err := json.Marshal(m.Complete())
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping: %w", err)
	}
	return data, nil
}

func decodeMapping(data []byte) (mapping.FieldMapping, error) {
	m := mapping.FieldMapping{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode mapping: %w", err)
		}
	}
	return m.Complete(), nil
}
