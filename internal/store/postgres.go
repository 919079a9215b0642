package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS saved_mappings (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     TEXT NOT NULL,
	filename    TEXT NOT NULL,
	mapping     JSONB NOT NULL,
	raw_content TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS saved_mappings_user_id_idx ON saved_mappings (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS processing_configs (
	user_id             TEXT PRIMARY KEY,
	brand_filter        TEXT NOT NULL DEFAULT '',
	weight_adjustment   DOUBLE PRECISION NOT NULL DEFAULT 2.0,
	nationwide_shipping BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Postgres is the server Store backend. A database-side quota trigger
// raising "upgrade to save more files" is reported as LimitExceeded, the
// same as the client-side free limit check.
type Postgres struct {
	pool      *pgxpool.Pool
	freeLimit int
}

// NewPostgres connects to dsn, verifies the connection and creates the
// tables when missing.
func NewPostgres(ctx context.Context, dsn string, freeLimit int) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store: database url not set")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{pool: pool, freeLimit: freeLimit}, nil
}

func (p *Postgres) Save(ctx context.Context, req SaveRequest) (SavedMapping, error) {
	if err := validateSave(req); err != nil {
		return SavedMapping{}, err
	}
	data, err := encodeMapping(req.Mapping)
	if err != nil {
		return SavedMapping{}, err
	}

	if p.freeLimit > 0 {
		var n int
		err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM saved_mappings WHERE user_id = $1`, req.UserID).Scan(&n)
		if err != nil {
			return SavedMapping{}, classify("save mapping", err)
		}
		if n >= p.freeLimit {
			return SavedMapping{}, limitError(p.freeLimit)
		}
	}

	out := SavedMapping{UserID: req.UserID, Filename: req.Filename}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO saved_mappings (user_id, filename, mapping, raw_content)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, created_at
	`, req.UserID, req.Filename, data, req.RawContent).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return SavedMapping{}, classify("save mapping", err)
	}

	out.Mapping, _ = decodeMapping(data)
	return out, nil
}

func (p *Postgres) List(ctx context.Context, userID string) ([]SavedMapping, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, user_id, filename, mapping, created_at
		FROM saved_mappings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, classify("list mappings", err)
	}
	defer rows.Close()

	var out []SavedMapping
	for rows.Next() {
		var (
			s   SavedMapping
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Filename, &raw, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		if s.Mapping, err = decodeMapping(raw); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list mappings", err)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM saved_mappings WHERE id::text = $1`, id)
	if err != nil {
		return classify("delete mapping", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, "delete mapping", fmt.Errorf("%w: %s", apperrors.ErrNotFound, id))
	}
	return nil
}

func (p *Postgres) SaveProcessingConfig(ctx context.Context, userID string, cfg config.ProcessingConfig) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO processing_configs (user_id, brand_filter, weight_adjustment, nationwide_shipping)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET
			brand_filter = EXCLUDED.brand_filter,
			weight_adjustment = EXCLUDED.weight_adjustment,
			nationwide_shipping = EXCLUDED.nationwide_shipping,
			updated_at = NOW()
	`, userID, cfg.BrandFilter, cfg.WeightAdjustment, cfg.NationwideShipping)
	return classify("save processing config", err)
}

func (p *Postgres) LoadProcessingConfig(ctx context.Context, userID string) (config.ProcessingConfig, error) {
	var cfg config.ProcessingConfig
	err := p.pool.QueryRow(ctx, `
		SELECT brand_filter, weight_adjustment, nationwide_shipping
		FROM processing_configs
		WHERE user_id = $1
	`, userID).Scan(&cfg.BrandFilter, &cfg.WeightAdjustment, &cfg.NationwideShipping)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return config.DefaultProcessing(), nil
	case err != nil:
		return config.ProcessingConfig{}, classify("load processing config", err)
	}
	return cfg, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
