package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
)

// mappingRecord is a saved mapping row.
type mappingRecord struct {
	ID         string    `gorm:"primaryKey;type:text"`
	UserID     string    `gorm:"index;not null"`
	Filename   string    `gorm:"not null"`
	Mapping    string    `gorm:"type:text;not null"` // JSON object
	RawContent string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null"`
}

// processingRecord holds one user's processing options.
type processingRecord struct {
	UserID             string  `gorm:"primaryKey;type:text"`
	BrandFilter        string  `gorm:"not null"`
	WeightAdjustment   float64 `gorm:"not null"`
	NationwideShipping bool    `gorm:"not null"`
	UpdatedAt          time.Time
}

func (mappingRecord) TableName() string    { return "saved_mappings" }
func (processingRecord) TableName() string { return "processing_configs" }

// SQLite is the local Store backend.
type SQLite struct {
	db        *gorm.DB
	freeLimit int
}

// NewSQLite opens (and migrates) the database file at path. A freeLimit of 0
// disables the quota.
func NewSQLite(path string, freeLimit int) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&mappingRecord{}, &processingRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return &SQLite{db: db, freeLimit: freeLimit}, nil
}

func (s *SQLite) Save(ctx context.Context, req SaveRequest) (SavedMapping, error) {
	if err := validateSave(req); err != nil {
		return SavedMapping{}, err
	}
	data, err := encodeMapping(req.Mapping)
	if err != nil {
		return SavedMapping{}, err
	}

	rec := mappingRecord{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Filename:   req.Filename,
		Mapping:    string(data),
		RawContent: req.RawContent,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.freeLimit > 0 {
			var n int64
			if err := tx.Model(&mappingRecord{}).Where("user_id = ?", req.UserID).Count(&n).Error; err != nil {
				return err
			}
			if n >= int64(s.freeLimit) {
				return limitError(s.freeLimit)
			}
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindLimitExceeded {
			return SavedMapping{}, err
		}
		return SavedMapping{}, classify("save mapping", err)
	}

	m, _ := decodeMapping(data)
	return SavedMapping{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Filename:  rec.Filename,
		Mapping:   m,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *SQLite) List(ctx context.Context, userID string) ([]SavedMapping, error) {
	var recs []mappingRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("rowid DESC").
		Find(&recs).Error
	if err != nil {
		return nil, classify("list mappings", err)
	}

	out := make([]SavedMapping, 0, len(recs))
	for _, r := range recs {
		m, err := decodeMapping([]byte(r.Mapping))
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", r.ID, err)
		}
		out = append(out, SavedMapping{
			ID:        r.ID,
			UserID:    r.UserID,
			Filename:  r.Filename,
			Mapping:   m,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&mappingRecord{})
	if res.Error != nil {
		return classify("delete mapping", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.KindNotFound, "delete mapping", fmt.Errorf("%w: %s", apperrors.ErrNotFound, id))
	}
	return nil
}

func (s *SQLite) SaveProcessingConfig(ctx context.Context, userID string, cfg config.ProcessingConfig) error {
	rec := processingRecord{
		UserID:             userID,
		BrandFilter:        cfg.BrandFilter,
		WeightAdjustment:   cfg.WeightAdjustment,
		NationwideShipping: cfg.NationwideShipping,
		UpdatedAt:          time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	return classify("save processing config", err)
}

func (s *SQLite) LoadProcessingConfig(ctx context.Context, userID string) (config.ProcessingConfig, error) {
	var rec processingRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return config.DefaultProcessing(), nil
	case err != nil:
		return config.ProcessingConfig{}, classify("load processing config", err)
	}
	return config.ProcessingConfig{
		BrandFilter:        rec.BrandFilter,
		WeightAdjustment:   rec.WeightAdjustment,
		NationwideShipping: rec.NationwideShipping,
	}, nil
}

// Close closes the underlying connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
