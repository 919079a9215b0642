package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
)

func newTestStore(t *testing.T, limit int) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "mapper.db"), limit)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMapping() mapping.FieldMapping {
	m := mapping.Empty()
	m[mapping.FieldTitle] = "Name"
	m[mapping.FieldPrice] = "Price"
	return m
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	first, err := s.Save(ctx, SaveRequest{UserID: "u1", Filename: "a.csv", Mapping: sampleMapping(), RawContent: "Name,Price\n"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Name", first.Mapping[mapping.FieldTitle])
	assert.Len(t, first.Mapping, len(mapping.Fields()))

	second, err := s.Save(ctx, SaveRequest{UserID: "u1", Filename: "b.csv", Mapping: mapping.FieldMapping{mapping.FieldHandle: "SKU"}})
	require.NoError(t, err)

	_, err = s.Save(ctx, SaveRequest{UserID: "u2", Filename: "c.csv", Mapping: sampleMapping()})
	require.NoError(t, err)

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "SKU", list[0].Mapping[mapping.FieldHandle])
	assert.Equal(t, "", list[0].Mapping[mapping.FieldTitle])
	assert.Equal(t, "a.csv", list[1].Filename)

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveValidation(t *testing.T) {
	s := newTestStore(t, 0)
	tests := []struct {
		name string
		req  SaveRequest
	}{
		{"missing user", SaveRequest{Filename: "a.csv"}},
		{"missing filename", SaveRequest{UserID: "u1"}},
		{"unknown field", SaveRequest{UserID: "u1", Filename: "a.csv", Mapping: mapping.FieldMapping{"Colour": "c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Save(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
		})
	}
}

func TestFreeLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)

	for _, name := range []string{"a.csv", "b.csv"} {
		_, err := s.Save(ctx, SaveRequest{UserID: "u1", Filename: name, Mapping: sampleMapping()})
		require.NoError(t, err)
	}

	_, err := s.Save(ctx, SaveRequest{UserID: "u1", Filename: "c.csv", Mapping: sampleMapping()})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindLimitExceeded, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apperrors.ErrLimitExceeded)
	assert.Equal(t, "MAP020", apperrors.Message(err).Code)

	_, err = s.Save(ctx, SaveRequest{UserID: "u2", Filename: "c.csv", Mapping: sampleMapping()})
	assert.NoError(t, err, "quota is per user")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 1)

	saved, err := s.Save(ctx, SaveRequest{UserID: "u1", Filename: "a.csv", Mapping: sampleMapping()})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, saved.ID))

	list, err := s.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, list)

	err = s.Delete(ctx, saved.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.Save(ctx, SaveRequest{UserID: "u1", Filename: "b.csv", Mapping: sampleMapping()})
	assert.NoError(t, err, "delete frees a slot")
}

func TestProcessingConfig(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 0)

	cfg, err := s.LoadProcessingConfig(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProcessing(), cfg)

	want := config.ProcessingConfig{BrandFilter: "Acme", WeightAdjustment: 0, NationwideShipping: true}
	require.NoError(t, s.SaveProcessingConfig(ctx, "u1", want))

	got, err := s.LoadProcessingConfig(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	want.BrandFilter = "Zed"
	require.NoError(t, s.SaveProcessingConfig(ctx, "u1", want))
	got, err = s.LoadProcessingConfig(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Zed", got.BrandFilter)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Kind
	}{
		{"quota trigger", errors.New("ERROR: Free plan limit reached. Please upgrade to save more files. (SQLSTATE P0001)"), apperrors.KindLimitExceeded},
		{"generic", errors.New("connection refused"), apperrors.KindExternalServiceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.KindOf(classify("op", tt.err)))
		})
	}
	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.StoreConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "database url not set")
}
