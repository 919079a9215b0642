package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/writer"
)

const widgetCSV = "Name,Price\n\"Widget, Deluxe\",9.99\n"

type fakeSuggester struct {
	suggestion map[string]string
	err        error
}

func (f *fakeSuggester) Configured() bool { return true }

func (f *fakeSuggester) Suggest(context.Context, []string, []string) (map[string]string, error) {
	return f.suggestion, f.err
}

func newSession(t *testing.T) *Session {
	t.Helper()
	return New(OptionsFrom(config.Default(), nil))
}

func workbook(t *testing.T, sheets map[string][][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			for j, v := range row {
				cell, err := excelize.CoordinatesToCellName(j+1, i+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(name, cell, v))
			}
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestLoadCSV(t *testing.T) {
	s := newSession(t)

	res, err := s.Load(context.Background(), []byte(widgetCSV), "feed.csv", "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "feed.csv", res.FileName)
	assert.Equal(t, 1, res.Rows)
	assert.False(t, res.NeedsSheetSelection)
	assert.Equal(t, []string{"Name", "Price"}, []string(s.Headers()))
	require.Len(t, s.Rows(), 1)
	assert.Equal(t, "Widget, Deluxe", s.Rows()[0]["Name"])
	assert.Equal(t, "Price", s.Mapping()[mapping.FieldPrice], "load auto-maps")
	assert.Len(t, s.Mapping(), len(mapping.Fields()))
	assert.Equal(t, widgetCSV, s.RawContent())
}

func TestLoadReplacesPreviousFile(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	first, err := s.Load(ctx, []byte("A\n1\n2\n"), "a.csv", "")
	require.NoError(t, err)

	_, err = s.Load(ctx, []byte(widgetCSV), "b.csv", "")
	require.NoError(t, err)

	assert.Equal(t, "b.csv", s.FileName())
	assert.Equal(t, []string{"Name", "Price"}, []string(s.Headers()))
	assert.Len(t, s.Rows(), 1)

	err = s.Accept(ingest.Event{Kind: ingest.EventChunk, RunID: first.RunID})
	assert.ErrorIs(t, err, ErrStaleRun)
	assert.Len(t, s.Rows(), 1, "stale chunk is not merged")
}

func TestAcceptWithoutRun(t *testing.T) {
	s := newSession(t)
	assert.ErrorIs(t, s.Accept(ingest.Event{Kind: ingest.EventHeaders, RunID: "x"}), ErrStaleRun)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		filename string
		kind     apperrors.Kind
	}{
		{"header only", "Name,Price\n", "a.csv", apperrors.KindEmptyInput},
		{"blank", "", "a.csv", apperrors.KindEmptyInput},
		{"unsupported", "x", "a.txt", apperrors.KindMalformedInput},
		{"corrupt workbook", "not a zip", "a.xlsx", apperrors.KindMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(t)
			_, err := s.Load(context.Background(), []byte(tt.data), tt.filename, "")
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.Empty(t, s.Headers())
			assert.Empty(t, s.Rows())
		})
	}
}

func TestLoadTooLarge(t *testing.T) {
	opts := OptionsFrom(config.Default(), nil)
	opts.Ingest.MaxSize = 10
	s := New(opts)

	_, err := s.Load(context.Background(), []byte(widgetCSV), "a.csv", "")
	assert.Equal(t, apperrors.KindFileTooLarge, apperrors.KindOf(err))
}

func TestLoadWorkbookSheetSelection(t *testing.T) {
	data := workbook(t, map[string][][]string{
		"Products": {{"Title", "Variant Price"}, {"Lamp", "10"}, {"Desk", "99"}},
		"Notes":    {{"Note"}, {"ignore"}},
	})
	s := newSession(t)
	ctx := context.Background()

	res, err := s.Load(ctx, data, "book.xlsx", "")
	require.NoError(t, err)
	assert.True(t, res.NeedsSheetSelection)
	assert.Len(t, res.Sheets, 2)
	assert.Empty(t, s.Rows())

	_, err = s.Convert(ctx, writer.FormatCSV)
	assert.ErrorIs(t, err, ErrNoFile)

	res, err = s.Load(ctx, data, "book.xlsx", "Products")
	require.NoError(t, err)
	assert.False(t, res.NeedsSheetSelection)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "Title", s.Mapping()[mapping.FieldTitle])

	raw := s.RawContent()
	headers, rows, err := csvparser.ReadAll(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "Variant Price"}, []string(headers))
	assert.Len(t, rows, 2)
}

func TestMappingEdits(t *testing.T) {
	s := newSession(t)
	_, err := s.Load(context.Background(), []byte(widgetCSV), "feed.csv", "")
	require.NoError(t, err)

	require.NoError(t, s.SetField(mapping.FieldTitle, "Name"))
	assert.Equal(t, "Name", s.Mapping()[mapping.FieldTitle])

	before := s.Mapping()
	err = s.SetField(mapping.FieldTitle, "Missing")
	assert.ErrorIs(t, err, apperrors.ErrUnknownHeader)
	assert.Equal(t, before, s.Mapping(), "rejected edit leaves mapping intact")

	err = s.SetField("Colour", "Name")
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)

	require.NoError(t, s.ReplaceMapping(mapping.FieldMapping{mapping.FieldTitle: "Name"}))
	m := s.Mapping()
	assert.Equal(t, "Name", m[mapping.FieldTitle])
	assert.Equal(t, "", m[mapping.FieldPrice])
	assert.Len(t, m, len(mapping.Fields()))

	err = s.ReplaceMapping(mapping.FieldMapping{mapping.FieldTitle: "Nope"})
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
	assert.Equal(t, m, s.Mapping())
}

func TestAutoMap(t *testing.T) {
	ctx := context.Background()

	t.Run("no file", func(t *testing.T) {
		_, err := newSession(t).AutoMap(ctx)
		assert.ErrorIs(t, err, ErrNoFile)
	})

	t.Run("remote suggestion", func(t *testing.T) {
		opts := OptionsFrom(config.Default(), mapping.NewMapper(&fakeSuggester{
			suggestion: map[string]string{mapping.FieldTitle: "Name", mapping.FieldSKU: "Missing"},
		}, 0))
		s := New(opts)
		_, err := s.Load(ctx, []byte(widgetCSV), "feed.csv", "")
		require.NoError(t, err)

		res, err := s.AutoMap(ctx)
		require.NoError(t, err)
		assert.Equal(t, mapping.SourceRemote, res.Source)
		assert.Equal(t, "Name", s.Mapping()[mapping.FieldTitle])
		assert.Equal(t, "", s.Mapping()[mapping.FieldSKU])
	})

	t.Run("fallback", func(t *testing.T) {
		opts := OptionsFrom(config.Default(), mapping.NewMapper(&fakeSuggester{err: errors.New("boom")}, 0))
		s := New(opts)
		_, err := s.Load(ctx, []byte(widgetCSV), "feed.csv", "")
		require.NoError(t, err)

		res, err := s.AutoMap(ctx)
		require.NoError(t, err)
		assert.Equal(t, mapping.SourceLocal, res.Source)
		assert.Equal(t, apperrors.KindExternalServiceFailure, apperrors.KindOf(res.Fallback))
		assert.Equal(t, "Price", s.Mapping()[mapping.FieldPrice])
	})
}

func TestConvert(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	_, err := s.Convert(ctx, writer.FormatCSV)
	assert.ErrorIs(t, err, ErrNoFile)

	_, err = s.Load(ctx, []byte(widgetCSV), "feed.csv", "")
	require.NoError(t, err)
	require.NoError(t, s.ReplaceMapping(mapping.FieldMapping{
		mapping.FieldTitle: "Name",
		mapping.FieldPrice: "Price",
	}))

	out, err := s.Convert(ctx, writer.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, writer.FormatCSV, out.Format)
	assert.Equal(t, 1, out.Stats.OutputRows)
	assert.ElementsMatch(t, []string{mapping.FieldHandle, mapping.FieldInventoryQty}, out.Report.Mapping.UnmappedRequired)

	headers, rows, err := csvparser.ReadAll(strings.NewReader(string(out.Data)))
	require.NoError(t, err)
	assert.Equal(t, mapping.Fields(), []string(headers))
	require.Len(t, rows, 1)
	assert.Equal(t, "Widget, Deluxe", rows[0][mapping.FieldTitle])
	assert.Equal(t, "9.99", rows[0][mapping.FieldPrice])
	assert.Equal(t, "draft", rows[0][mapping.FieldStatus])
}

func TestConvertUsesProcessing(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	_, err := s.Load(ctx, []byte("Title,Brand Name\nLamp,Acme\nDesk,Other\n"), "feed.csv", "")
	require.NoError(t, err)

	p := s.Processing()
	p.BrandFilter = "Acme"
	s.SetProcessing(p)

	out, err := s.Convert(ctx, writer.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.OutputRows)
	assert.Equal(t, 1, out.Stats.FilteredRows)
}

func TestReset(t *testing.T) {
	s := newSession(t)
	_, err := s.Load(context.Background(), []byte(widgetCSV), "feed.csv", "")
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.Headers())
	assert.Empty(t, s.Rows())
	assert.Equal(t, "", s.FileName())
	assert.Equal(t, mapping.Empty(), s.Mapping())
	assert.Equal(t, 2.0, s.Processing().WeightAdjustment, "processing options are kept")
}
