package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

var testHeaders = types.Headers{"Handle", "Title", "Variant Price", "Body (HTML)"}

func testRows() []types.Row {
	return []types.Row{
		{"Handle": "widget", "Title": "Widget, Deluxe", "Variant Price": "9.99", "Body (HTML)": "<p>He said \"hi\"</p>"},
		{"Handle": "lamp", "Title": "Lamp", "Variant Price": "0012", "Body (HTML)": "=SUM(A1)"},
		{"Handle": "empty"},
	}
}

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"out.xlsx", FormatXLSX},
		{"OUT.XLSX", FormatXLSX},
		{"out.csv", FormatCSV},
		{"out.xls", FormatCSV},
		{"out", FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatFromFilename(tt.name))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestSerializeCSV(t *testing.T) {
	data, err := Serialize(testRows(), testHeaders, FormatCSV)
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "Handle,Title,Variant Price,Body (HTML)\n"))
	assert.Contains(t, text, `widget,"Widget, Deluxe",9.99,"<p>He said ""hi""</p>"`)
	assert.True(t, strings.HasSuffix(text, "empty,,,\n"))

	headers, rows, err := csvparser.ReadAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, testHeaders, headers)
	require.Len(t, rows, 3)
	assert.Equal(t, "Widget, Deluxe", rows[0]["Title"])
	assert.Equal(t, "<p>He said \"hi\"</p>", rows[0]["Body (HTML)"])
}

func TestSerializeCSVChunkSizeDoesNotChangeOutput(t *testing.T) {
	var whole, chunked bytes.Buffer
	require.NoError(t, Write(&whole, testRows(), testHeaders, FormatCSV, 100))
	require.NoError(t, Write(&chunked, testRows(), testHeaders, FormatCSV, 1))
	assert.Equal(t, whole.String(), chunked.String())
}

func TestSerializeXLSX(t *testing.T) {
	data, err := Serialize(testRows(), testHeaders, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string(testHeaders), rows[0])
	assert.Equal(t, []string{"widget", "Widget, Deluxe", "9.99", "<p>He said \"hi\"</p>"}, rows[1])
	assert.Equal(t, "0012", rows[2][2], "values are not re-typed")
	assert.Equal(t, "=SUM(A1)", rows[2][3])
	assert.Equal(t, "empty", rows[3][0])

	formula, err := f.GetCellFormula(SheetName, "D3")
	require.NoError(t, err)
	assert.Empty(t, formula)

	width, err := f.GetColWidth(SheetName, "B")
	require.NoError(t, err)
	assert.Equal(t, float64(ColumnWidth), width)
}

func TestSerializeHeaderOnly(t *testing.T) {
	data, err := Serialize(nil, testHeaders, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Handle,Title,Variant Price,Body (HTML)\n", string(data))

	data, err = Serialize(nil, testHeaders, FormatXLSX)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSerializeKeepsSurroundingQuotes(t *testing.T) {
	headers := types.Headers{"Handle", "Title"}
	rows := []types.Row{{"Handle": "best", "Title": `"Best"`}}

	data, err := Serialize(rows, headers, FormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(data), `best,"""Best"""`)
	_, parsed, err := csvparser.ReadAll(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, `"Best"`, parsed[0]["Title"])

	data, err = Serialize(rows, headers, FormatXLSX)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	cell, err := f.GetCellValue(SheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, `"Best"`, cell)
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, ".xlsx", FormatXLSX.Extension())
	assert.Equal(t, ".csv", FormatCSV.Extension())
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, nil, testHeaders, Format("xml"), 0))
}
