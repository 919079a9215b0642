// =============================================================================
// Inventory CSV Mapper - Output Writer Module
// =============================================================================
//
// This module serializes converted rows into the import file.
//
// OUTPUT STRUCTURE:
//   The header row is always the full catalog in order, whether or not a
//   field is mapped. Each following row is one converted row.
//
//   CSV:  one line per row, fields escaped by the csvparser codec
//         Handle,Title,Body (HTML),...
//         abc123-model-x,"Widget, Deluxe",<p>...</p>,...
//
//   XLSX: a single sheet named "Products" written with the excelize
//         StreamWriter; every value is written as a plain text cell
//
// Rows are emitted in batches of the ingestion chunk size so a large file
// never needs a second full copy in memory while being written.
//
// =============================================================================

package writer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// =============================================================================
// OUTPUT FORMATS
// =============================================================================

// Format is the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the single sheet of XLSX output.
const SheetName = "Products"

// ColumnWidth is the width of every XLSX column.
const ColumnWidth = 20

// DefaultChunkSize is used when Write receives a non-positive chunk size.
const DefaultChunkSize = 1000

// FormatFromFilename picks XLSX for ".xlsx" names and CSV for everything else.
func FormatFromFilename(name string) Format {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ParseFormat parses a user-supplied format name. "" yields CSV.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Extension returns the file extension of the format, with the dot.
func (f Format) Extension() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// Serialize renders rows in the given format.
//
// PARAMETERS:
//   - rows: Converted rows keyed by header name.
//   - headers: Output column order.
//   - format: FormatCSV or FormatXLSX.
//
// RETURNS:
//   - The file content.
//   - An error if the workbook cannot be built.
func Serialize(rows []types.Row, headers types.Headers, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rows, headers, format, DefaultChunkSize); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams rows to w in batches of chunkSize.
func Write(w io.Writer, rows []types.Row, headers types.Headers, format Format, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	switch format {
	case FormatCSV, "":
		return writeCSV(w, rows, headers, chunkSize)
	case FormatXLSX:
		return writeXLSX(w, rows, headers, chunkSize)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}

func writeCSV(w io.Writer, rows []types.Row, headers types.Headers, chunkSize int) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(csvparser.EncodeLine(headers) + "\n"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		for _, row := range rows[start:end] {
			if _, err := bw.WriteString(csvparser.EncodeLine(row.Values(headers)) + "\n"); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to flush output: %w", err)
		}
	}

	return bw.Flush()
}

func writeXLSX(w io.Writer, rows []types.Row, headers types.Headers, chunkSize int) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if len(headers) > 0 {
		if err := sw.SetColWidth(1, len(headers), ColumnWidth); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	line := 2
	cells := make([]interface{}, len(headers))
	for start := 0; start < len(rows); start += chunkSize {
		end := min(start+chunkSize, len(rows))
		for _, row := range rows[start:end] {
			for i, h := range headers {
				cells[i] = row[h]
			}
			cell, _ := excelize.CoordinatesToCellName(1, line)
			if err := sw.SetRow(cell, cells); err != nil {
				return fmt.Errorf("failed to write row %d: %w", line, err)
			}
			line++
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush workbook: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
