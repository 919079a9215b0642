// =============================================================================
// Inventory CSV Mapper - Spreadsheet Adapter
// =============================================================================
//
// This module opens a binary workbook (xlsx/xlsm/xltx) and converts a sheet's
// cell grid into the shared Row model, the same model the CSV codec produces.
//
// SHEET LAYOUT:
//   - Row 1 is always the header row, whatever it contains
//   - Every following row is a data row; fully blank rows are skipped
//   - Rows with fewer cells than headers are padded with ""
//
// CELL STRINGIFICATION:
//   - Numbers:  decimal text ("9.99", "0.001", "42")
//   - Dates:    "2006-01-02", or "2006-01-02 15:04:05" when a time is present
//   - Booleans: "TRUE" / "FALSE"
//   - Strings:  verbatim
//   - A cell that cannot be classified keeps its raw stored text
//
// FAILURES:
//   - ErrCorruptWorkbook when the bytes are not a readable workbook
//   - ErrEmptySheet when the sheet's used range has no rows
//   - ErrUnknownSheet when the requested sheet does not exist
//
// =============================================================================

package xlsxparser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/csvparser"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// DefaultChunkSize is the number of rows per chunk when none is given.
const DefaultChunkSize = 1000

// =============================================================================
// WORKBOOK
// =============================================================================

// Workbook wraps an open excelize file together with the lookups needed to
// stringify cells.
type Workbook struct {
	f        *excelize.File
	date1904 bool

	// dateStyles caches whether a style id carries a date/time number format.
	dateStyles map[int]bool
}

// Open decodes workbook bytes.
func Open(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptWorkbook, err)
	}
	if len(f.GetSheetList()) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", apperrors.ErrCorruptWorkbook)
	}

	wb := &Workbook{f: f, dateStyles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// Sheets returns a descriptor for every sheet in workbook order.
func (w *Workbook) Sheets() ([]types.SheetDescriptor, error) {
	names := w.f.GetSheetList()
	out := make([]types.SheetDescriptor, 0, len(names))
	for _, name := range names {
		n, err := w.countRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", apperrors.ErrCorruptWorkbook, name, err)
		}
		out = append(out, types.SheetDescriptor{Name: name, RowCount: n})
	}
	return out, nil
}

// ListSheets opens data and returns its sheet descriptors.
func ListSheets(data []byte) ([]types.SheetDescriptor, error) {
	wb, err := Open(data)
	if err != nil {
		return nil, err
	}
	defer wb.Close()
	return wb.Sheets()
}

// countRows returns the used-range row count: the position of the last row
// holding at least one non-empty cell.
func (w *Workbook) countRows(sheet string) (int, error) {
	rows, err := w.f.Rows(sheet)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	i, last := 0, 0
	for rows.Next() {
		i++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			continue
		}
		if !isRowEmpty(cols) {
			last = i
		}
	}
	return last, rows.Error()
}

// HasSheet reports whether the workbook contains the named sheet.
func (w *Workbook) HasSheet(name string) bool {
	idx, err := w.f.GetSheetIndex(name)
	return err == nil && idx >= 0
}

// =============================================================================
// SHEET READER
// =============================================================================

// SheetReader yields a sheet's data rows in chunks.
//
// USAGE:
//
//	r, err := wb.ReadSheet("Products", 1000)
//	if err != nil {
//	    return err
//	}
//	for r.Next() {
//	    chunk := r.Chunk()
//	    // ...
//	}
type SheetReader struct {
	wb        *Workbook
	owned     bool
	sheet     string
	grid      [][]string
	headers   types.Headers
	chunkSize int

	pos    int
	index  int
	offset int
	chunk  types.Chunk
}

// ReadSheet decodes the named sheet. Row 1 becomes the header set.
func (w *Workbook) ReadSheet(sheet string, chunkSize int) (*SheetReader, error) {
	if !w.HasSheet(sheet) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownSheet, sheet)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	grid, err := w.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", apperrors.ErrCorruptWorkbook, sheet, err)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrEmptySheet, sheet)
	}

	r := &SheetReader{
		wb:        w,
		sheet:     sheet,
		grid:      grid,
		chunkSize: chunkSize,
		pos:       1,
	}
	r.headers = csvparser.CleanHeaders(r.convertRow(0))
	return r, nil
}

// ReadSheet opens data and returns a reader for the named sheet. Closing the
// reader closes the workbook.
func ReadSheet(data []byte, sheet string, chunkSize int) (*SheetReader, error) {
	wb, err := Open(data)
	if err != nil {
		return nil, err
	}
	r, err := wb.ReadSheet(sheet, chunkSize)
	if err != nil {
		wb.Close()
		return nil, err
	}
	r.owned = true
	return r, nil
}

// Headers returns the cleaned header row.
func (r *SheetReader) Headers() types.Headers {
	return r.headers
}

// TotalRows returns the number of data rows in the used range, blank rows included.
func (r *SheetReader) TotalRows() int {
	return len(r.grid) - 1
}

// Processed returns the number of grid rows consumed so far.
func (r *SheetReader) Processed() int {
	return r.pos - 1
}

// Next converts the next chunk. Windows made only of blank rows are skipped,
// so a returned chunk always holds at least one row.
func (r *SheetReader) Next() bool {
	for r.pos < len(r.grid) {
		end := min(r.pos+r.chunkSize, len(r.grid))

		rows := make([]types.Row, 0, end-r.pos)
		for i := r.pos; i < end; i++ {
			cells := r.convertRow(i)
			if isRowEmpty(cells) {
				continue
			}
			rows = append(rows, r.headers.RowFromValues(cells))
		}
		r.pos = end

		if len(rows) == 0 {
			continue
		}
		r.chunk = types.Chunk{Index: r.index, Offset: r.offset, Rows: rows}
		r.index++
		r.offset += len(rows)
		return true
	}
	return false
}

// Chunk returns the chunk produced by the last call to Next.
func (r *SheetReader) Chunk() types.Chunk {
	return r.chunk
}

// Fragment renders the current chunk as escaped CSV lines without a header.
func (r *SheetReader) Fragment() string {
	var b strings.Builder
	for _, row := range r.chunk.Rows {
		b.WriteString(csvparser.EncodeLine(row.Values(r.headers)))
		b.WriteByte('\n')
	}
	return b.String()
}

// Close closes the workbook if the reader opened it.
func (r *SheetReader) Close() error {
	if r.owned {
		return r.wb.Close()
	}
	return nil
}

// convertRow stringifies grid row i (0-based).
func (r *SheetReader) convertRow(i int) []string {
	raw := r.grid[i]
	out := make([]string, len(raw))
	for j, v := range raw {
		out[j] = r.wb.cellValue(r.sheet, j+1, i+1, v)
	}
	return out
}

// =============================================================================
// CELL STRINGIFICATION
// =============================================================================

// cellValue renders a raw stored value. col and row are 1-based.
func (w *Workbook) cellValue(sheet string, col, row int, raw string) string {
	if raw == "" {
		return ""
	}
	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}

	typ, err := w.f.GetCellType(sheet, cell)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeBool:
		if num != 0 {
			return "TRUE"
		}
		return "FALSE"
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeDate, excelize.CellTypeError:
		return raw
	}

	if w.isDateCell(sheet, cell) {
		t, err := excelize.ExcelDateToTime(num, w.date1904)
		if err != nil {
			return raw
		}
		return formatDate(num, t)
	}
	return formatNumber(raw, num)
}

func (w *Workbook) isDateCell(sheet, cell string) bool {
	styleID, err := w.f.GetCellStyle(sheet, cell)
	if err != nil || styleID == 0 {
		return false
	}
	if isDate, ok := w.dateStyles[styleID]; ok {
		return isDate
	}

	isDate := false
	if style, err := w.f.GetStyle(styleID); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	w.dateStyles[styleID] = isDate
	return isDate
}

// isDateFormat classifies a number format as a date/time format.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		return isDatePattern(*custom)
	}
	switch {
	case numFmt >= 14 && numFmt <= 22,
		numFmt >= 27 && numFmt <= 36,
		numFmt >= 45 && numFmt <= 47,
		numFmt >= 50 && numFmt <= 58:
		return true
	}
	return false
}

// isDatePattern looks for date/time tokens outside quoted literals,
// bracketed sections and escaped characters.
func isDatePattern(pattern string) bool {
	if strings.EqualFold(pattern, "general") {
		return false
	}
	inQuote, inBracket := false, false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\' || c == '_' || c == '*':
			i++
		default:
			switch c | 0x20 {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}

func formatDate(serial float64, t time.Time) string {
	switch {
	case serial < 1:
		return t.Format("15:04:05")
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0:
		return t.Format("2006-01-02")
	default:
		return t.Format("2006-01-02 15:04:05")
	}
}

// formatNumber renders a number in plain decimal form. Integer text is kept
// verbatim so long identifiers keep every digit; other values are rounded to
// 15 significant digits, the precision spreadsheets display.
func formatNumber(raw string, num float64) string {
	raw = strings.TrimSpace(raw)
	if isIntegerText(raw) {
		return raw
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(num, 'g', 15, 64), 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

func isIntegerText(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
