// =============================================================================
// Inventory CSV Mapper - Shared Types
// =============================================================================
//
// This package contains the tabular data model shared by every stage of the
// pipeline. Types defined here are used by:
//   - csvparser / xlsxparser (producers)
//   - ingest (chunk assembly)
//   - converter / validation / writer (consumers)
//
// =============================================================================

package types

// =============================================================================
// ROW MODEL
// =============================================================================

// Row maps a column name to its string value.
//
// Column order is not stored on the row itself; it is defined by the Headers
// the row was parsed against. Rows are treated as immutable once parsed; the
// transformation stage builds new rows with Clone or a fresh map.
type Row map[string]string

// Get returns the value for a column, or "" when the column is absent.
func (r Row) Get(column string) string {
	return r[column]
}

// Lookup returns the value for a column and whether the column is present.
// A present column may still hold the empty string.
func (r Row) Lookup(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the row's values in header order.
// Columns missing from the row yield "".
func (r Row) Values(headers Headers) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = r[h]
	}
	return out
}

// =============================================================================
// HEADER SET
// =============================================================================

// Headers is the ordered, duplicate-free list of column names of a sheet or
// CSV file. Order defines output column order when round-tripping.
type Headers []string

// Index returns the position of name, or -1.
func (h Headers) Index(name string) int {
	for i, v := range h {
		if v == name {
			return i
		}
	}
	return -1
}

// Contains reports whether name is one of the headers.
func (h Headers) Contains(name string) bool {
	return h.Index(name) >= 0
}

// RowFromValues builds a Row from positional values.
// Short value slices are padded with ""; values beyond the header count are dropped.
func (h Headers) RowFromValues(values []string) Row {
	row := make(Row, len(h))
	for i, name := range h {
		if i < len(values) {
			row[name] = values[i]
		} else {
			row[name] = ""
		}
	}
	return row
}

// =============================================================================
// CHUNKS AND SHEETS
// =============================================================================

// Chunk is a bounded slice of parsed rows. Chunk boundaries never split a row.
type Chunk struct {
	// Index is the 0-based position of the chunk in its run.
	Index int

	// Offset is the 0-based data-row number of the first row in the chunk.
	Offset int

	// Rows holds the parsed rows.
	Rows []Row
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int {
	return len(c.Rows)
}

// Flatten concatenates the rows of all chunks in order.
func Flatten(chunks []Chunk) []Row {
	n := 0
	for _, c := range chunks {
		n += len(c.Rows)
	}
	out := make([]Row, 0, n)
	for _, c := range chunks {
		out = append(out, c.Rows...)
	}
	return out
}

// SheetDescriptor describes one tab of a workbook.
type SheetDescriptor struct {
	Name     string `json:"name" yaml:"name"`
	RowCount int    `json:"rowCount" yaml:"row_count"`
}
