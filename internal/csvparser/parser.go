// =============================================================================
// Inventory CSV Mapper - CSV Line Ingestion
// =============================================================================
//
// This module turns CSV text into the shared Row model using the codec in
// codec.go. Input is processed line by line:
//   - Lines split on "\n" with an optional preceding "\r"
//   - Fully blank lines are skipped
//   - The first non-blank line is the header row
//   - A UTF-8 byte order mark is stripped and invalid UTF-8 is replaced
//
// =============================================================================

package csvparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

const bom = "\uFEFF"

// =============================================================================
// TEXT NORMALIZATION
// =============================================================================

// Normalize strips a leading byte order mark and replaces invalid UTF-8
// sequences with the Unicode replacement character.
func Normalize(text string) string {
	text = strings.TrimPrefix(text, bom)
	return strings.ToValidUTF8(text, "\uFFFD")
}

// SplitLines splits text into non-blank lines, accepting "\r\n" and "\n".
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// CountRecords returns the number of data lines (non-blank lines after the
// header). It is used to size progress reporting before parsing starts.
func CountRecords(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return n - 1
}

// =============================================================================
// HEADER CLEANING
// =============================================================================

// CleanHeaders trims header names, names empty headers "Column_N" (1-based)
// and suffixes repeated names with "_2", "_3", ... so the result is unique.
func CleanHeaders(raw []string) types.Headers {
	cleaned := make(types.Headers, len(raw))
	seen := make(map[string]int, len(raw))

	for i, header := range raw {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		if n, dup := seen[header]; dup {
			candidate := header
			for {
				n++
				candidate = fmt.Sprintf("%s_%d", header, n)
				if _, taken := seen[candidate]; !taken {
					break
				}
			}
			seen[header] = n
			header = candidate
		}
		if _, ok := seen[header]; !ok {
			seen[header] = 1
		}

		cleaned[i] = header
	}

	return cleaned
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

// =============================================================================
// STREAMING PARSER
// =============================================================================

// StreamingParser reads CSV rows one line at a time.
//
// USAGE:
//
//	p, err := csvparser.NewStreamingParser(r)
//	if err != nil {
//	    return err
//	}
//	for p.Next() {
//	    row := p.Row()
//	    // ...
//	}
//	if err := p.Err(); err != nil {
//	    return err
//	}
type StreamingParser struct {
	reader     *bufio.Reader
	headers    types.Headers
	currentRow types.Row
	rowNumber  int
	lineNumber int
	first      bool
	done       bool
	err        error
}

// ErrNoHeader is returned when the input holds no non-blank line.
var ErrNoHeader = errors.New("no header row found")

// NewStreamingParser reads the header line from r and returns a parser
// positioned before the first data row.
func NewStreamingParser(r io.Reader) (*StreamingParser, error) {
	p := &StreamingParser{
		reader: bufio.NewReaderSize(r, 64*1024),
		first:  true,
	}

	line, ok := p.nextLine()
	if !ok {
		if p.err != nil {
			return nil, p.err
		}
		return nil, ErrNoHeader
	}
	p.headers = CleanHeaders(ParseLine(line))

	return p, nil
}

// nextLine returns the next non-blank line.
func (p *StreamingParser) nextLine() (string, bool) {
	for !p.done {
		line, err := p.reader.ReadString('\n')
		if err == io.EOF {
			p.done = true
		} else if err != nil {
			p.err = fmt.Errorf("error reading line %d: %w", p.lineNumber+1, err)
			p.done = true
			return "", false
		}
		p.lineNumber++

		if p.first {
			line = strings.TrimPrefix(line, bom)
			p.first = false
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.ToValidUTF8(line, "\uFFFD"), true
	}
	return "", false
}

// Next advances to the next data row. Returns false when there are no more rows.
func (p *StreamingParser) Next() bool {
	if p.err != nil {
		return false
	}

	for {
		line, ok := p.nextLine()
		if !ok {
			return false
		}
		fields := ParseLine(line)
		if isRowEmpty(fields) {
			// A line of bare delimiters carries no data.
			continue
		}
		p.rowNumber++
		p.currentRow = p.headers.RowFromValues(fields)
		return true
	}
}

// Row returns the current row.
func (p *StreamingParser) Row() types.Row {
	return p.currentRow
}

// Headers returns the cleaned header set.
func (p *StreamingParser) Headers() types.Headers {
	return p.headers
}

// RowNumber returns the current data row number (1-indexed).
func (p *StreamingParser) RowNumber() int {
	return p.rowNumber
}

// Err returns any error that occurred while reading.
func (p *StreamingParser) Err() error {
	return p.err
}

// =============================================================================
// CONVENIENCE
// =============================================================================

// ReadAll parses all of r into headers and rows.
func ReadAll(r io.Reader) (types.Headers, []types.Row, error) {
	p, err := NewStreamingParser(r)
	if err != nil {
		return nil, nil, err
	}
	var rows []types.Row
	for p.Next() {
		rows = append(rows, p.Row())
	}
	if err := p.Err(); err != nil {
		return nil, nil, err
	}
	return p.Headers(), rows, nil
}

// EncodeRows renders headers and rows as CSV text with every field escaped.
// Each line, including the last, ends with "\n".
func EncodeRows(headers types.Headers, rows []types.Row) string {
	var b strings.Builder
	b.WriteString(EncodeLine(headers))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(EncodeLine(row.Values(headers)))
		b.WriteByte('\n')
	}
	return b.String()
}
