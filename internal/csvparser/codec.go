// =============================================================================
// Inventory CSV Mapper - Delimited-Text Codec
// =============================================================================
//
// This file holds the single-line codec every other stage builds on:
//   - ParseLine splits one line of comma-separated text into fields
//   - Escape quotes a single value so ParseLine returns it unchanged
//   - EncodeLine joins escaped values into one line
//
// QUOTING RULES:
//   - A quote toggles the "inside quotes" state
//   - Two quotes inside a quoted section emit one literal quote
//   - A comma outside quotes ends the field
//   - Unquoted fields are trimmed; quoted content is kept verbatim
//   - An unterminated quote runs to the end of the line (no error)
//
// =============================================================================

package csvparser

import (
	"strings"
	"unicode"
)

// Delimiter is the field separator for both input and output.
const Delimiter = ','

const quote = '"'

// ParseLine splits a single line into fields.
//
// EXAMPLES:
//
//	ParseLine(`a, b ,c`)          -> ["a" "b" "c"]
//	ParseLine(`"Widget, Deluxe",9`) -> ["Widget, Deluxe" "9"]
//	ParseLine(`"say ""hi"""`)     -> [`say "hi"`]
//	ParseLine(``)                 -> [""]
//	ParseLine(`a,`)               -> ["a" ""]
func ParseLine(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool

		// quoted is set once the field has opened a quoted section.
		quoted bool
		// keep marks the end of the last quoted section; whitespace before it is content.
		keep int
	)

	flush := func() {
		s := field.String()
		switch {
		case inQuotes:
			// Unterminated quote: everything read so far is content.
		case quoted:
			s = s[:keep] + strings.TrimRightFunc(s[keep:], unicode.IsSpace)
		default:
			s = strings.TrimSpace(s)
		}
		fields = append(fields, s)
		field.Reset()
		quoted = false
		keep = 0
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == quote:
			if inQuotes && i+1 < len(line) && line[i+1] == quote {
				field.WriteByte(quote)
				i++
				continue
			}
			if inQuotes {
				inQuotes = false
				keep = field.Len()
				continue
			}
			// Whitespace ahead of the opening quote is not part of the value.
			if !quoted && strings.TrimSpace(field.String()) == "" {
				field.Reset()
			}
			inQuotes = true
			quoted = true
		case c == Delimiter && !inQuotes:
			flush()
		default:
			field.WriteByte(c)
		}
	}
	flush()

	return fields
}

// Escape quotes a value when it cannot be written bare.
//
// A value is wrapped in quotes, with internal quotes doubled, when it contains
// a quote, a comma, a line break, or leading/trailing whitespace (which
// ParseLine would otherwise trim). Any other value, including "", is returned
// unchanged.
func Escape(value string) string {
	if !needsQuoting(value) {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func needsQuoting(value string) bool {
	if value == "" {
		return false
	}
	if strings.ContainsAny(value, "\",\n\r") {
		return true
	}
	return strings.TrimSpace(value) != value
}

// EncodeLine escapes each value and joins them with the delimiter.
func EncodeLine(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(Delimiter)
		}
		b.WriteString(Escape(v))
	}
	return b.String()
}
