package mapping

import (
	"fmt"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// FieldMapping assigns each catalog field a source header, or "" when the
// field is unmapped. A mapping built by this package always holds an entry
// for every catalog field.
type FieldMapping map[string]string

// Empty returns a complete mapping with every field unmapped.
func Empty() FieldMapping {
	m := make(FieldMapping, len(catalog))
	for _, f := range catalog {
		m[f] = ""
	}
	return m
}

// Complete returns a copy of m holding exactly the catalog fields. Missing
// fields become "" and keys outside the catalog are dropped.
func (m FieldMapping) Complete() FieldMapping {
	out := Empty()
	for f := range out {
		out[f] = m[f]
	}
	return out
}

// Clone returns a copy of m.
func (m FieldMapping) Clone() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Source returns the header mapped to field, or "".
func (m FieldMapping) Source(field string) string {
	return m[field]
}

// IsMapped reports whether field has a non-empty source header.
func (m FieldMapping) IsMapped(field string) bool {
	return m[field] != ""
}

// Unmapped returns the fields of category c that have no source header, in
// catalog order.
func (m FieldMapping) Unmapped(c Category) []string {
	var out []string
	for _, f := range FieldsIn(c) {
		if m[f] == "" {
			out = append(out, f)
		}
	}
	return out
}

// MappedCount returns how many fields of category c have a source header.
func (m FieldMapping) MappedCount(c Category) int {
	n := 0
	for _, f := range FieldsIn(c) {
		if m[f] != "" {
			n++
		}
	}
	return n
}

// Entry is one catalog field with its source header and category.
type Entry struct {
	Field    string   `json:"field" yaml:"field"`
	Header   string   `json:"header" yaml:"header"`
	Category Category `json:"category" yaml:"category"`
}

// Entries returns the mapping in catalog order.
func (m FieldMapping) Entries() []Entry {
	out := make([]Entry, 0, len(catalog))
	for _, f := range catalog {
		out = append(out, Entry{Field: f, Header: m[f], Category: categoryOf[f]})
	}
	return out
}

// Validate checks that every key is a catalog field and every non-empty value
// is one of headers.
func (m FieldMapping) Validate(headers types.Headers) error {
	for field, header := range m {
		if !IsField(field) {
			return fmt.Errorf("%w: %q", apperrors.ErrUnknownField, field)
		}
		if header != "" && !headers.Contains(header) {
			return fmt.Errorf("%w: %q (for %s)", apperrors.ErrUnknownHeader, header, field)
		}
	}
	return nil
}

// With returns a copy of m with a single field reassigned. The receiver is
// not modified, so a rejected edit leaves the caller's mapping intact.
func (m FieldMapping) With(field, header string, headers types.Headers) (FieldMapping, error) {
	if !IsField(field) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownField, field)
	}
	if header != "" && !headers.Contains(header) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownHeader, header)
	}
	out := m.Complete()
	out[field] = header
	return out, nil
}
