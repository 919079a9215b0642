// =============================================================================
// Inventory CSV Mapper - Validation Engine
// =============================================================================
//
// This module reports problems with a mapping and with converted rows.
//
// Nothing here stops a conversion. Every finding is a warning of kind
// PartialFieldData; the caller decides whether to surface it before the
// output is downloaded.
//
// VALIDATION LEVELS:
//   1. Mapping-level: required catalog fields without a source header
//   2. Row-level: empty required values and malformed numeric or boolean
//      values in the converted rows
//
// Row warnings are capped; the report keeps the total so callers can say
// "and N more".
//
// =============================================================================

package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// DefaultLimit is the number of row warnings kept in a report.
const DefaultLimit = 100

// Rule names.
const (
	RuleRequired = "required"
	RuleNumeric  = "numeric"
	RuleInteger  = "integer"
	RuleBoolean  = "boolean"
)

// =============================================================================
// VALIDATION WARNING TYPES
// =============================================================================

// Warning is a single row-level finding.
type Warning struct {
	// Kind is always PartialFieldData.
	Kind apperrors.Kind `json:"-"`

	// Row is the 1-based output row number.
	Row int `json:"row"`

	// Field is the catalog field that failed.
	Field string `json:"field"`

	// Value is the offending value.
	Value string `json:"value"`

	// Rule is the rule that was violated.
	Rule string `json:"rule"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// String renders the warning for logs and the CLI.
func (w Warning) String() string {
	return fmt.Sprintf("[WARNING] Row %d, Field '%s': %s (value: '%s')", w.Row, w.Field, w.Message, w.Value)
}

// =============================================================================
// MAPPING VALIDATION
// =============================================================================

// MappingReport summarizes how complete a mapping is.
type MappingReport struct {
	// UnmappedRequired lists required fields with no source header, in
	// catalog order.
	UnmappedRequired []string `json:"unmappedRequired"`

	// Mapped is the number of mapped fields per category.
	Mapped map[mapping.Category]int `json:"mapped"`

	// Total is the number of fields per category.
	Total map[mapping.Category]int `json:"total"`
}

// UnmappedCount returns len(UnmappedRequired).
func (r MappingReport) UnmappedCount() int {
	return len(r.UnmappedRequired)
}

// Ready reports whether every required field is mapped.
func (r MappingReport) Ready() bool {
	return len(r.UnmappedRequired) == 0
}

// Summary returns the one-line warning shown before download, or "" when
// every required field is mapped.
func (r MappingReport) Summary() string {
	if r.Ready() {
		return ""
	}
	return fmt.Sprintf("%d required field(s) unmapped: %s", len(r.UnmappedRequired), strings.Join(r.UnmappedRequired, ", "))
}

// CheckMapping reports unmapped required fields and per-category counts.
func CheckMapping(m mapping.FieldMapping) MappingReport {
	report := MappingReport{
		UnmappedRequired: m.Unmapped(mapping.Required),
		Mapped:           make(map[mapping.Category]int, len(mapping.Categories)),
		Total:            make(map[mapping.Category]int, len(mapping.Categories)),
	}
	if report.UnmappedRequired == nil {
		report.UnmappedRequired = []string{}
	}
	for _, c := range mapping.Categories {
		report.Mapped[c] = m.MappedCount(c)
		report.Total[c] = len(mapping.FieldsIn(c))
	}
	return report
}

// =============================================================================
// ROW VALIDATION
// =============================================================================

// RowReport holds the row-level findings of a conversion.
type RowReport struct {
	// Warnings holds at most the configured limit of findings.
	Warnings []Warning `json:"warnings"`

	// Total is the number of findings, including those not kept.
	Total int `json:"total"`

	// RowsChecked is the number of rows inspected.
	RowsChecked int `json:"rowsChecked"`
}

// Truncated reports whether findings were dropped by the cap.
func (r RowReport) Truncated() bool {
	return r.Total > len(r.Warnings)
}

func (r *RowReport) add(limit int, w Warning) {
	r.Total++
	if len(r.Warnings) < limit {
		w.Kind = apperrors.KindPartialFieldData
		r.Warnings = append(r.Warnings, w)
	}
}

// CheckRows validates converted rows.
//
// PARAMETERS:
//   - rows: Converted rows keyed by catalog field.
//   - limit: Maximum warnings kept; <= 0 uses DefaultLimit.
//
// RETURNS:
//   - The report. Findings are ordered by row, then by catalog order.
func CheckRows(rows []types.Row, limit int) RowReport {
	if limit <= 0 {
		limit = DefaultLimit
	}
	required := mapping.FieldsIn(mapping.Required)
	report := RowReport{Warnings: []Warning{}}

	for i, row := range rows {
		n := i + 1
		report.RowsChecked++

		// =====================================================================
		// REQUIRED FIELD VALIDATION
		// =====================================================================

		for _, f := range required {
			if strings.TrimSpace(row[f]) == "" {
				report.add(limit, Warning{
					Row:     n,
					Field:   f,
					Rule:    RuleRequired,
					Message: fmt.Sprintf("Required field '%s' is empty", f),
				})
			}
		}

		// =====================================================================
		// FORMAT VALIDATION
		// =====================================================================
		// Empty values are already covered above or allowed.

		if v := strings.TrimSpace(row[mapping.FieldPrice]); v != "" {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				report.add(limit, Warning{
					Row:     n,
					Field:   mapping.FieldPrice,
					Value:   row[mapping.FieldPrice],
					Rule:    RuleNumeric,
					Message: "Value must be a number",
				})
			}
		}

		if v := strings.TrimSpace(row[mapping.FieldInventoryQty]); v != "" {
			if _, err := strconv.Atoi(v); err != nil {
				report.add(limit, Warning{
					Row:     n,
					Field:   mapping.FieldInventoryQty,
					Value:   row[mapping.FieldInventoryQty],
					Rule:    RuleInteger,
					Message: "Value must be a whole number",
				})
			}
		}

		if v := strings.TrimSpace(row[mapping.FieldPublished]); v != "" {
			if !strings.EqualFold(v, "TRUE") && !strings.EqualFold(v, "FALSE") {
				report.add(limit, Warning{
					Row:     n,
					Field:   mapping.FieldPublished,
					Value:   row[mapping.FieldPublished],
					Rule:    RuleBoolean,
					Message: "Value must be TRUE or FALSE",
				})
			}
		}
	}

	return report
}

// =============================================================================
// COMBINED REPORT
// =============================================================================

// Report is the complete validation result of one conversion.
type Report struct {
	Mapping MappingReport `json:"mapping"`
	Rows    RowReport     `json:"rows"`
}

// Check runs both validation levels.
func Check(m mapping.FieldMapping, rows []types.Row, limit int) Report {
	return Report{
		Mapping: CheckMapping(m),
		Rows:    CheckRows(rows, limit),
	}
}

// HasWarnings reports whether any finding exists.
func (r Report) HasWarnings() bool {
	return !r.Mapping.Ready() || r.Rows.Total > 0
}
