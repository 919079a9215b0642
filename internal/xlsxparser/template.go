// =============================================================================
// Inventory CSV Mapper - Mapping Template Workbooks
// =============================================================================
//
// A field mapping can be kept in a workbook so non-technical users can edit
// it in a spreadsheet program. The expected layout is:
//
//   | Column A      | Column B       | Column C    |
//   |---------------|----------------|-------------|
//   | Catalog Field | Source Header  | Category    |
//   | Handle        | Item Code      | required    |
//   | Title         | Product Name   | required    |
//   | Vendor        |                | recommended |
//
// Column C is informational; it is written by WriteMappingTemplate and ignored
// on read. Rows with an empty catalog field are skipped.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TemplateSheet is the sheet name written by WriteMappingTemplate.
const TemplateSheet = "Mapping"

// TemplateColumns defines where a mapping template keeps its data.
// Column indices are 0-based (A=0, B=1, C=2, etc.)
type TemplateColumns struct {
	// FieldColumn holds the catalog field name. Default: 0 (Column A)
	FieldColumn int

	// HeaderColumn holds the mapped source header. Default: 1 (Column B)
	HeaderColumn int

	// DataStartRow is the first data row (0-based). Default: 1 (Row 2)
	DataStartRow int
}

// DefaultTemplateColumns returns the default column configuration.
func DefaultTemplateColumns() TemplateColumns {
	return TemplateColumns{
		FieldColumn:  0,
		HeaderColumn: 1,
		DataStartRow: 1,
	}
}

// TemplateRow is one line of a mapping template.
type TemplateRow struct {
	Field    string
	Header   string
	Category string
}

// ParseMappingTemplate reads the first sheet of a mapping template file.
func ParseMappingTemplate(path string) (map[string]string, error) {
	return ParseMappingTemplateWithConfig(path, DefaultTemplateColumns())
}

// ParseMappingTemplateWithConfig reads a mapping template with a custom layout.
//
// RETURNS:
//   - catalog field -> source header ("" when the cell is blank)
//   - an error if the workbook cannot be opened or read
func ParseMappingTemplateWithConfig(path string, columns TemplateColumns) (map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping template: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("mapping template has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	mapping := make(map[string]string)
	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || isRowEmpty(row) {
			continue
		}

		getCell := func(index int) string {
			if index < len(row) {
				return strings.TrimSpace(row[index])
			}
			return ""
		}

		field := getCell(columns.FieldColumn)
		if field == "" {
			continue
		}
		mapping[field] = getCell(columns.HeaderColumn)
	}

	return mapping, nil
}

// WriteMappingTemplate writes rows as a mapping template workbook.
func WriteMappingTemplate(path string, rows []TemplateRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []any{"Catalog Field", "Source Header", "Category"}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Field, r.Header, r.Category}
		if err := f.SetSheetRow(TemplateSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(TemplateSheet, "A", "C", 32); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save mapping template: %w", err)
	}
	return nil
}
