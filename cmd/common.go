package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/apperrors"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/ingest"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/semantic"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/xlsxparser"
	"github.com/ginjaninja78/inventory-csv-mapper/pkg/utils"
)

// =============================================================================
// SHARED HELPERS
// =============================================================================

// newMapper returns a mapper that uses the configured semantic service when
// useSemantic is set, and maps locally otherwise.
func newMapper(useSemantic bool) (*mapping.Mapper, error) {
	if !useSemantic {
		return mapping.NewMapper(nil, 0), nil
	}
	sc := appConfig.Semantic
	s, err := semantic.New(semantic.Options{
		Provider: sc.Provider,
		Endpoint: sc.Endpoint,
		Model:    sc.Model,
		APIKey:   sc.APIKey,
		Timeout:  sc.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return mapping.NewMapper(s, sc.Timeout), nil
}

// readInput reads a file under the configured size limit.
func readInput(path string) ([]byte, error) {
	data, err := utils.ReadInput(path, appConfig.Ingest.MaxBytes())
	if err != nil {
		if errors.Is(err, utils.ErrTooLarge) {
			return nil, apperrors.New(apperrors.KindFileTooLarge, "read input", fmt.Errorf("%w: %v", apperrors.ErrFileTooLarge, err))
		}
		return nil, err
	}
	return data, nil
}

// loadMappingFile reads a mapping from a YAML file or an XLSX mapping
// template.
func loadMappingFile(path string) (mapping.FieldMapping, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		m, err := xlsxparser.ParseMappingTemplate(path)
		if err != nil {
			return nil, err
		}
		return mapping.FieldMapping(m), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	m := mapping.FieldMapping{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	return m, nil
}

// writeMappingFile writes m as YAML in catalog order, or as an XLSX mapping
// template when path ends in .xlsx.
func writeMappingFile(path string, m mapping.FieldMapping) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows := make([]xlsxparser.TemplateRow, 0, len(m))
		for _, e := range m.Entries() {
			rows = append(rows, xlsxparser.TemplateRow{Field: e.Field, Header: e.Header, Category: string(e.Category)})
		}
		return xlsxparser.WriteMappingTemplate(path, rows)
	}

	data, err := marshalMapping(m)
	if err != nil {
		return err
	}
	return utils.WriteOutput(path, data)
}

// marshalMapping renders m as a YAML mapping in catalog order.
func marshalMapping(m mapping.FieldMapping) ([]byte, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m.Entries() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Field},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Header, Style: yaml.DoubleQuotedStyle},
		)
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping: %w", err)
	}
	return data, nil
}

// printSheets lists workbook sheets with their row counts.
func printSheets(w io.Writer, path string) error {
	data, err := readInput(path)
	if err != nil {
		return err
	}
	sheets, err := ingest.ListSheets(data, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s:\n", filepath.Base(path))
	for i, s := range sheets {
		fmt.Fprintf(w, "  %d. %-30s %d row(s)\n", i+1, s.Name, s.RowCount)
	}
	return nil
}

// watchProgress prints chunk progress from b until the returned stop
// function is called.
func watchProgress(w io.Writer, b *ingest.Broadcaster) (stop func()) {
	updates, unsubscribe := b.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for u := range updates {
			switch u.Kind {
			case ingest.EventChunk, ingest.EventComplete:
				fmt.Fprintf(w, "  %s: %3d%% (%d/%d rows)\n",
					filepath.Base(u.FileName), u.Progress.Percent, u.Progress.Processed, u.Progress.Total)
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
