// =============================================================================
// Inventory CSV Mapper - Row Transformation Engine
// =============================================================================
//
// This module turns ingested source rows into catalog rows.
//
// PIPELINE (per source row):
//   1. Filter  - drop rows whose brand does not equal the brand filter
//   2. Map     - copy mapped source values into catalog fields
//   3. Derive  - fill unmapped catalog fields from configured source columns
//                (Handle, Variant Grams, Body (HTML), SEO Description,
//                Published, Image Alt Text, SEO Title)
//   4. Static  - fill still-empty fields with configured constants
//   5. Expand  - one output row per image in the image list
//   6. Rules   - apply configured field rules to each output row
//
// A Converter is immutable once built; TransformChunk may be called from
// several goroutines. Problems with individual values (a blank weight, an
// unmapped required field) never abort a row; they are counted in Stats
// and surfaced by the validation package.
//
// =============================================================================

package converter

import (
	"context"
	"strconv"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/logging"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// =============================================================================
// OPTIONS AND STATS
// =============================================================================

// Options configures a conversion.
type Options struct {
	Processing   config.ProcessingConfig
	Sources      config.DeriveSources
	FieldRules   []config.FieldRule
	StaticFields []config.StaticField
}

// DefaultOptions returns the options a conversion uses without a config file.
func DefaultOptions() Options {
	cfg := config.Default()
	return OptionsFrom(cfg, cfg.Processing)
}

// OptionsFrom builds Options from the application config with a per-file
// processing override.
func OptionsFrom(cfg *config.Config, processing config.ProcessingConfig) Options {
	return Options{
		Processing:   processing,
		Sources:      cfg.Derive,
		FieldRules:   cfg.FieldRules,
		StaticFields: cfg.StaticFields,
	}
}

// Stats contains statistics about a conversion.
type Stats struct {
	// InputRows is the number of source rows seen.
	InputRows int `json:"inputRows"`

	// FilteredRows is the number of source rows dropped by the brand filter.
	FilteredRows int `json:"filteredRows"`

	// OutputRows is the number of catalog rows produced, after expansion.
	OutputRows int `json:"outputRows"`

	// WeightDefaults counts rows whose weight was blank or non-numeric and
	// was treated as 0.
	WeightDefaults int `json:"weightDefaults"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.InputRows += o.InputRows
	s.FilteredRows += o.FilteredRows
	s.OutputRows += o.OutputRows
	s.WeightDefaults += o.WeightDefaults
}

// =============================================================================
// CONVERTER
// =============================================================================

// Converter transforms rows of one header set under one mapping.
type Converter struct {
	fields  []string
	mapping mapping.FieldMapping
	opts    Options
	rules   *Rules

	// Resolved source columns; "" when the derivation is disabled.
	brandColumn  string
	imageColumn  string
	handleCols   []string
	priceCols    []string
	weightCol    string
	descCol      string
	bulletsCol   string
	lengthCol    string
	widthCol     string
	heightCol    string
	barcodeCol   string
	availableCol string
}

// New prepares a conversion of rows with the given headers. Rule
// compilation errors are the only failure.
func New(headers types.Headers, m mapping.FieldMapping, opts Options) (*Converter, error) {
	rules, err := NewRules(opts.FieldRules)
	if err != nil {
		return nil, err
	}

	present := func(col string) string {
		if col != "" && headers.Contains(col) {
			return col
		}
		return ""
	}

	m = m.Complete()
	src := opts.Sources
	c := &Converter{
		fields:       mapping.Fields(),
		mapping:      m,
		opts:         opts,
		rules:        rules,
		weightCol:    present(src.Weight),
		descCol:      present(src.Description),
		bulletsCol:   present(src.Bullets),
		lengthCol:    present(src.Length),
		widthCol:     present(src.Width),
		heightCol:    present(src.Height),
		barcodeCol:   present(src.Barcode),
		availableCol: present(src.Availability),
	}
	for _, col := range src.HandleColumns {
		if p := present(col); p != "" {
			c.handleCols = append(c.handleCols, p)
		}
	}
	for _, col := range src.PriceColumns {
		if p := present(col); p != "" {
			c.priceCols = append(c.priceCols, p)
		}
	}

	c.brandColumn = present(src.Brand)
	if c.brandColumn == "" {
		c.brandColumn = present(m[mapping.FieldVendor])
	}
	c.imageColumn = present(src.Images)
	if c.imageColumn == "" {
		c.imageColumn = present(m[mapping.FieldImageSrc])
	}

	return c, nil
}

// Fields returns the output header: the full catalog in order.
func (c *Converter) Fields() types.Headers {
	return types.Headers(c.fields)
}

// BrandColumn returns the source column the brand filter reads, or "".
func (c *Converter) BrandColumn() string {
	return c.brandColumn
}

// TransformChunk converts a slice of source rows. It does not modify its
// input or the converter.
func (c *Converter) TransformChunk(rows []types.Row) ([]types.Row, Stats) {
	var stats Stats
	out := make([]types.Row, 0, len(rows))

	for _, row := range rows {
		stats.InputRows++
		if !c.keep(row) {
			stats.FilteredRows++
			continue
		}

		base, weightOK := c.derive(row)
		if !weightOK {
			stats.WeightDefaults++
		}

		for _, r := range c.expand(row, base) {
			c.rules.Apply(r)
			out = append(out, r)
		}
	}

	stats.OutputRows = len(out)
	return out, stats
}

// TransformChunks converts chunks in order and returns all output rows.
func (c *Converter) TransformChunks(ctx context.Context, chunks []types.Chunk) ([]types.Row, Stats, error) {
	var (
		total Stats
		out   []types.Row
	)
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, total, err
		}
		rows, stats := c.TransformChunk(chunk.Rows)
		out = append(out, rows...)
		total.Add(stats)
	}

	logging.FromContext(ctx).Info("transform complete",
		"input_rows", total.InputRows,
		"filtered_rows", total.FilteredRows,
		"output_rows", total.OutputRows,
		"weight_defaults", total.WeightDefaults,
	)
	return out, total, nil
}

// Transform is the one-shot form: it converts rows under m and opts.
func Transform(headers types.Headers, rows []types.Row, m mapping.FieldMapping, opts Options) ([]types.Row, Stats, error) {
	c, err := New(headers, m, opts)
	if err != nil {
		return nil, Stats{}, err
	}
	out, stats := c.TransformChunk(rows)
	return out, stats, nil
}

// =============================================================================
// PIPELINE STAGES
// =============================================================================

// keep applies the brand filter. No filter value or no brand column keeps
// every row.
func (c *Converter) keep(row types.Row) bool {
	filter := c.opts.Processing.BrandFilter
	if filter == "" || c.brandColumn == "" {
		return true
	}
	return row.Get(c.brandColumn) == filter
}

// derive builds the catalog row before image expansion. The second result
// is false when a weight derivation fell back to 0.
func (c *Converter) derive(row types.Row) (types.Row, bool) {
	out := make(types.Row, len(c.fields))
	for _, f := range c.fields {
		if src := c.mapping[f]; src != "" {
			out[f] = row.Get(src)
		} else {
			out[f] = ""
		}
	}

	unmapped := func(field string) bool { return c.mapping[field] == "" }
	weightOK := true

	if unmapped(mapping.FieldHandle) && len(c.handleCols) > 0 {
		parts := make([]string, len(c.handleCols))
		for i, col := range c.handleCols {
			parts[i] = row.Get(col)
		}
		out[mapping.FieldHandle] = Handle(parts...)
	}

	if unmapped(mapping.FieldPrice) && len(c.priceCols) > 0 {
		values := make([]string, len(c.priceCols))
		for i, col := range c.priceCols {
			values[i] = row.Get(col)
		}
		out[mapping.FieldPrice] = Price(values...)
	}

	if unmapped(mapping.FieldGrams) && c.weightCol != "" {
		grams, ok := Grams(row.Get(c.weightCol), c.opts.Processing.WeightAdjustment)
		out[mapping.FieldGrams] = strconv.Itoa(grams)
		weightOK = ok
	}

	if unmapped(mapping.FieldBody) && (c.descCol != "" || c.bulletsCol != "") {
		out[mapping.FieldBody] = BodyHTML(
			row.Get(c.descCol), row.Get(c.bulletsCol),
			row.Get(c.lengthCol), row.Get(c.widthCol), row.Get(c.heightCol),
			row.Get(c.barcodeCol),
		)
	}

	if unmapped(mapping.FieldSEODescription) && c.descCol != "" {
		out[mapping.FieldSEODescription] = SEODescription(row.Get(c.descCol), c.opts.Processing.NationwideShipping)
	}

	if unmapped(mapping.FieldPublished) && c.availableCol != "" {
		out[mapping.FieldPublished] = Published(row.Get(c.availableCol))
	}

	for _, f := range []string{mapping.FieldImageAltText, mapping.FieldSEOTitle} {
		if unmapped(f) {
			out[f] = out[mapping.FieldTitle]
		}
	}

	for _, s := range c.opts.StaticFields {
		if out[s.Field] == "" {
			out[s.Field] = s.Value
		}
	}

	return out, weightOK
}

// expand emits one row per image with sequential positions. A row without
// images yields a single row with an empty Image Src at position 1.
func (c *Converter) expand(row, base types.Row) []types.Row {
	var images []string
	if c.imageColumn != "" {
		images = SplitImages(row.Get(c.imageColumn))
	}

	if len(images) == 0 {
		base[mapping.FieldImageSrc] = ""
		base[mapping.FieldImagePosition] = "1"
		return []types.Row{base}
	}

	out := make([]types.Row, len(images))
	for i, img := range images {
		r := base
		if i > 0 {
			r = base.Clone()
		}
		r[mapping.FieldImageSrc] = img
		r[mapping.FieldImagePosition] = strconv.Itoa(i + 1)
		out[i] = r
	}
	return out
}
