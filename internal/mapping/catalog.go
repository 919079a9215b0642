// Package mapping holds the target field catalog and the engine that assigns
// source headers to catalog fields.
//
// The catalog is the product import format's full column list, in the order
// the output header row uses. Every catalog field belongs to exactly one
// Category; the category only drives UI emphasis and validation severity.
package mapping

// Category is the validation severity of a catalog field.
type Category string

const (
	Required    Category = "required"
	Conditional Category = "conditional"
	Recommended Category = "recommended"
	Optional    Category = "optional"
)

// Categories lists every category, most severe first.
var Categories = []Category{Required, Conditional, Recommended, Optional}

// Catalog field names referenced by the transformation engine.
const (
	FieldHandle         = "Handle"
	FieldTitle          = "Title"
	FieldBody           = "Body (HTML)"
	FieldVendor         = "Vendor"
	FieldPublished      = "Published"
	FieldSKU            = "Variant SKU"
	FieldGrams          = "Variant Grams"
	FieldInventoryQty   = "Variant Inventory Qty"
	FieldPrice          = "Variant Price"
	FieldImageSrc       = "Image Src"
	FieldImagePosition  = "Image Position"
	FieldImageAltText   = "Image Alt Text"
	FieldSEOTitle       = "SEO Title"
	FieldSEODescription = "SEO Description"
	FieldStatus         = "Status"
)

var catalog = []string{
	"Handle",
	"Title",
	"Body (HTML)",
	"Vendor",
	"Product Category",
	"Type",
	"Tags",
	"Published",
	"Option1 Name",
	"Option1 Value",
	"Option2 Name",
	"Option2 Value",
	"Option3 Name",
	"Option3 Value",
	"Variant SKU",
	"Variant Grams",
	"Variant Inventory Tracker",
	"Variant Inventory Qty",
	"Variant Inventory Policy",
	"Variant Fulfillment Service",
	"Variant Price",
	"Variant Compare At Price",
	"Variant Requires Shipping",
	"Variant Taxable",
	"Variant Barcode",
	"Image Src",
	"Image Position",
	"Image Alt Text",
	"Gift Card",
	"SEO Title",
	"SEO Description",
	"Google Shopping / Google Product Category",
	"Google Shopping / Gender",
	"Google Shopping / Age Group",
	"Google Shopping / MPN",
	"Google Shopping / AdWords Grouping",
	"Google Shopping / AdWords Labels",
	"Google Shopping / Condition",
	"Google Shopping / Custom Product",
	"Google Shopping / Custom Label 0",
	"Google Shopping / Custom Label 1",
	"Google Shopping / Custom Label 2",
	"Google Shopping / Custom Label 3",
	"Google Shopping / Custom Label 4",
	"Variant Image",
	"Variant Weight Unit",
	"Variant Tax Code",
	"Cost per item",
	"Price / International",
	"Compare At Price / International",
	"Status",
}

var categoryOf = func() map[string]Category {
	m := make(map[string]Category, len(catalog))
	for _, f := range catalog {
		m[f] = Optional
	}
	for _, f := range []string{"Handle", "Title", "Variant Price", "Variant Inventory Qty"} {
		m[f] = Required
	}
	for _, f := range []string{
		"Option1 Name", "Option1 Value",
		"Option2 Name", "Option2 Value",
		"Option3 Name", "Option3 Value",
		"Variant SKU", "Variant Inventory Policy", "Variant Inventory Tracker",
	} {
		m[f] = Conditional
	}
	for _, f := range []string{"Body (HTML)", "Vendor", "Type", "Tags", "Image Src", "Published"} {
		m[f] = Recommended
	}
	return m
}()

// Fields returns a copy of the catalog in output order.
func Fields() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// IsField reports whether name is a catalog field.
func IsField(name string) bool {
	_, ok := categoryOf[name]
	return ok
}

// CategoryOf returns the category of a catalog field. The second result is
// false for names outside the catalog.
func CategoryOf(field string) (Category, bool) {
	c, ok := categoryOf[field]
	return c, ok
}

// FieldsIn returns the catalog fields of one category in catalog order.
func FieldsIn(c Category) []string {
	var out []string
	for _, f := range catalog {
		if categoryOf[f] == c {
			out = append(out, f)
		}
	}
	return out
}
