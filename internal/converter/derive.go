package converter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// GramsPerPound converts the source weight unit to the catalog's mass unit.
const GramsPerPound = 453.592

// Handle builds the URL-safe product identifier from source values.
// Empty parts are skipped.
func Handle(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return slug.Make(strings.Join(kept, "-"))
}

// Grams adds adjustment to a weight in pounds, rounds up to the next whole
// pound and converts to grams. A blank or non-numeric weight counts as 0;
// ok is false in that case.
func Grams(weight string, adjustment float64) (grams int, ok bool) {
	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	ok = err == nil && !math.IsNaN(w) && !math.IsInf(w, 0)
	if !ok {
		w = 0
	}
	return int(math.Round(math.Ceil(w+adjustment) * GramsPerPound)), ok
}

// BodyHTML composes the product description from its descriptive parts.
// Missing dimensions and barcode render as "N/A".
func BodyHTML(description, bullets, length, width, height, barcode string) string {
	return fmt.Sprintf("<p>%s</p><p>%s</p><p>Dimensions: %s x %s x %s</p><p>Code: %s</p>",
		description, bullets, orNA(length), orNA(width), orNA(height), orNA(barcode))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// SEODescription appends the shipping note when nationwide is set.
func SEODescription(description string, nationwide bool) string {
	description = strings.TrimSpace(description)
	switch {
	case !nationwide:
		return description
	case description == "":
		return "Nationwide Shipping"
	default:
		return description + " Nationwide Shipping"
	}
}

// Price picks the first value that parses as a number. When none does, the
// last value is returned as is.
func Price(values ...string) string {
	for _, v := range values {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return strings.TrimSpace(v)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// Published maps an availability flag to the catalog's boolean text.
func Published(availability string) string {
	if strings.EqualFold(strings.TrimSpace(availability), "YES") {
		return "TRUE"
	}
	return "FALSE"
}

// SplitImages splits a comma-separated image list. Entries are trimmed and
// empty entries dropped.
func SplitImages(list string) []string {
	var out []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
