package mapping

import (
	"regexp"
	"strings"
)

var (
	// structuralPrefix matches qualifiers that vary between sources but do
	// not identify the field: "variant ", "option2 ", "google shopping / ".
	structuralPrefix = regexp.MustCompile(`variant |option\d+ |google shopping / `)
	internationalSfx = regexp.MustCompile(` / international`)
)

// normalize lowercases s and strips structural prefixes and the
// international suffix.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = structuralPrefix.ReplaceAllString(s, "")
	return internationalSfx.ReplaceAllString(s, "")
}

// AutoMap assigns source headers to fields, visiting fields in order.
//
// For each field:
//  1. the first header equal to the field name, ignoring case, wins
//  2. otherwise the first header whose normalized text contains, or is
//     contained in, the normalized field name wins
//  3. otherwise the field is unmapped
//
// The assignment is greedy: several fields may share one header and earlier
// choices are never revisited. Headers whose normalized form is empty are
// ignored in step 2, since containment against "" is always true.
//
// Pass Fields() as fields for the catalog mapping; the result then holds an
// entry for every catalog field.
func AutoMap(headers []string, fields []string) FieldMapping {
	lowered := make([]string, len(headers))
	normalized := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(h)
		normalized[i] = normalize(h)
	}

	m := make(FieldMapping, len(fields))
	for _, field := range fields {
		m[field] = match(field, headers, lowered, normalized)
	}
	return m
}

func match(field string, headers, lowered, normalized []string) string {
	fieldLower := strings.ToLower(field)
	for i, h := range lowered {
		if h == fieldLower {
			return headers[i]
		}
	}

	fieldNorm := normalize(field)
	if fieldNorm == "" {
		return ""
	}
	for i, h := range normalized {
		if h == "" {
			continue
		}
		if strings.Contains(h, fieldNorm) || strings.Contains(fieldNorm, h) {
			return headers[i]
		}
	}
	return ""
}

// AutoMapCatalog runs AutoMap against the full catalog.
func AutoMapCatalog(headers []string) FieldMapping {
	return AutoMap(headers, catalog)
}
