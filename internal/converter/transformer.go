// =============================================================================
// Inventory CSV Mapper - Field Value Rules
// =============================================================================
//
// Field rules rewrite output values of individual catalog fields after
// mapping and derivation. Each rule is a list of actions applied in order.
//
// EXAMPLE (config.yaml):
//
//   field_rules:
//     - field: Variant SKU
//       actions:
//         - type: trim
//         - type: uppercase
//         - type: prepend_string
//           value: "AC-"
//     - field: Vendor
//       actions:
//         - type: if_empty_use_default
//           value: "Unbranded"
//
// Rules are compiled once per conversion; an unknown action type or an
// invalid pattern is reported by NewRules, never per row.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/inventory-csv-mapper/internal/config"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/mapping"
	"github.com/ginjaninja78/inventory-csv-mapper/internal/types"
)

// =============================================================================
// RULES
// =============================================================================

// Rules holds compiled field rules keyed by catalog field.
type Rules struct {
	byField map[string][]action
	order   []string
}

type action struct {
	config.RuleAction
	re       *regexp.Regexp
	decimals int
}

// NewRules compiles rules. Rules for fields outside the catalog and actions
// with an unknown type are errors.
func NewRules(rules []config.FieldRule) (*Rules, error) {
	r := &Rules{byField: make(map[string][]action)}
	for _, rule := range rules {
		if !mapping.IsField(rule.Field) {
			return nil, fmt.Errorf("field rule: unknown catalog field %q", rule.Field)
		}
		if _, seen := r.byField[rule.Field]; !seen {
			r.order = append(r.order, rule.Field)
		}
		for _, a := range rule.Actions {
			compiled, err := compileAction(a)
			if err != nil {
				return nil, fmt.Errorf("field rule %q: %w", rule.Field, err)
			}
			r.byField[rule.Field] = append(r.byField[rule.Field], compiled)
		}
	}
	return r, nil
}

func compileAction(a config.RuleAction) (action, error) {
	out := action{RuleAction: a}
	switch a.Type {
	case "prepend_string", "append_string", "trim", "uppercase", "lowercase",
		"replace", "if_empty_use_default", "if_empty_use_field", "lookup":
	case "regex_replace":
		if a.Find == "" {
			return out, fmt.Errorf("regex_replace requires find")
		}
		re, err := regexp.Compile(a.Find)
		if err != nil {
			return out, fmt.Errorf("invalid regex pattern: %w", err)
		}
		out.re = re
	case "format_number":
		n, err := strconv.Atoi(a.Value)
		if err != nil || n < 0 {
			return out, fmt.Errorf("format_number requires a non-negative number of decimal places, got %q", a.Value)
		}
		out.decimals = n
	default:
		return out, fmt.Errorf("unknown transformation type: %s", a.Type)
	}
	return out, nil
}

// Empty reports whether no rule is defined.
func (r *Rules) Empty() bool {
	return r == nil || len(r.order) == 0
}

// Apply rewrites the fields of out that have rules, in rule order.
func (r *Rules) Apply(out types.Row) {
	if r.Empty() {
		return
	}
	for _, field := range r.order {
		value := out[field]
		for _, a := range r.byField[field] {
			value = a.apply(value, out)
		}
		out[field] = value
	}
}

// apply runs a single action. row holds the output values of the current
// row and serves if_empty_use_field.
func (a action) apply(value string, row types.Row) string {
	switch a.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		return a.Value + value

	case "append_string":
		return value + a.Value

	case "trim":
		return strings.TrimSpace(value)

	case "uppercase":
		return strings.ToUpper(value)

	case "lowercase":
		return strings.ToLower(value)

	case "replace":
		// EXAMPLE:
		//   Input: "hello-world"
		//   Action: replace with find "-" and value "_"
		//   Output: "hello_world"
		if a.Find == "" {
			return value
		}
		return strings.ReplaceAll(value, a.Find, a.Value)

	case "regex_replace":
		return a.re.ReplaceAllString(value, a.Value)

	// =========================================================================
	// NUMERIC FORMATTING
	// =========================================================================

	case "format_number":
		// EXAMPLE:
		//   Input: "1234.5"
		//   Action: format_number with value "2"
		//   Output: "1234.50"
		num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return value
		}
		return strconv.FormatFloat(num, 'f', a.decimals, 64)

	// =========================================================================
	// LOOKUPS AND FALLBACKS
	// =========================================================================

	case "lookup":
		if replacement, ok := a.LookupTable[value]; ok {
			return replacement
		}
		return value

	case "if_empty_use_default":
		if strings.TrimSpace(value) == "" {
			return a.Value
		}
		return value

	case "if_empty_use_field":
		if strings.TrimSpace(value) == "" {
			return row[a.Value]
		}
		return value
	}

	return value
}
