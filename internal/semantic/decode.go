// Package semantic implements the optional semantic-mapping services that
// suggest catalog field -> source header assignments.
//
// Two providers exist: a plain HTTP function endpoint that answers with
// {"mapping": {...}}, and a Gemini model prompted for a JSON object. Both
// satisfy mapping.Suggester.
package semantic

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// DecodeMapping parses model output into a field -> header map.
//
// Model output is frequently wrapped in a markdown fence, carries trailing
// prose, or is missing a brace. The text is unfenced, then tried as strict
// JSON, then repaired with json-repair, then read as Hjson. Non-string values
// are dropped; null becomes "".
func DecodeMapping(text string) (map[string]string, error) {
	body := unfence(text)
	if body == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err == nil {
		return stringValues(raw), nil
	}

	if repaired, err := jsonrepair.RepairJSON(body); err == nil {
		if err := json.Unmarshal([]byte(repaired), &raw); err == nil {
			return stringValues(raw), nil
		}
	}

	if err := hjson.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("model response is not a JSON object: %w", err)
	}
	return stringValues(raw), nil
}

// unfence strips a ```json ... ``` wrapper and any text outside the outermost
// braces.
func unfence(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}

func stringValues(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = strings.TrimSpace(val)
		case nil:
			out[k] = ""
		}
	}
	return out
}
