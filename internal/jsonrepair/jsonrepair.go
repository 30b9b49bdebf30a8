// jsonrepair.go - Shared repair and merge helpers for model JSON output

package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"
)

// closingSuffixes are tried in order when a parse fails. Token-limited
// generation usually truncates inside a string value or just before the
// closing braces, so the most likely completions come first.
var closingSuffixes = []string{`"}`, `"]}`, `"]`, `}`, `"}}`, `"}}}`, `"}}}}`}

// ParseError reports that a response could not be parsed even after repair.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json repair failed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes markdown code fencing around a JSON payload. Models
// frequently wrap responses in ```json ... ``` despite being told not to.
func StripFences(text string) string {
	if strings.Contains(text, "```json") {
		after := strings.SplitN(text, "```json", 2)[1]
		return strings.TrimSpace(strings.SplitN(after, "```", 2)[0])
	}
	if strings.Contains(text, "```") {
		parts := strings.Split(text, "```")
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(text)
}

// RepairAndParse parses text as a JSON object, attempting progressive
// bracket completion when the straight parse fails. Pure function: the
// input is never modified, and no partial state escapes on failure.
func RepairAndParse(text string) (map[string]interface{}, error) {
	var result map[string]interface{}

	err := json.Unmarshal([]byte(text), &result)
	if err == nil {
		return result, nil
	}

	for _, suffix := range closingSuffixes {
		var repaired map[string]interface{}
		if json.Unmarshal([]byte(text+suffix), &repaired) == nil {
			return repaired, nil
		}
	}

	return nil, &ParseError{Err: err}
}

// Merge copies every top-level key of src into dst, overwriting on
// collision (last writer wins). dst only ever grows.
func Merge(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

// Flatten renders a parsed record as single-level key → string pairs for
// prompt embedding and row writing. Nested objects keep their JSON form.
func Flatten(record map[string]interface{}) map[string]string {
	flat := make(map[string]string, len(record))
	for k, v := range record {
		flat[k] = Stringify(v)
	}
	return flat
}

// Stringify converts any JSON value to its display string. Nested
// structures are re-serialized rather than fmt'd so the output stays
// machine-readable.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without the
		// trailing ".000000".
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
