package dispatch

import "encoding/json"

// SanitizeJSON serializes payload and replaces every null value, at any
// nesting depth, with an empty string. The round-trip produces a fresh copy
// per call, so concurrent dispatch attempts never share mutable state.
func SanitizeJSON(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return json.Marshal(scrub(decoded))
}

func scrub(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case map[string]any:
		for k, item := range val {
			val[k] = scrub(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = scrub(item)
		}
		return val
	default:
		return v
	}
}
