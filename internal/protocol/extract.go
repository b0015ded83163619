package protocol

import "strings"

// ExtractText pulls a flat string out of an arbitrarily shaped payload. It
// is the single source of truth for text extraction across every dispatch
// branch: a bare string, a .text field, the first matching element of an
// array, or a .text field one object deeper. Returns false if no non-empty
// text is found.
func ExtractText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return s, true
		}
	case []any:
		for _, item := range val {
			if text, ok := ExtractText(item); ok {
				return text, true
			}
		}
	case map[string]any:
		if text, ok := ExtractText(val["text"]); ok {
			return text, true
		}
		for _, nested := range val {
			m, ok := nested.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := ExtractText(m["text"]); ok {
				return text, true
			}
		}
	}
	return "", false
}
