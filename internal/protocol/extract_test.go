package protocol

import "testing"

func TestExtractText(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"bare string", "hello", "hello", true},
		{"whitespace string", "   ", "", false},
		{"text field", map[string]any{"text": "hi"}, "hi", true},
		{"empty text field", map[string]any{"text": ""}, "", false},
		{"array first match", []any{"", map[string]any{"text": "second"}}, "second", true},
		{"array of strings", []any{"first", "second"}, "first", true},
		{"nested object text", map[string]any{"output": map[string]any{"text": "deep"}}, "deep", true},
		{"nil", nil, "", false},
		{"number", 42.0, "", false},
		{"no text anywhere", map[string]any{"id": "x", "count": 3.0}, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractText(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractTextTrims(t *testing.T) {
	got, ok := ExtractText("  padded  ")
	if !ok || got != "padded" {
		t.Fatalf("got %q ok=%v, want trimmed text", got, ok)
	}
}
