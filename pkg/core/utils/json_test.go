package utils

import "testing"

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"Plain", `  {"a": 1}  `, `{"a": 1}`},
		{"Tagged", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"Untagged", "```\n[1, 2]\n```", `[1, 2]`},
		{"Inline", "```{\"a\": 1}```", `{"a": 1}`},
		{"Unbalanced", "```json\n{\"a\": 1}", "```json\n{\"a\": 1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSmartParse(t *testing.T) {
	type answer struct {
		Index    int    `json:"index"`
		Category string `json:"category"`
	}

	tests := []struct {
		name  string
		input string
	}{
		{"Standard", `[{"index": 0, "category": "revenue"}]`},
		{"Trailing comma", `[{"index": 0, "category": "revenue"},]`},
		{"Single quotes", `[{'index': 0, 'category': 'revenue'}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []answer
			if err := SmartParse(tt.input, &got); err != nil {
				t.Fatalf("SmartParse() error = %v", err)
			}
			if len(got) != 1 || got[0].Category != "revenue" {
				t.Errorf("SmartParse() = %+v", got)
			}
		})
	}
}

func TestSmartParseFailure(t *testing.T) {
	var v struct{ A int }
	if err := SmartParse(`{"A": "not a number"}`, &v); err == nil {
		t.Error("expected error for a type mismatch no strategy can fix")
	}
}

func TestParseHJSON(t *testing.T) {
	got, err := ParseHJSON("{\n  // comment\n  name: Rent Income\n}")
	if err != nil {
		t.Fatalf("ParseHJSON() error = %v", err)
	}
	if got != `{"name":"Rent Income"}` {
		t.Errorf("ParseHJSON() = %s", got)
	}
}
