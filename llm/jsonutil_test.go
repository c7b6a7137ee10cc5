package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantLen  int  // expected array length when parse succeeds
		wantFail bool // true when extraction should return ""
	}{
		{
			name:    "plain array",
			input:   `[{"dayNumber": 1}, {"dayNumber": 2}]`,
			wantLen: 2,
		},
		{
			name:    "array with surrounding prose",
			input:   "Here is your roadmap:\n[{\"dayNumber\": 1}]\nGood luck!",
			wantLen: 1,
		},
		{
			name:    "markdown code fence",
			input:   "```json\n[{\"dayNumber\": 1}, {\"dayNumber\": 2}, {\"dayNumber\": 3}]\n```",
			wantLen: 3,
		},
		{
			name:    "fence without language tag",
			input:   "```\n[{\"dayNumber\": 1}]\n```",
			wantLen: 1,
		},
		{
			name:    "trailing comma cleaned",
			input:   `[{"dayNumber": 1}, {"dayNumber": 2},]`,
			wantLen: 2,
		},
		{
			name:    "fence followed by commentary",
			input:   "```json\n[{\"dayNumber\": 1}]\n```\n\n**Notes:** pace yourself.",
			wantLen: 1,
		},
		{
			name:     "no brackets at all",
			input:    "I could not produce a roadmap for that goal.",
			wantFail: true,
		},
		{
			name:     "empty input",
			input:    "",
			wantFail: true,
		},
		{
			name:     "mismatched bracket order",
			input:    "] oops [",
			wantFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONArray(tt.input)
			if tt.wantFail {
				if got != "" {
					t.Fatalf("expected no extraction, got %q", got)
				}
				return
			}
			if got == "" {
				t.Fatal("expected extraction, got empty string")
			}
			var parsed []map[string]any
			if err := json.Unmarshal([]byte(got), &parsed); err != nil {
				t.Fatalf("extracted text is not valid JSON: %v\n%s", err, got)
			}
			if len(parsed) != tt.wantLen {
				t.Fatalf("expected %d elements, got %d", tt.wantLen, len(parsed))
			}
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	got := ExtractJSONObject("Sure:\n```json\n{\"reply\": \"hello\",}\n```")
	if got == "" {
		t.Fatal("expected extraction")
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["reply"] != "hello" {
		t.Fatalf("unexpected value: %v", parsed)
	}
}
