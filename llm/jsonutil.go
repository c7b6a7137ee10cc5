package llm

import (
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from LLM responses.
var (
	// fencedBlockPattern matches JSON inside markdown code fences: ```json ... ```
	fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSONArray extracts a JSON array from an LLM response string.
// Models routinely wrap the payload in prose or markdown fences; the
// array is located by the first '[' and the last ']' of the candidate
// text. Returns "" when no bracket pair exists.
func ExtractJSONArray(content string) string {
	return extractDelimited(content, '[', ']')
}

// ExtractJSONObject extracts a JSON object from an LLM response string.
func ExtractJSONObject(content string) string {
	return extractDelimited(content, '{', '}')
}

// extractDelimited slices the outermost open..close span, preferring the
// contents of a markdown code fence when one is present.
func extractDelimited(content string, open, closing byte) string {
	if matches := fencedBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		if inner := sliceBrackets(matches[1], open, closing); inner != "" {
			return cleanJSON(inner)
		}
	}
	if raw := sliceBrackets(content, open, closing); raw != "" {
		return cleanJSON(raw)
	}
	return ""
}

// sliceBrackets returns the span from the first open bracket to the last
// closing bracket, or "" when no well-ordered pair exists.
func sliceBrackets(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// cleanJSON removes trailing commas before closing brackets, a common
// invalid-JSON artifact in LLM output.
func cleanJSON(raw string) string {
	return trailingCommaPattern.ReplaceAllString(raw, "$1")
}
