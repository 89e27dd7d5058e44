package openai

import "strings"

// StripFences removes a markdown triple-backtick wrapper (with an optional
// "json" language tag) that models sometimes add around JSON output. Input
// without a fence is returned trimmed but otherwise unchanged, so the
// function is idempotent.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	parts := strings.SplitN(s, "```", 3)
	if len(parts) < 2 {
		return s
	}
	s = parts[1]
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
