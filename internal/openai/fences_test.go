package openai

import "testing"

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "no fence",
			input: `{"name": "x"}`,
			want:  `{"name": "x"}`,
		},
		{
			name:  "surrounding whitespace",
			input: "  {\"name\": \"x\"}\n",
			want:  `{"name": "x"}`,
		},
		{
			name:  "plain fence",
			input: "```\n{\"name\": \"x\"}\n```",
			want:  `{"name": "x"}`,
		},
		{
			name:  "json tagged fence",
			input: "```json\n{\"name\": \"x\"}\n```",
			want:  `{"name": "x"}`,
		},
		{
			name:  "fence without closing",
			input: "```json\n{\"name\": \"x\"}",
			want:  `{"name": "x"}`,
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripFences(tt.input)
			if got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.input, got, tt.want)
			}

			// Stripping is idempotent: running it again changes nothing.
			if again := StripFences(got); again != got {
				t.Errorf("StripFences not idempotent: %q became %q", got, again)
			}
		})
	}
}
