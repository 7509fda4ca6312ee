package htmlsanitize

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:  "empty string",
			input: "",
		},
		{
			name:     "plain text",
			input:    "Eddy current testing",
			contains: []string{"Eddy current testing"},
		},
		{
			name:     "formatting kept",
			input:    "<p><strong>Sensor</strong> and <em>coil</em> <del>old</del></p>",
			contains: []string{"<strong>Sensor</strong>", "<em>coil</em>", "<del>old</del>"},
		},
		{
			name:     "script removed",
			input:    `<p>ok</p><script>alert(1)</script>`,
			contains: []string{"<p>ok</p>"},
			excludes: []string{"<script", "alert(1)"},
		},
		{
			name:     "event handlers removed",
			input:    `<img src="https://x.example/a.png" onerror="alert(1)">`,
			contains: []string{`src="https://x.example/a.png"`},
			excludes: []string{"onerror"},
		},
		{
			name:     "javascript link removed",
			input:    `<a href="javascript:alert(1)">x</a>`,
			excludes: []string{"javascript:"},
		},
		{
			name:     "external links get nofollow",
			input:    `<a href="https://asnt.org">ASNT</a>`,
			contains: []string{`rel="nofollow noopener"`, `target="_blank"`},
		},
		{
			name:     "tables kept",
			input:    `<table><thead><tr><th align="left">Method</th></tr></thead><tbody><tr><td>ET</td></tr></tbody></table>`,
			contains: []string{"<table>", "<th", "<td>ET</td>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize() = %q, want it to contain %q", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize() = %q, must not contain %q", got, bad)
				}
			}
		})
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"just text", true},
		{"a < b", true},
		{"<p>html</p>", false},
	}
	for _, tt := range tests {
		if got := IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlainTextToHTML(t *testing.T) {
	got := PlainTextToHTML("line 1\n<b>line 2</b>")
	want := "<p>line 1<br>&lt;b&gt;line 2&lt;/b&gt;</p>"
	if got != want {
		t.Errorf("PlainTextToHTML() = %q, want %q", got, want)
	}
	if PlainTextToHTML("") != "" {
		t.Error("empty input should give empty output")
	}
}
