package normalize

import (
	"reflect"
	"testing"
)

func TestLanguage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"en", "en"},
		{"ES", "es"},
		{" pt_BR ", "pt-br"},
		{"zh-Hant", "zh-hant"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Language(tt.input); got != tt.want {
				t.Errorf("Language(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLanguageOr(t *testing.T) {
	if got := LanguageOr("", "EN"); got != "en" {
		t.Errorf("LanguageOr(\"\", EN) = %q, want en", got)
	}
	if got := LanguageOr(" Fr ", "en"); got != "fr" {
		t.Errorf("LanguageOr(Fr, en) = %q, want fr", got)
	}
}

func TestLanguages(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"en,es,fr", []string{"en", "es", "fr"}},
		{" EN , es,,en ", []string{"en", "es"}},
		{"pt_BR", []string{"pt-br"}},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Languages(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Languages(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"testing", "testing"},
		{" Testing ", "testing"},
		{"EDDY-CURRENT", "eddy-current"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slug(tt.input); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Eddy Current Testing", "Eddy Current Testing"},
		{"  Eddy Current Testing  ", "Eddy Current Testing"},
		{"\tOil & Gas\n", "Oil & Gas"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Name(tt.input); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTag(t *testing.T) {
	if got := Tag("  NDT "); got != "ndt" {
		t.Errorf("Tag() = %q, want ndt", got)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Bool(tt.input); got != tt.want {
				t.Errorf("Bool(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestQueryParam(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"eddy current", "eddy current"},
		{"  eddy current  ", "eddy current"},
		{"\tsearch\n", "search"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := QueryParam(tt.input); got != tt.want {
				t.Errorf("QueryParam(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
