// internal/domain/models/language.go
package models

import (
	"regexp"
	"strings"
)

var langRe = regexp.MustCompile(`^[a-z]{2,3}(?:-[a-z0-9]{2,8})*$`)

// NormalizeLanguage returns the canonical form of a language code
// ("pt_BR" becomes "pt-br").
func NormalizeLanguage(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// IsValidLanguage reports whether s is a canonical language code. Codes are
// also used as document keys, so dots and dollar signs never pass.
func IsValidLanguage(s string) bool {
	return langRe.MatchString(s)
}
