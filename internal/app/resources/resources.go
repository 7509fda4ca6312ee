// internal/app/resources/resources.go
package resources

import (
	_ "embed"
	"encoding/json"
	"sort"
	"sync"

	"github.com/dalemusser/stratacms/internal/domain/models"
)

// The static UI dictionary: language → key → string. It is served as-is.
//
//go:embed i18n/static.json
var staticJSON []byte

var (
	parseOnce sync.Once
	byLang    map[string]json.RawMessage
	parseErr  error
)

func parse() {
	parseOnce.Do(func() {
		parseErr = json.Unmarshal(staticJSON, &byLang)
	})
}

// StaticDictionary returns the embedded dictionary document.
func StaticDictionary() []byte {
	return staticJSON
}

// StaticLanguage returns one language's entries as stored. Lookup
// normalizes lang, so "pt_BR" finds "pt-br".
func StaticLanguage(lang string) (json.RawMessage, bool) {
	parse()
	if parseErr != nil {
		return nil, false
	}
	raw, ok := byLang[models.NormalizeLanguage(lang)]
	return raw, ok
}

// StaticLanguages lists the languages the dictionary covers, sorted.
func StaticLanguages() []string {
	parse()
	out := make([]string, 0, len(byLang))
	for lang := range byLang {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Validate reports whether the embedded dictionary parses. Startup calls it
// so a broken build fails fast.
func Validate() error {
	parse()
	return parseErr
}
