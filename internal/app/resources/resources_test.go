package resources

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDictionary(t *testing.T) {
	require.NoError(t, Validate())
	assert.True(t, json.Valid(StaticDictionary()))
	assert.Equal(t, []string{"en", "es", "pt-br"}, StaticLanguages())
}

func TestStaticLanguage(t *testing.T) {
	raw, ok := StaticLanguage("pt_BR")
	require.True(t, ok)

	var entries map[string]string
	require.NoError(t, json.Unmarshal(raw, &entries))
	assert.Equal(t, "Início", entries["nav.home"])

	_, ok = StaticLanguage("de")
	assert.False(t, ok)
}

func TestStaticLanguages_SameKeys(t *testing.T) {
	var all map[string]map[string]string
	require.NoError(t, json.Unmarshal(StaticDictionary(), &all))
	for lang, entries := range all {
		assert.Len(t, entries, len(all["en"]), "language %s", lang)
		for key := range all["en"] {
			assert.Contains(t, entries, key, "language %s", lang)
		}
	}
}
