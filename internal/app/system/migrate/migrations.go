package migrate

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Registered migration names.
const (
	SectionsDeriveIDs       = "sections-derive-ids"
	PagesBackfillActive     = "pages-backfill-active"
	SectionsBackfillActive  = "sections-backfill-active"
	SectionsDropPageBackref = "sections-drop-page-backref"
	PagesDedupeSectionRefs  = "pages-dedupe-section-refs"
	NormalizeLanguageCodes  = "normalize-language-codes"
	BackfillSearchKeys      = "backfill-search-keys"
)

func init() {
	register(Migration{
		Name:        SectionsDeriveIDs,
		Description: "derive section_id from title where it is missing or empty",
		Collections: []string{"sections"},
		Filter: bson.M{"$or": bson.A{
			bson.M{"section_id": bson.M{"$exists": false}},
			bson.M{"section_id": nil},
			bson.M{"section_id": ""},
		}},
		Apply: deriveSectionID,
	})
	register(Migration{
		Name:        PagesBackfillActive,
		Description: "set is_active=true on pages that predate soft delete",
		Collections: []string{"pages"},
		Filter:      bson.M{"is_active": bson.M{"$exists": false}},
		Apply:       backfillActive,
	})
	register(Migration{
		Name:        SectionsBackfillActive,
		Description: "set is_active=true on sections that predate soft delete",
		Collections: []string{"sections"},
		Filter:      bson.M{"is_active": bson.M{"$exists": false}},
		Apply:       backfillActive,
	})
	register(Migration{
		Name:        SectionsDropPageBackref,
		Description: "remove the denormalized page back-reference from sections",
		Collections: []string{"sections"},
		Filter:      bson.M{"page": bson.M{"$exists": true}},
		Apply:       dropPageBackref,
	})
	register(Migration{
		Name:        PagesDedupeSectionRefs,
		Description: "convert hex-string section refs to ObjectIDs and drop repeated refs, keeping first positions",
		Collections: []string{"pages"},
		Filter:      bson.M{"sections.0": bson.M{"$exists": true}},
		Apply:       dedupeSectionRefs,
	})
	register(Migration{
		Name:        NormalizeLanguageCodes,
		Description: "lowercase language codes and translation keys, \"_\" becomes \"-\"",
		Collections: []string{"pages", "sections"},
		Apply:       normalizeLanguages,
	})
	register(Migration{
		Name:        BackfillSearchKeys,
		Description: "fill title_ci and category_ci folded search keys",
		Collections: []string{"pages", "sections"},
		Filter: bson.M{"$or": bson.A{
			bson.M{"title_ci": bson.M{"$exists": false}},
			bson.M{"category": bson.M{"$exists": true}, "category_ci": bson.M{"$exists": false}},
		}},
		Apply: backfillSearchKeys,
	})
}

func deriveSectionID(doc bson.M) (bson.M, bool, error) {
	if s, _ := doc["section_id"].(string); s != "" {
		return doc, false, nil
	}
	title, _ := doc["title"].(string)
	id := models.DeriveSectionID(title)
	if id == "" {
		return nil, false, fmt.Errorf("cannot derive section_id from title %q", title)
	}
	doc["section_id"] = id
	touch(doc)
	return doc, true, nil
}

func backfillActive(doc bson.M) (bson.M, bool, error) {
	if _, ok := doc["is_active"]; ok {
		return doc, false, nil
	}
	doc["is_active"] = true
	touch(doc)
	return doc, true, nil
}

func dropPageBackref(doc bson.M) (bson.M, bool, error) {
	if _, ok := doc["page"]; !ok {
		return doc, false, nil
	}
	delete(doc, "page")
	touch(doc)
	return doc, true, nil
}

func dedupeSectionRefs(doc bson.M) (bson.M, bool, error) {
	refs, ok := asArray(doc["sections"])
	if !ok {
		return nil, false, errors.New("sections is not an array")
	}

	out := make(primitive.A, 0, len(refs))
	seen := map[primitive.ObjectID]bool{}
	changed := false
	for _, r := range refs {
		var id primitive.ObjectID
		switch v := r.(type) {
		case primitive.ObjectID:
			id = v
		case string:
			oid, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				return nil, false, fmt.Errorf("section ref %q is not an id", v)
			}
			id = oid
			changed = true
		default:
			return nil, false, fmt.Errorf("section ref of type %T", r)
		}
		if seen[id] {
			changed = true
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if !changed {
		return doc, false, nil
	}
	doc["sections"] = out
	touch(doc)
	return doc, true, nil
}

// normalizeLanguages rewrites language and translation keys. When two keys
// collapse into one ("pt_BR" and "pt-br"), the canonical key's non-empty
// fields win.
func normalizeLanguages(doc bson.M) (bson.M, bool, error) {
	changed := false

	if lang, ok := doc["language"].(string); ok {
		n := models.NormalizeLanguage(lang)
		if n == "" {
			n = models.DefaultLanguage
		}
		if !models.IsValidLanguage(n) {
			return nil, false, fmt.Errorf("language %q is not a language code", lang)
		}
		if n != lang {
			doc["language"] = n
			changed = true
		}
	}

	trs, ok := asMap(doc["translations"])
	if ok {
		// Canonical keys first so they win merges.
		keys := make([]string, 0, len(trs))
		for k := range trs {
			keys = append(keys, k)
		}
		sortCanonicalFirst(keys)

		out := bson.M{}
		for _, k := range keys {
			n := models.NormalizeLanguage(k)
			if !models.IsValidLanguage(n) {
				return nil, false, fmt.Errorf("translation key %q is not a language code", k)
			}
			if n != k {
				changed = true
			}
			entry, _ := asMap(trs[k])
			if prev, dup := out[n]; dup {
				merged := prev.(bson.M)
				for f, v := range entry {
					if s, _ := merged[f].(string); s == "" {
						merged[f] = v
					}
				}
				continue
			}
			cp := bson.M{}
			for f, v := range entry {
				cp[f] = v
			}
			out[n] = cp
		}
		if changed {
			doc["translations"] = out
		}
	}

	if changed {
		touch(doc)
	}
	return doc, changed, nil
}

func backfillSearchKeys(doc bson.M) (bson.M, bool, error) {
	changed := false
	if _, ok := doc["title_ci"]; !ok {
		title, _ := doc["title"].(string)
		doc["title_ci"] = text.Fold(title)
		changed = true
	}
	if cat, ok := doc["category"].(string); ok {
		if _, has := doc["category_ci"]; !has {
			doc["category_ci"] = text.Fold(cat)
			changed = true
		}
	}
	if changed {
		touch(doc)
	}
	return doc, changed, nil
}

func touch(doc bson.M) {
	doc["updated_at"] = time.Now().UTC()
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case primitive.A:
		return a, true
	case []any:
		return a, true
	}
	return nil, false
}

func asMap(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return m, true
	case bson.D:
		out := make(bson.M, len(m))
		for _, e := range m {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

// sortCanonicalFirst orders keys so already-canonical ones come first,
// then lexically.
func sortCanonicalFirst(keys []string) {
	canonical := func(k string) bool { return models.NormalizeLanguage(k) == k }
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := canonical(keys[i]), canonical(keys[j])
		if ci != cj {
			return ci
		}
		return keys[i] < keys[j]
	})
}
