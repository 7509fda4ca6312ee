package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func section(sectionID string, pageNumber int, active bool) Section {
	return Section{
		ID:         primitive.NewObjectID(),
		SectionID:  sectionID,
		Title:      sectionID + " title",
		BodyText:   sectionID + " body",
		Language:   DefaultLanguage,
		PageNumber: pageNumber,
		IsActive:   active,
	}
}

func TestResolvePage_PreservesListOrder(t *testing.T) {
	a := section("a", 3, true)
	b := section("b", 1, true)
	c := section("c", 2, true)
	p := Page{ID: primitive.NewObjectID(), Slug: "testing", Language: "en", Sections: []primitive.ObjectID{a.ID, b.ID, c.ID}}
	byID := map[primitive.ObjectID]Section{a.ID: a, b.ID: b, c.ID: c}

	v := ResolvePage(p, byID, "")
	require.Len(t, v.Sections, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{v.Sections[0].SectionID, v.Sections[1].SectionID, v.Sections[2].SectionID})
}

func TestResolvePage_SkipsDanglingAndInactive(t *testing.T) {
	a := section("a", 1, true)
	gone := primitive.NewObjectID()
	off := section("off", 2, false)
	p := Page{ID: primitive.NewObjectID(), Language: "en", Sections: []primitive.ObjectID{gone, a.ID, off.ID}}

	v := ResolvePage(p, map[primitive.ObjectID]Section{a.ID: a, off.ID: off}, "fr")
	require.Len(t, v.Sections, 1)
	assert.Equal(t, "a", v.Sections[0].SectionID)
}

func TestResolvePage_FieldLevelFallback(t *testing.T) {
	s := section("visual-testing", 1, true)
	s.Title = "Visual Testing"
	s.BodyText = "Body"
	s.Translations = map[string]SectionTranslation{"fr": {Title: "Essais visuels"}}

	p := Page{
		ID:          primitive.NewObjectID(),
		Title:       "Testing",
		Description: "Inspection methods",
		Language:    "en",
		Sections:    []primitive.ObjectID{s.ID},
		Translations: map[string]PageTranslation{
			"fr": {Description: "Méthodes d'inspection"},
		},
	}

	v := ResolvePage(p, map[primitive.ObjectID]Section{s.ID: s}, "fr")
	assert.Equal(t, "Testing", v.Title)
	assert.Equal(t, "Méthodes d'inspection", v.Description)
	assert.True(t, v.Translated)
	assert.Equal(t, "fr", v.Language)
	assert.Equal(t, "en", v.BaseLanguage)

	require.Len(t, v.Sections, 1)
	assert.Equal(t, "Essais visuels", v.Sections[0].Title)
	assert.Equal(t, "Body", v.Sections[0].BodyText)
	assert.True(t, v.Sections[0].Translated)
}

func TestResolvePage_MissingLanguagePassesThrough(t *testing.T) {
	s := section("a", 1, true)
	s.Images = []string{"https://cdn.example.com/a.png"}
	p := Page{ID: primitive.NewObjectID(), Title: "T", Description: "D", Language: "en", Sections: []primitive.ObjectID{s.ID}}

	v := ResolvePage(p, map[primitive.ObjectID]Section{s.ID: s}, "de")
	assert.Equal(t, "T", v.Title)
	assert.Equal(t, "D", v.Description)
	assert.False(t, v.Translated)
	require.Len(t, v.Sections, 1)
	assert.Equal(t, s.Title, v.Sections[0].Title)
	assert.Equal(t, s.BodyText, v.Sections[0].BodyText)
	assert.Equal(t, s.Images, v.Sections[0].Images)
	assert.False(t, v.Sections[0].Translated)
}

func TestResolveSection_NilImagesBecomeEmpty(t *testing.T) {
	v := ResolveSection(section("a", 1, true), "")
	assert.NotNil(t, v.Images)
	assert.Empty(t, v.Images)
}

func TestPageHasSection(t *testing.T) {
	id := primitive.NewObjectID()
	p := Page{Sections: []primitive.ObjectID{id}}
	assert.True(t, p.HasSection(id))
	assert.False(t, p.HasSection(primitive.NewObjectID()))
}
