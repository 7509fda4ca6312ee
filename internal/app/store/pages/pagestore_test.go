package pagestore

import (
	"testing"
	"time"

	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/stratacms/internal/testutil"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newPage(slug string, active bool, sections ...primitive.ObjectID) models.Page {
	now := time.Now().UTC()
	if sections == nil {
		sections = []primitive.ObjectID{}
	}
	return models.Page{
		ID:        primitive.NewObjectID(),
		Slug:      slug,
		Title:     slug,
		TitleCI:   slug,
		Language:  "en",
		Sections:  sections,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_InsertAndGetBySlug(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := newPage("testing", true)
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetBySlug(ctx, "testing", false)
	if err != nil {
		t.Fatalf("GetBySlug() error = %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %v, want %v", got.ID, p.ID)
	}

	_, err = store.GetBySlug(ctx, "missing", false)
	if err != mongo.ErrNoDocuments {
		t.Errorf("GetBySlug(missing) error = %v, want ErrNoDocuments", err)
	}
}

func TestStore_ActiveSlugUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Insert(ctx, newPage("about", true)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	err := store.Insert(ctx, newPage("about", true))
	if !wafflemongo.IsDup(err) {
		t.Fatalf("second active insert error = %v, want duplicate key", err)
	}

	// Inactive pages may share the slug.
	if err := store.Insert(ctx, newPage("about", false)); err != nil {
		t.Fatalf("inactive insert error = %v", err)
	}
}

func TestStore_GetBySlug_IncludeInactive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := newPage("archive", false)
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := store.GetBySlug(ctx, "archive", false); err != mongo.ErrNoDocuments {
		t.Errorf("GetBySlug(active only) error = %v, want ErrNoDocuments", err)
	}
	got, err := store.GetBySlug(ctx, "archive", true)
	if err != nil {
		t.Fatalf("GetBySlug(includeInactive) error = %v", err)
	}
	if got.IsActive {
		t.Error("expected inactive page")
	}
}

func TestStore_AddSection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	p := newPage("methods", true, a)
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.AddSection(ctx, p.ID, b, -1)
	if err != nil {
		t.Fatalf("AddSection() error = %v", err)
	}
	got, err = store.AddSection(ctx, p.ID, b, -1)
	if err != nil {
		t.Fatalf("AddSection(again) error = %v", err)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("Sections = %v, want 2 entries", got.Sections)
	}

	got, err = store.AddSection(ctx, p.ID, c, 0)
	if err != nil {
		t.Fatalf("AddSection(position 0) error = %v", err)
	}
	want := []primitive.ObjectID{c, a, b}
	for i := range want {
		if got.Sections[i] != want[i] {
			t.Fatalf("Sections = %v, want %v", got.Sections, want)
		}
	}

	// Positional insert of an already-listed id leaves the list alone.
	got, err = store.AddSection(ctx, p.ID, a, 0)
	if err != nil {
		t.Fatalf("AddSection(existing, position 0) error = %v", err)
	}
	if len(got.Sections) != 3 || got.Sections[0] != c {
		t.Errorf("Sections = %v, want unchanged", got.Sections)
	}
}

func TestStore_RemoveAndPullEverywhere(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	shared := primitive.NewObjectID()
	p1 := newPage("one", true, shared)
	p2 := newPage("two", true, primitive.NewObjectID(), shared)
	for _, p := range []models.Page{p1, p2} {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	refs, err := store.ReferencingSection(ctx, shared)
	if err != nil {
		t.Fatalf("ReferencingSection() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("ReferencingSection() = %d pages, want 2", len(refs))
	}

	got, err := store.RemoveSection(ctx, p1.ID, shared)
	if err != nil {
		t.Fatalf("RemoveSection() error = %v", err)
	}
	if len(got.Sections) != 0 {
		t.Errorf("Sections = %v, want empty", got.Sections)
	}

	n, err := store.PullSectionEverywhere(ctx, shared)
	if err != nil {
		t.Fatalf("PullSectionEverywhere() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PullSectionEverywhere() = %d, want 1", n)
	}
}

func TestStore_RepointSection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	from, to, other := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	p1 := newPage("p1", true, other, from)
	p2 := newPage("p2", true, from, to)
	for _, p := range []models.Page{p1, p2} {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	if _, err := store.RepointSection(ctx, from, to); err != nil {
		t.Fatalf("RepointSection() error = %v", err)
	}

	got1, _ := store.GetByID(ctx, p1.ID)
	if len(got1.Sections) != 2 || got1.Sections[1] != to {
		t.Errorf("p1 sections = %v, want [other to]", got1.Sections)
	}
	got2, _ := store.GetByID(ctx, p2.ID)
	if len(got2.Sections) != 1 || got2.Sections[0] != to {
		t.Errorf("p2 sections = %v, want [to]", got2.Sections)
	}
}

func TestStore_TranslationFields(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := newPage("home", true)
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := store.SetTranslationFields(ctx, p.ID, "es", map[string]string{"title": "Inicio"}); err != nil {
		t.Fatalf("SetTranslationFields() error = %v", err)
	}
	got, err := store.SetTranslationFields(ctx, p.ID, "es", map[string]string{"description": "Bienvenido"})
	if err != nil {
		t.Fatalf("SetTranslationFields() error = %v", err)
	}
	tr := got.Translations["es"]
	if tr.Title != "Inicio" || tr.Description != "Bienvenido" {
		t.Errorf("translation = %+v, want merged title and description", tr)
	}

	got, err = store.ReplaceTranslation(ctx, p.ID, "es", models.PageTranslation{Title: "Portada"})
	if err != nil {
		t.Fatalf("ReplaceTranslation() error = %v", err)
	}
	tr = got.Translations["es"]
	if tr.Title != "Portada" || tr.Description != "" {
		t.Errorf("translation = %+v, want replaced entry", tr)
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	mk := func(slug, title, category string, num int, tags []string, active bool) {
		p := newPage(slug, active)
		p.Title = title
		p.TitleCI = title
		p.Category = category
		p.CategoryCI = category
		p.PageNumber = num
		p.Tags = tags
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert(%s) error = %v", slug, err)
		}
	}
	mk("ut", "ultrasonic testing", "methods", 2, []string{"ndt"}, true)
	mk("vt", "visual testing", "methods", 1, []string{"ndt"}, true)
	mk("oil", "oil and gas", "industries", 3, nil, true)
	mk("old", "old testing", "methods", 0, nil, false)

	pages, total, err := store.List(ctx, ListOptions{Category: "methods"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 || len(pages) != 2 {
		t.Fatalf("List(category) = %d/%d, want 2/2", len(pages), total)
	}
	if pages[0].Slug != "vt" {
		t.Errorf("first page = %s, want vt (page_number order)", pages[0].Slug)
	}

	_, total, _ = store.List(ctx, ListOptions{Query: "testing", IncludeInactive: true})
	if total != 3 {
		t.Errorf("List(query, inactive) total = %d, want 3", total)
	}

	_, total, _ = store.List(ctx, ListOptions{Tag: "ndt"})
	if total != 2 {
		t.Errorf("List(tag) total = %d, want 2", total)
	}

	pages, total, _ = store.List(ctx, ListOptions{Limit: 1, Page: 2})
	if total != 3 || len(pages) != 1 {
		t.Errorf("List(paged) = %d/%d, want 1/3", len(pages), total)
	}
}

func TestStore_Exists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Insert(ctx, newPage("contact", true)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	ok, err := store.Exists(ctx, "contact")
	if err != nil || !ok {
		t.Errorf("Exists(contact) = %v, %v; want true", ok, err)
	}

	n, _ := db.Collection(CollectionName).CountDocuments(ctx, bson.M{})
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
