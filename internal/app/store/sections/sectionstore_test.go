package sectionstore

import (
	"testing"
	"time"

	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/stratacms/internal/testutil"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func newSection(title, lang string) models.Section {
	now := time.Now().UTC()
	return models.Section{
		ID:        primitive.NewObjectID(),
		SectionID: models.DeriveSectionID(title),
		Title:     title,
		TitleCI:   text.Fold(title),
		Images:    []string{},
		Language:  lang,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_InsertAndGetByKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sec := newSection("Eddy Current Testing (ET)", "en")
	if err := store.Insert(ctx, sec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetByKey(ctx, "eddy-current-testing", "en")
	if err != nil {
		t.Fatalf("GetByKey() error = %v", err)
	}
	if got.ID != sec.ID {
		t.Errorf("ID = %v, want %v", got.ID, sec.ID)
	}

	if _, err := store.GetByKey(ctx, "eddy-current-testing", "es"); err != mongo.ErrNoDocuments {
		t.Errorf("GetByKey(es) error = %v, want ErrNoDocuments", err)
	}
}

func TestStore_KeyUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Insert(ctx, newSection("Visual Testing (VT)", "en")); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.Insert(ctx, newSection("Visual Testing", "en")); !wafflemongo.IsDup(err) {
		t.Fatalf("duplicate key insert error = %v, want duplicate key", err)
	}
	if err := store.Insert(ctx, newSection("Visual Testing", "es")); err != nil {
		t.Fatalf("other language insert error = %v", err)
	}
}

func TestStore_FindByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := newSection("Alpha", "en")
	b := newSection("Beta", "en")
	for _, s := range []models.Section{a, b} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	got, err := store.FindByIDs(ctx, []primitive.ObjectID{a.ID, primitive.NewObjectID(), b.ID})
	if err != nil {
		t.Fatalf("FindByIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FindByIDs() = %d sections, want 2", len(got))
	}

	empty, err := store.FindByIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("FindByIDs(nil) = %v, %v; want empty", empty, err)
	}
}

func TestStore_Images(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sec := newSection("Radiography", "en")
	if err := store.Insert(ctx, sec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := store.AddImage(ctx, sec.ID, "/files/a.png"); err != nil {
		t.Fatalf("AddImage() error = %v", err)
	}
	got, err := store.AddImage(ctx, sec.ID, "/files/b.png")
	if err != nil {
		t.Fatalf("AddImage() error = %v", err)
	}
	if len(got.Images) != 2 || got.Images[1] != "/files/b.png" {
		t.Errorf("Images = %v, want [a b]", got.Images)
	}

	got, err = store.RemoveImage(ctx, sec.ID, "/files/a.png")
	if err != nil {
		t.Fatalf("RemoveImage() error = %v", err)
	}
	if len(got.Images) != 1 {
		t.Errorf("Images = %v, want one entry", got.Images)
	}
}

func TestStore_ListAndFindByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	vt := newSection("Visual Testing (VT)", "en")
	ut := newSection("Ultrasonic Testing", "en")
	es := newSection("Pruebas Visuales", "es")
	off := newSection("Old Testing", "en")
	off.IsActive = false
	for _, s := range []models.Section{vt, ut, es, off} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	_, total, err := store.List(ctx, ListOptions{Language: "en"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Errorf("List(en) total = %d, want 2", total)
	}

	_, total, _ = store.List(ctx, ListOptions{Query: "testing", IncludeInactive: true})
	if total != 3 {
		t.Errorf("List(query) total = %d, want 3", total)
	}

	list, total, _ := store.List(ctx, ListOptions{IDs: []primitive.ObjectID{ut.ID}})
	if total != 1 || list[0].ID != ut.ID {
		t.Errorf("List(ids) = %v, want only ut", list)
	}

	found, err := store.FindByName(ctx, []primitive.ObjectID{vt.ID, ut.ID}, "visual testing")
	if err != nil {
		t.Fatalf("FindByName() error = %v", err)
	}
	if len(found) != 1 || found[0].ID != vt.ID {
		t.Errorf("FindByName() = %v, want vt", found)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sec := newSection("Magnetic Particle", "en")
	if err := store.Insert(ctx, sec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	n, err := store.Delete(ctx, sec.ID)
	if err != nil || n != 1 {
		t.Fatalf("Delete() = %d, %v; want 1", n, err)
	}
	n, _ = store.Delete(ctx, sec.ID)
	if n != 0 {
		t.Errorf("second Delete() = %d, want 0", n)
	}
}
