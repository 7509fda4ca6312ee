package pages

import (
	"net/http"
	"testing"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/resolver"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/stratacms/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type fixture struct {
	t      *testing.T
	router http.Handler
	store  *contentstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := contentstore.New(db, logger)
	h := NewHandler(store, resolver.New(store, nil, logger), errorsfeature.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/pages", Routes(h, testutil.TestAPIKey, logger))
	return &fixture{t: t, router: r, store: store}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string) *testutil.ResponseRecorder {
	return f.do(testutil.NewRequest(http.MethodGet, target))
}

func (f *fixture) write(method, target string, body any) *testutil.ResponseRecorder {
	return f.do(testutil.WithAPIKey(testutil.NewJSONRequest(f.t, method, target, body)))
}

func (f *fixture) section(title string, pageNumber int) models.Section {
	f.t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sec, err := f.store.CreateSection(ctx, contentstore.SectionInput{
		Title:      title,
		BodyText:   "About **" + title + "**.",
		PageNumber: pageNumber,
	})
	if err != nil {
		f.t.Fatalf("CreateSection(%q) error = %v", title, err)
	}
	return sec
}

func TestTestingPageScenario(t *testing.T) {
	f := newFixture(t)
	et := f.section("Eddy Current Testing (ET)", 1)

	rec := f.write(http.MethodPost, "/pages", map[string]any{"slug": "testing", "title": "Testing", "category": "NDT"})
	rec.AssertStatus(t, http.StatusCreated)

	for i := 0; i < 2; i++ {
		rec = f.write(http.MethodPost, "/pages/testing/sections", map[string]any{"sectionId": "eddy-current-testing"})
		rec.AssertStatus(t, http.StatusOK)
		var p models.Page
		rec.DecodeJSON(t, &p)
		if len(p.Sections) != 1 || p.Sections[0] != et.ID {
			t.Fatalf("attach #%d sections = %v", i+1, p.Sections)
		}
	}

	rec = f.get("/pages/slug/testing?format=html")
	rec.AssertStatus(t, http.StatusOK)
	var v models.PageView
	rec.DecodeJSON(t, &v)
	if len(v.Sections) != 1 || v.Sections[0].SectionID != "eddy-current-testing" {
		t.Fatalf("resolved sections = %+v", v.Sections)
	}
	rec.AssertContains(t, "<strong>Eddy Current Testing (ET)</strong>")

	rec = f.get("/pages/search/Testing/eddy-current-testing")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"sectionId":"eddy-current-testing"`)

	rec = f.write(http.MethodDelete, "/pages/testing/sections/eddy-current-testing", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec = f.write(http.MethodDelete, "/pages/testing/sections/eddy-current-testing", nil)
	rec.AssertStatus(t, http.StatusOK)
	var p models.Page
	rec.DecodeJSON(t, &p)
	if len(p.Sections) != 0 {
		t.Errorf("sections after detach = %v", p.Sections)
	}
}

func TestSectionOrderIgnoresPageNumber(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.section("Alpha", 3), f.section("Bravo", 1), f.section("Charlie", 2)

	f.write(http.MethodPost, "/pages", map[string]any{"slug": "methods", "title": "Methods"}).AssertStatus(t, http.StatusCreated)
	for _, s := range []models.Section{a, b, c} {
		f.write(http.MethodPost, "/pages/methods/sections", map[string]any{"section": s.ID.Hex()}).AssertStatus(t, http.StatusOK)
	}
	// Insert at the front.
	d := f.section("Delta", 0)
	f.write(http.MethodPost, "/pages/methods/sections", map[string]any{"section": d.ID.Hex(), "position": 0}).AssertStatus(t, http.StatusOK)

	rec := f.get("/pages/slug/methods")
	var v models.PageView
	rec.DecodeJSON(t, &v)
	var got []string
	for _, s := range v.Sections {
		got = append(got, s.SectionID)
	}
	want := []string{"delta", "alpha", "bravo", "charlie"}
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestTranslationFallback(t *testing.T) {
	f := newFixture(t)
	f.write(http.MethodPost, "/pages", map[string]any{
		"slug": "testing", "title": "Testing", "description": "Inspection methods",
	}).AssertStatus(t, http.StatusCreated)

	f.write(http.MethodPut, "/pages/testing/translations/es", map[string]any{"title": "Pruebas"}).AssertStatus(t, http.StatusOK)

	var v models.PageView
	f.get("/pages/slug/testing?lang=es").DecodeJSON(t, &v)
	if v.Title != "Pruebas" || v.Description != "Inspection methods" {
		t.Errorf("es view = %+v", v)
	}

	f.get("/pages/slug/testing?lang=fr").DecodeJSON(t, &v)
	if v.Title != "Testing" {
		t.Errorf("missing language should pass base fields through, got %q", v.Title)
	}

	f.get("/pages/slug/testing?lang=spanish").AssertStatus(t, http.StatusBadRequest)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	f := newFixture(t)
	sec := f.section("Visual Testing (VT)", 1)
	f.write(http.MethodPost, "/pages", map[string]any{
		"slug": "testing", "title": "Testing", "sections": []string{sec.ID.Hex()},
	}).AssertStatus(t, http.StatusCreated)

	f.write(http.MethodDelete, "/pages/testing", nil).AssertStatus(t, http.StatusNoContent)

	var list struct {
		Items []models.Page `json:"items"`
		Total int64         `json:"total"`
	}
	f.get("/pages").DecodeJSON(t, &list)
	if list.Total != 0 || len(list.Items) != 0 {
		t.Errorf("soft-deleted page still listed: %+v", list)
	}
	f.get("/pages/slug/testing").AssertStatus(t, http.StatusNotFound)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := f.store.GetSection(ctx, sec.ID); err != nil {
		t.Errorf("section should stay readable: %v", err)
	}

	f.write(http.MethodPost, "/pages/testing/restore", nil).AssertStatus(t, http.StatusOK)
	f.get("/pages/slug/testing").AssertStatus(t, http.StatusOK)
}

func TestDuplicateSlugConflict(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"slug": "testing", "title": "Testing"}
	f.write(http.MethodPost, "/pages", body).AssertStatus(t, http.StatusCreated)
	f.write(http.MethodPost, "/pages", body).AssertStatus(t, http.StatusConflict)
}

func TestWritesRequireAPIKey(t *testing.T) {
	f := newFixture(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/pages", map[string]any{"slug": "x", "title": "X"})
	f.do(req).AssertStatus(t, http.StatusUnauthorized)
	f.get("/pages").AssertStatus(t, http.StatusOK)
}

func TestValidationErrors(t *testing.T) {
	f := newFixture(t)
	f.write(http.MethodPost, "/pages", map[string]any{"slug": "Not A Slug", "title": "X"}).AssertStatus(t, http.StatusBadRequest)
	f.write(http.MethodPost, "/pages", `{bad json`).AssertStatus(t, http.StatusBadRequest)

	f.write(http.MethodPost, "/pages", map[string]any{"slug": "testing", "title": "Testing"}).AssertStatus(t, http.StatusCreated)
	f.write(http.MethodPost, "/pages/testing/sections", map[string]any{}).AssertStatus(t, http.StatusBadRequest)
	f.write(http.MethodPost, "/pages/testing/sections", map[string]any{"section": "nope"}).AssertStatus(t, http.StatusBadRequest)
	f.write(http.MethodPost, "/pages/testing/sections", map[string]any{"sectionId": "missing"}).AssertStatus(t, http.StatusNotFound)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	f.write(http.MethodPost, "/pages", map[string]any{"slug": "ut", "title": "Ultrasonic", "category": "ndt", "tags": []string{"volumetric"}}).AssertStatus(t, http.StatusCreated)
	f.write(http.MethodPost, "/pages", map[string]any{"slug": "oil-and-gas", "title": "Oil & Gas", "category": "industries"}).AssertStatus(t, http.StatusCreated)

	tests := []struct {
		query string
		want  int64
	}{
		{"", 2},
		{"?category=ndt", 1},
		{"?tag=volumetric", 1},
		{"?q=ultra", 1},
		{"?q=nothing", 0},
	}
	for _, tt := range tests {
		var list struct {
			Total int64 `json:"total"`
		}
		rec := f.get("/pages" + tt.query)
		rec.AssertStatus(t, http.StatusOK)
		rec.DecodeJSON(t, &list)
		if list.Total != tt.want {
			t.Errorf("GET /pages%s total = %d, want %d", tt.query, list.Total, tt.want)
		}
	}
}

func TestAttachByIDTargetsThatPage(t *testing.T) {
	f := newFixture(t)
	ut := f.section("Ultrasonic Testing (UT)", 1)

	rec := f.write(http.MethodPost, "/pages", map[string]any{"slug": "testing", "title": "Testing (old)"})
	rec.AssertStatus(t, http.StatusCreated)
	var old models.Page
	rec.DecodeJSON(t, &old)
	f.write(http.MethodDelete, "/pages/"+old.ID.Hex(), nil).AssertStatus(t, http.StatusNoContent)

	rec = f.write(http.MethodPost, "/pages", map[string]any{"slug": "testing", "title": "Testing"})
	rec.AssertStatus(t, http.StatusCreated)
	var current models.Page
	rec.DecodeJSON(t, &current)

	rec = f.write(http.MethodPost, "/pages/"+old.ID.Hex()+"/sections", map[string]any{"section": ut.ID.Hex()})
	rec.AssertStatus(t, http.StatusOK)
	var got models.Page
	rec.DecodeJSON(t, &got)
	if got.ID != old.ID || len(got.Sections) != 1 {
		t.Fatalf("attach returned page %s with sections %v, want %s with one section", got.ID.Hex(), got.Sections, old.ID.Hex())
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	active, err := f.store.GetPageByID(ctx, current.ID)
	if err != nil {
		t.Fatalf("GetPageByID(active) error = %v", err)
	}
	if len(active.Sections) != 0 {
		t.Errorf("active namesake was modified: sections = %v", active.Sections)
	}

	rec = f.write(http.MethodDelete, "/pages/"+old.ID.Hex()+"/sections/"+ut.ID.Hex(), nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &got)
	if got.ID != old.ID || len(got.Sections) != 0 {
		t.Errorf("detach returned page %s with sections %v", got.ID.Hex(), got.Sections)
	}
}
