package translate

import (
	"context"
	"net/http"
	"testing"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/translation"
	"github.com/dalemusser/stratacms/internal/app/system/translator"
	"github.com/dalemusser/stratacms/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type echoTranslator struct{ calls int }

func (e *echoTranslator) Translate(_ context.Context, texts []string, _, target string) ([]string, error) {
	e.calls++
	out := make([]string, len(texts))
	for i, t := range texts {
		if t != "" {
			out[i] = target + ":" + t
		}
	}
	return out, nil
}

func newRouter(t *testing.T, tr translator.Translator) (http.Handler, *contentstore.Store) {
	t.Helper()
	logger := zap.NewNop()
	var store *contentstore.Store
	if tr != nil {
		store = contentstore.New(testutil.SetupTestDB(t), logger)
	}
	h := NewHandler(store, translation.New(store, tr, logger), testutil.TestAPIKey, "en", errorsfeature.NewErrorLogger(logger), logger)
	r := chi.NewRouter()
	r.Mount("/translate", Routes(h))
	return r, store
}

func serve(h http.Handler, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatic(t *testing.T) {
	r, _ := newRouter(t, nil)

	rec := serve(r, testutil.NewRequest(http.MethodGet, "/translate/static"))
	rec.AssertStatus(t, http.StatusOK)
	var all map[string]map[string]string
	rec.DecodeJSON(t, &all)
	if all["es"]["nav.home"] != "Inicio" {
		t.Errorf("es nav.home = %q", all["es"]["nav.home"])
	}

	rec = serve(r, testutil.NewRequest(http.MethodGet, "/translate/static/pt_BR"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Início")

	serve(r, testutil.NewRequest(http.MethodGet, "/translate/static/de")).AssertStatus(t, http.StatusNotFound)
}

func TestSection(t *testing.T) {
	tr := &echoTranslator{}
	r, store := newRouter(t, tr)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := store.CreateSection(ctx, contentstore.SectionInput{Title: "Visual Testing (VT)", BodyText: "Look."}); err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}

	var res translation.SectionResult
	rec := serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=es"))
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &res)
	if !res.Machine || res.Section.Title != "es:Visual Testing (VT)" || res.Section.BodyText != "es:Look." {
		t.Fatalf("first call = %+v", res)
	}

	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=es")).DecodeJSON(t, &res)
	if res.Machine || tr.calls != 1 {
		t.Errorf("stored translation should be served, machine=%v calls=%d", res.Machine, tr.calls)
	}

	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=es&refresh=true")).AssertStatus(t, http.StatusUnauthorized)
	rec = serve(r, testutil.WithAPIKey(testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=es&refresh=true")))
	rec.AssertStatus(t, http.StatusOK)
	if tr.calls != 2 {
		t.Errorf("refresh should call the provider again, calls=%d", tr.calls)
	}

	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing")).AssertStatus(t, http.StatusBadRequest)
	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=spanish")).AssertStatus(t, http.StatusBadRequest)
	serve(r, testutil.NewRequest(http.MethodGet, "/translate/nothing-here?lang=es")).AssertStatus(t, http.StatusNotFound)
}

func TestSection_ProviderDisabled(t *testing.T) {
	logger := zap.NewNop()
	store := contentstore.New(testutil.SetupTestDB(t), logger)
	h := NewHandler(store, translation.New(store, nil, logger), testutil.TestAPIKey, "en", errorsfeature.NewErrorLogger(logger), logger)
	r := chi.NewRouter()
	r.Mount("/translate", Routes(h))

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := store.CreateSection(ctx, contentstore.SectionInput{Title: "Visual Testing"}); err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=es")).AssertStatus(t, http.StatusNotFound)
	serve(r, testutil.NewRequest(http.MethodGet, "/translate/visual-testing?lang=en")).AssertStatus(t, http.StatusOK)
}
