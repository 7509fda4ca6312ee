package sections

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/stratacms/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// A 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type fixture struct {
	t      *testing.T
	router http.Handler
	store  *contentstore.Store
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	store := contentstore.New(db, logger)

	files, err := storage.NewLocal(storage.LocalConfig{BasePath: t.TempDir(), BaseURL: "/files"})
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	h := NewHandler(store, files, maxUpload, "en", errorsfeature.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/sections", Routes(h, testutil.TestAPIKey, logger))
	return &fixture{t: t, router: r, store: store}
}

func (f *fixture) do(req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) write(method, target string, body any) *testutil.ResponseRecorder {
	return f.do(testutil.WithAPIKey(testutil.NewJSONRequest(f.t, method, target, body)))
}

func (f *fixture) create(body map[string]any) models.Section {
	f.t.Helper()
	rec := f.write(http.MethodPost, "/sections", body)
	rec.AssertStatus(f.t, http.StatusCreated)
	var sec models.Section
	rec.DecodeJSON(f.t, &sec)
	return sec
}

func uploadRequest(t *testing.T, target, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="upload.bin"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testutil.WithAPIKey(req)
}

func TestCreateAndGet(t *testing.T) {
	f := newFixture(t, 0)
	sec := f.create(map[string]any{"title": "Oil & Gas", "bodyText": "Pipelines."})
	if sec.SectionID != "oil-and-gas" || sec.Language != "en" {
		t.Fatalf("created = %+v", sec)
	}

	f.write(http.MethodPost, "/sections", map[string]any{"title": "Oil and Gas"}).AssertStatus(t, http.StatusConflict)
	f.create(map[string]any{"title": "Petróleo y Gas", "sectionId": "oil-and-gas", "language": "es"})

	rec := f.do(testutil.NewRequest(http.MethodGet, "/sections/oil-and-gas?lang=es"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Petróleo y Gas")

	rec = f.do(testutil.NewRequest(http.MethodGet, "/sections/"+sec.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	var resp SectionResponse
	rec.DecodeJSON(t, &resp)
	if resp.SectionID != "oil-and-gas" || resp.Pages == nil || len(resp.Pages) != 0 {
		t.Errorf("response = %+v", resp)
	}

	f.do(testutil.NewRequest(http.MethodGet, "/sections/"+primitive.NewObjectID().Hex())).AssertStatus(t, http.StatusNotFound)
}

func TestReverseIndexAndHardDelete(t *testing.T) {
	f := newFixture(t, 0)
	sec := f.create(map[string]any{"title": "Eddy Current Testing (ET)"})

	ctx, cancel := testutil.TestContext()
	defer cancel()
	for _, slug := range []string{"testing", "electromagnetic"} {
		if _, err := f.store.CreatePage(ctx, contentstore.PageInput{
			Slug: slug, Title: slug, Sections: []primitive.ObjectID{sec.ID},
		}); err != nil {
			t.Fatalf("CreatePage(%s) error = %v", slug, err)
		}
	}

	var resp SectionResponse
	f.do(testutil.NewRequest(http.MethodGet, "/sections/eddy-current-testing")).DecodeJSON(t, &resp)
	if len(resp.Pages) != 2 {
		t.Fatalf("reverse index = %+v, want 2 pages", resp.Pages)
	}

	rec := f.write(http.MethodDelete, "/sections/eddy-current-testing?hard=true", nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"pagesDetached":2`)

	p, err := f.store.GetPageBySlug(ctx, "testing", contentstore.GetOptions{})
	if err != nil {
		t.Fatalf("GetPageBySlug() error = %v", err)
	}
	if len(p.Sections) != 0 {
		t.Errorf("page still references deleted section: %v", p.Sections)
	}
}

func TestSoftDeleteRestoreAndList(t *testing.T) {
	f := newFixture(t, 0)
	f.create(map[string]any{"title": "Visual Testing (VT)"})
	f.create(map[string]any{"title": "Ultrasonic Testing (UT)"})

	f.write(http.MethodDelete, "/sections/visual-testing", nil).AssertStatus(t, http.StatusNoContent)

	var list struct {
		Total int64 `json:"total"`
	}
	f.do(testutil.NewRequest(http.MethodGet, "/sections")).DecodeJSON(t, &list)
	if list.Total != 1 {
		t.Errorf("active total = %d, want 1", list.Total)
	}
	f.do(testutil.NewRequest(http.MethodGet, "/sections?active=all")).DecodeJSON(t, &list)
	if list.Total != 2 {
		t.Errorf("all total = %d, want 2", list.Total)
	}
	f.do(testutil.NewRequest(http.MethodGet, "/sections/visual-testing")).AssertStatus(t, http.StatusOK)

	f.write(http.MethodPost, "/sections/visual-testing/restore", nil).AssertStatus(t, http.StatusOK)
	f.do(testutil.NewRequest(http.MethodGet, "/sections?q=visual")).DecodeJSON(t, &list)
	if list.Total != 1 {
		t.Errorf("query total = %d, want 1", list.Total)
	}
}

func TestUpdateAndTranslation(t *testing.T) {
	f := newFixture(t, 0)
	f.create(map[string]any{"title": "Visual Testing (VT)", "bodyText": "Look."})

	rec := f.write(http.MethodPut, "/sections/visual-testing", map[string]any{"bodyText": "Look closely."})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Look closely.")

	rec = f.write(http.MethodPut, "/sections/visual-testing/translations/es", map[string]any{"title": "Inspección visual"})
	rec.AssertStatus(t, http.StatusOK)
	var sec models.Section
	rec.DecodeJSON(t, &sec)
	if sec.Translations["es"].Title != "Inspección visual" {
		t.Errorf("translations = %+v", sec.Translations)
	}

	f.write(http.MethodPut, "/sections/visual-testing/translations/xx.y", map[string]any{"title": "x"}).AssertStatus(t, http.StatusBadRequest)
	f.write(http.MethodPut, "/sections/visual-testing", map[string]any{"images": []string{"javascript:alert(1)"}}).AssertStatus(t, http.StatusBadRequest)
}

func TestImageUpload(t *testing.T) {
	f := newFixture(t, 1024)
	f.create(map[string]any{"title": "Visual Testing (VT)"})

	rec := f.do(uploadRequest(t, "/sections/visual-testing/images", "image/png", pngBytes))
	rec.AssertStatus(t, http.StatusCreated)
	var sec models.Section
	rec.DecodeJSON(t, &sec)
	if len(sec.Images) != 1 || !strings.HasPrefix(sec.Images[0], "/files/sections/visual-testing/") || !strings.HasSuffix(sec.Images[0], ".png") {
		t.Fatalf("images = %v", sec.Images)
	}

	rec = f.write(http.MethodDelete, "/sections/visual-testing/images?url="+sec.Images[0], nil)
	rec.AssertStatus(t, http.StatusOK)
	rec.DecodeJSON(t, &sec)
	if len(sec.Images) != 0 {
		t.Errorf("images after remove = %v", sec.Images)
	}

	tests := []struct {
		name        string
		contentType string
		data        []byte
		want        int
	}{
		{"type not allowed", "application/pdf", []byte("%PDF-1.4"), http.StatusBadRequest},
		{"content does not match", "image/png", []byte("GIF89a not really"), http.StatusBadRequest},
		{"too large", "image/png", append(append([]byte{}, pngBytes...), make([]byte, 2048)...), http.StatusRequestEntityTooLarge},
		{"svg rejected", "image/svg+xml", []byte(`<svg xmlns="http://www.w3.org/2000/svg" onload="alert(document.cookie)"/>`), http.StatusBadRequest},
		{"svg declared as png", "image/png", []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.do(uploadRequest(t, "/sections/visual-testing/images", tt.contentType, tt.data)).AssertStatus(t, tt.want)
		})
	}
}

func TestWritesRequireAPIKey(t *testing.T) {
	f := newFixture(t, 0)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/sections", map[string]any{"title": "X"})
	f.do(req).AssertStatus(t, http.StatusUnauthorized)
}
