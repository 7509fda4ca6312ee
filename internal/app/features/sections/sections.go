// internal/app/features/sections/sections.go
package sections

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/store/storeutil"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacms/internal/app/system/normalize"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes caps image uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// Handler provides the section API handlers.
type Handler struct {
	store       *contentstore.Store
	files       storage.Store
	maxUpload   int64
	defaultLang string
	errLog      *errorsfeature.ErrorLogger
	logger      *zap.Logger
}

// NewHandler creates a new sections Handler. files may be nil, in which case
// image uploads answer 404.
func NewHandler(store *contentstore.Store, files storage.Store, maxUpload int64, defaultLang string, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &Handler{
		store:       store,
		files:       files,
		maxUpload:   maxUpload,
		defaultLang: normalize.LanguageOr(defaultLang, "en"),
		errLog:      errLog,
		logger:      logger,
	}
}

// PageLink is one entry of a section's reverse index.
type PageLink struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Title    string `json:"title"`
	IsActive bool   `json:"isActive"`
}

// SectionResponse is a stored section plus the pages that reference it.
type SectionResponse struct {
	models.Section
	Pages []PageLink `json:"pages"`
}

// sectionRef loads the section named by the {id} segment: an ObjectID hex
// or a sectionId in ?lang= (default language otherwise).
func (h *Handler) sectionRef(ctx context.Context, r *http.Request) (models.Section, error) {
	lang := normalize.LanguageOr(query.Get(r, "lang"), h.defaultLang)
	return h.store.ResolveSectionRef(ctx, contentstore.ParseSectionRef(chi.URLParam(r, "id"), lang))
}

// List handles GET /sections?language=&q=&pageSlug=&page=&limit=&active=all.
// Inactive sections are listed only with active=all.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f := contentstore.SectionFilter{
		Language:        query.Get(r, "language"),
		Query:           query.Get(r, "q"),
		PageSlug:        normalize.Slug(query.Get(r, "pageSlug")),
		IncludeInactive: query.Get(r, "active") == "all",
		Page:            storeutil.ParseInt64(query.Get(r, "page"), 1),
		Limit:           storeutil.ClampLimit(storeutil.ParseInt64(query.Get(r, "limit"), storeutil.DefaultLimit)),
	}
	secs, total, err := h.store.ListSections(r.Context(), f)
	if err != nil {
		h.errLog.Respond(w, r, "list sections failed", err)
		return
	}
	jsonutil.List(w, secs, total, f.Page, f.Limit)
}

// Get handles GET /sections/{id}. The response carries the computed reverse
// index under "pages".
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "get section failed", err)
		return
	}
	pages, err := h.store.PagesReferencing(r.Context(), sec.ID)
	if err != nil {
		h.errLog.Respond(w, r, "get section failed", err)
		return
	}
	resp := SectionResponse{Section: sec, Pages: make([]PageLink, 0, len(pages))}
	for _, p := range pages {
		resp.Pages = append(resp.Pages, PageLink{ID: p.ID.Hex(), Slug: p.Slug, Title: p.Title, IsActive: p.IsActive})
	}
	jsonutil.OK(w, resp)
}

// Create handles POST /sections. An absent sectionId is derived from the
// title.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in contentstore.SectionInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.errLog.Respond(w, r, "create section failed", err)
		return
	}
	sec, err := h.store.CreateSection(r.Context(), in)
	if err != nil {
		h.errLog.Respond(w, r, "create section failed", err)
		return
	}
	jsonutil.Created(w, sec)
}

// Update handles PUT /sections/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var u contentstore.SectionUpdate
	if err := jsonutil.Decode(r, &u); err != nil {
		h.errLog.Respond(w, r, "update section failed", err)
		return
	}
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "update section failed", err)
		return
	}
	sec, err = h.store.UpdateSection(r.Context(), sec.ID, u)
	if err != nil {
		h.errLog.Respond(w, r, "update section failed", err)
		return
	}
	jsonutil.OK(w, sec)
}

// Delete handles DELETE /sections/{id}. The default is a soft delete that
// leaves page references in place (resolution skips inactive sections).
// ?hard=true removes the document and detaches it from every page.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "delete section failed", err)
		return
	}

	if !normalize.Bool(query.Get(r, "hard")) {
		if err := h.store.SetActive(r.Context(), contentstore.SectionDoc(sec.ID), false); err != nil {
			h.errLog.Respond(w, r, "delete section failed", err)
			return
		}
		jsonutil.NoContent(w)
		return
	}

	detached, err := h.store.DeleteSection(r.Context(), sec.ID)
	if err != nil {
		h.errLog.Respond(w, r, "delete section failed", err)
		return
	}
	h.logger.Info("section hard-deleted",
		zap.String("section_id", sec.SectionID),
		zap.String("language", sec.Language),
		zap.Int64("pages_detached", detached))
	jsonutil.OK(w, map[string]int64{"pagesDetached": detached})
}

// Restore handles POST /sections/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "restore section failed", err)
		return
	}
	if err := h.store.SetActive(r.Context(), contentstore.SectionDoc(sec.ID), true); err != nil {
		h.errLog.Respond(w, r, "restore section failed", err)
		return
	}
	sec, err = h.store.GetSection(r.Context(), sec.ID)
	if err != nil {
		h.errLog.Respond(w, r, "restore section failed", err)
		return
	}
	jsonutil.OK(w, sec)
}

// PutTranslation handles PUT /sections/{id}/translations/{lang}. Supplied
// fields are merged into the existing entry.
func (h *Handler) PutTranslation(w http.ResponseWriter, r *http.Request) {
	var f contentstore.TranslationFields
	if err := jsonutil.Decode(r, &f); err != nil {
		h.errLog.Respond(w, r, "section translation failed", err)
		return
	}
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "section translation failed", err)
		return
	}
	if err := h.store.UpsertTranslation(r.Context(), contentstore.SectionDoc(sec.ID), chi.URLParam(r, "lang"), f); err != nil {
		h.errLog.Respond(w, r, "section translation failed", err)
		return
	}
	sec, err = h.store.GetSection(r.Context(), sec.ID)
	if err != nil {
		h.errLog.Respond(w, r, "section translation failed", err)
		return
	}
	jsonutil.OK(w, sec)
}

// RemoveImage handles DELETE /sections/{id}/images?url=. The stored object,
// if any, is left in place.
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	url := query.Get(r, "url")
	if url == "" {
		h.errLog.Respond(w, r, "remove image failed", apperr.Invalid("RemoveSectionImage", "url", "is required"))
		return
	}
	sec, err := h.sectionRef(r.Context(), r)
	if err != nil {
		h.errLog.Respond(w, r, "remove image failed", err)
		return
	}
	sec, err = h.store.RemoveSectionImage(r.Context(), sec.ID, url)
	if err != nil {
		h.errLog.Respond(w, r, "remove image failed", err)
		return
	}
	jsonutil.OK(w, sec)
}
