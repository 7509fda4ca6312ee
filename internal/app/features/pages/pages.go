// internal/app/features/pages/pages.go
package pages

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	pagestore "github.com/dalemusser/stratacms/internal/app/store/pages"
	"github.com/dalemusser/stratacms/internal/app/store/storeutil"
	"github.com/dalemusser/stratacms/internal/app/system/apperr"
	"github.com/dalemusser/stratacms/internal/app/system/inputval"
	"github.com/dalemusser/stratacms/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacms/internal/app/system/normalize"
	"github.com/dalemusser/stratacms/internal/app/system/resolver"
	"github.com/dalemusser/stratacms/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler provides the page API handlers.
type Handler struct {
	store    *contentstore.Store
	resolver *resolver.Resolver
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a new pages Handler.
func NewHandler(store *contentstore.Store, res *resolver.Resolver, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		resolver: res,
		errLog:   errLog,
		logger:   logger,
	}
}

type viewQuery struct {
	Lang string `json:"lang" validate:"langcode" label:"Language"`
}

// attachRequest names the section to attach, by document id or by
// (sectionId, language).
type attachRequest struct {
	Section   string `json:"section"`
	SectionID string `json:"sectionId"`
	Language  string `json:"language"`
	Position  *int   `json:"position"`
}

// viewParams reads ?lang= and ?format= for resolved reads.
func viewParams(r *http.Request) (string, resolver.Format, error) {
	q := viewQuery{Lang: query.Get(r, "lang")}
	if res := inputval.Validate(q); res.HasErrors() {
		return "", "", res.Err("ResolvePage")
	}
	return normalize.Language(q.Lang), resolver.ParseFormat(query.Get(r, "format")), nil
}

// pageRef loads the page named by the {id} segment: an ObjectID hex (any
// state) or a slug. Inactive pages are found by slug only when
// includeInactive is set.
func (h *Handler) pageRef(ctx context.Context, ref string, includeInactive bool) (models.Page, error) {
	if id, err := primitive.ObjectIDFromHex(ref); err == nil {
		return h.store.GetPageByID(ctx, id)
	}
	return h.store.GetPageBySlug(ctx, ref, contentstore.GetOptions{IncludeInactive: includeInactive})
}

// List handles GET /pages?category=&tag=&q=&page=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts := pagestore.ListOptions{
		Category: query.Get(r, "category"),
		Tag:      normalize.Tag(query.Get(r, "tag")),
		Query:    query.Get(r, "q"),
		Page:     storeutil.ParseInt64(query.Get(r, "page"), 1),
		Limit:    storeutil.ClampLimit(storeutil.ParseInt64(query.Get(r, "limit"), storeutil.DefaultLimit)),
	}
	pages, total, err := h.store.ListPages(r.Context(), opts)
	if err != nil {
		h.errLog.Respond(w, r, "list pages failed", err)
		return
	}
	jsonutil.List(w, pages, total, opts.Page, opts.Limit)
}

// Get handles GET /pages/{id} and returns the stored page, translations
// included.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "get page failed", err)
		return
	}
	jsonutil.OK(w, p)
}

// BySlug handles GET /pages/slug/{slug}?lang=&format=html and returns the
// resolved page with its sections in list order.
func (h *Handler) BySlug(w http.ResponseWriter, r *http.Request) {
	lang, format, err := viewParams(r)
	if err != nil {
		h.errLog.Respond(w, r, "resolve page failed", err)
		return
	}
	v, err := h.resolver.Page(r.Context(), normalize.Slug(chi.URLParam(r, "slug")), lang, format)
	if err != nil {
		h.errLog.Respond(w, r, "resolve page failed", err)
		return
	}
	jsonutil.OK(w, v)
}

// SearchPage handles GET /pages/search/{pageName}. The name matches a slug
// or a title ignoring case and accents.
func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	lang, format, err := viewParams(r)
	if err != nil {
		h.errLog.Respond(w, r, "search page failed", err)
		return
	}
	p, err := h.store.FindPageByName(r.Context(), chi.URLParam(r, "pageName"))
	if err != nil {
		h.errLog.Respond(w, r, "search page failed", err)
		return
	}
	v, err := h.resolver.Page(r.Context(), p.Slug, lang, format)
	if err != nil {
		h.errLog.Respond(w, r, "search page failed", err)
		return
	}
	jsonutil.OK(w, v)
}

// SearchSection handles GET /pages/search/{pageName}/{sectionName}.
func (h *Handler) SearchSection(w http.ResponseWriter, r *http.Request) {
	lang, format, err := viewParams(r)
	if err != nil {
		h.errLog.Respond(w, r, "search section failed", err)
		return
	}
	p, err := h.store.FindPageByName(r.Context(), chi.URLParam(r, "pageName"))
	if err != nil {
		h.errLog.Respond(w, r, "search section failed", err)
		return
	}
	sec, err := h.store.FindSectionOnPage(r.Context(), p, chi.URLParam(r, "sectionName"))
	if err != nil {
		h.errLog.Respond(w, r, "search section failed", err)
		return
	}
	jsonutil.OK(w, h.resolver.Section(sec, lang, format))
}

// Create handles POST /pages.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in contentstore.PageInput
	if err := jsonutil.Decode(r, &in); err != nil {
		h.errLog.Respond(w, r, "create page failed", err)
		return
	}
	p, err := h.store.CreatePage(r.Context(), in)
	if err != nil {
		h.errLog.Respond(w, r, "create page failed", err)
		return
	}
	jsonutil.Created(w, p)
}

// Update handles PUT /pages/{id}. Absent fields are left unchanged.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var u contentstore.PageUpdate
	if err := jsonutil.Decode(r, &u); err != nil {
		h.errLog.Respond(w, r, "update page failed", err)
		return
	}
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "update page failed", err)
		return
	}
	p, err = h.store.UpdatePage(r.Context(), p.ID, u)
	if err != nil {
		h.errLog.Respond(w, r, "update page failed", err)
		return
	}
	jsonutil.OK(w, p)
}

// Delete handles DELETE /pages/{id}. Pages are soft-deleted; their sections
// stay untouched.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "delete page failed", err)
		return
	}
	if err := h.store.SetActive(r.Context(), contentstore.PageRef(p.ID), false); err != nil {
		h.errLog.Respond(w, r, "delete page failed", err)
		return
	}
	jsonutil.NoContent(w)
}

// Restore handles POST /pages/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), true)
	if err != nil {
		h.errLog.Respond(w, r, "restore page failed", err)
		return
	}
	if err := h.store.SetActive(r.Context(), contentstore.PageRef(p.ID), true); err != nil {
		h.errLog.Respond(w, r, "restore page failed", err)
		return
	}
	p, err = h.store.GetPageByID(r.Context(), p.ID)
	if err != nil {
		h.errLog.Respond(w, r, "restore page failed", err)
		return
	}
	jsonutil.OK(w, p)
}

// PutTranslation handles PUT /pages/{id}/translations/{lang}. Supplied
// fields are merged into the existing entry.
func (h *Handler) PutTranslation(w http.ResponseWriter, r *http.Request) {
	var f contentstore.TranslationFields
	if err := jsonutil.Decode(r, &f); err != nil {
		h.errLog.Respond(w, r, "page translation failed", err)
		return
	}
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "page translation failed", err)
		return
	}
	if err := h.store.UpsertTranslation(r.Context(), contentstore.PageRef(p.ID), chi.URLParam(r, "lang"), f); err != nil {
		h.errLog.Respond(w, r, "page translation failed", err)
		return
	}
	p, err = h.store.GetPageByID(r.Context(), p.ID)
	if err != nil {
		h.errLog.Respond(w, r, "page translation failed", err)
		return
	}
	jsonutil.OK(w, p)
}

// Attach handles POST /pages/{id}/sections.
//
//	{"section": "<objectId>"}                        by document id
//	{"sectionId": "eddy-current-testing", "language": "es", "position": 0}
//
// Attaching a section already on the page changes nothing.
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	var in attachRequest
	if err := jsonutil.Decode(r, &in); err != nil {
		h.errLog.Respond(w, r, "attach section failed", err)
		return
	}
	ref, err := in.ref()
	if err != nil {
		h.errLog.Respond(w, r, "attach section failed", err)
		return
	}
	position := -1
	if in.Position != nil {
		if *in.Position < 0 {
			h.errLog.Respond(w, r, "attach section failed", apperr.Invalid("AttachSection", "position", "must not be negative"))
			return
		}
		position = *in.Position
	}

	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "attach section failed", err)
		return
	}
	p, err = h.store.AttachSectionByID(r.Context(), p.ID, ref, position)
	if err != nil {
		h.errLog.Respond(w, r, "attach section failed", err)
		return
	}
	jsonutil.OK(w, p)
}

// Detach handles DELETE /pages/{id}/sections/{sectionId}. The segment is a
// section ObjectID or a sectionId (with ?lang=). Detaching a section that is
// not on the page changes nothing.
func (h *Handler) Detach(w http.ResponseWriter, r *http.Request) {
	p, err := h.pageRef(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		h.errLog.Respond(w, r, "detach section failed", err)
		return
	}
	ref := contentstore.ParseSectionRef(chi.URLParam(r, "sectionId"), normalize.Language(query.Get(r, "lang")))
	p, err = h.store.DetachSectionByID(r.Context(), p.ID, ref)
	if err != nil {
		h.errLog.Respond(w, r, "detach section failed", err)
		return
	}
	jsonutil.OK(w, p)
}

func (in attachRequest) ref() (contentstore.SectionRef, error) {
	const op = "AttachSection"
	switch {
	case in.Section != "":
		id, err := primitive.ObjectIDFromHex(in.Section)
		if err != nil {
			return contentstore.SectionRef{}, apperr.Invalid(op, "section", "is not a valid ID")
		}
		return contentstore.SectionRef{ID: id}, nil
	case in.SectionID != "":
		return contentstore.SectionRef{SectionID: in.SectionID, Language: normalize.Language(in.Language)}, nil
	}
	return contentstore.SectionRef{}, apperr.Invalid(op, "section", "section or sectionId is required")
}
