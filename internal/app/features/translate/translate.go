// internal/app/features/translate/translate.go
package translate

import (
	"net/http"

	errorsfeature "github.com/dalemusser/stratacms/internal/app/features/errors"
	"github.com/dalemusser/stratacms/internal/app/resources"
	contentstore "github.com/dalemusser/stratacms/internal/app/store/content"
	"github.com/dalemusser/stratacms/internal/app/system/auth"
	"github.com/dalemusser/stratacms/internal/app/system/inputval"
	"github.com/dalemusser/stratacms/internal/app/system/jsonutil"
	"github.com/dalemusser/stratacms/internal/app/system/normalize"
	"github.com/dalemusser/stratacms/internal/app/system/translation"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the static UI dictionary and per-section translations.
type Handler struct {
	store       *contentstore.Store
	svc         *translation.Service
	apiKey      string
	defaultLang string
	errLog      *errorsfeature.ErrorLogger
	logger      *zap.Logger
}

// NewHandler creates a new translate Handler.
func NewHandler(store *contentstore.Store, svc *translation.Service, apiKey, defaultLang string, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		svc:         svc,
		apiKey:      apiKey,
		defaultLang: normalize.LanguageOr(defaultLang, "en"),
		errLog:      errLog,
		logger:      logger,
	}
}

type sectionQuery struct {
	Lang string `json:"lang" validate:"required,langcode" label:"Language"`
}

// Static handles GET /translate/static and returns the whole dictionary.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resources.StaticDictionary())
}

// StaticLanguage handles GET /translate/static/{lang}.
func (h *Handler) StaticLanguage(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "lang")
	raw, ok := resources.StaticLanguage(lang)
	if !ok {
		jsonutil.NotFound(w, "no static dictionary for "+normalize.Language(lang))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Section handles GET /translate/{id}?lang=&refresh=true. {id} is a section
// ObjectID hex or a sectionId in the default language. A missing
// translation is produced by the machine translation provider and stored.
// refresh=true re-translates and requires the API key.
func (h *Handler) Section(w http.ResponseWriter, r *http.Request) {
	q := sectionQuery{Lang: query.Get(r, "lang")}
	if res := inputval.Validate(q); res.HasErrors() {
		h.errLog.Respond(w, r, "translate section failed", res.Err("TranslateSection"))
		return
	}
	refresh := normalize.Bool(query.Get(r, "refresh"))
	if refresh && !auth.HasValidKey(r, h.apiKey) {
		jsonutil.Unauthorized(w, "refresh requires Authorization: Bearer <api-key>")
		return
	}

	ref := contentstore.ParseSectionRef(chi.URLParam(r, "id"), h.defaultLang)
	sec, err := h.store.ResolveSectionRef(r.Context(), ref)
	if err != nil {
		h.errLog.Respond(w, r, "translate section failed", err)
		return
	}
	res, err := h.svc.TranslateSection(r.Context(), sec.ID, q.Lang, refresh)
	if err != nil {
		h.errLog.Respond(w, r, "translate section failed", err)
		return
	}
	if res.Machine {
		h.logger.Info("section machine-translated",
			zap.String("section_id", sec.SectionID),
			zap.String("lang", normalize.Language(q.Lang)))
	}
	jsonutil.OK(w, res)
}

// Routes returns a router with the translation endpoints.
//
// When mounted at /translate:
//   - GET /translate/static, GET /translate/static/{lang}
//   - GET /translate/{id}?lang=[&refresh=true]
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/static", h.Static)
	r.Get("/static/{lang}", h.StaticLanguage)
	r.Get("/{id}", h.Section)
	return r
}
