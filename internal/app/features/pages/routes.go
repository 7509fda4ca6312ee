package pages

import (
	"net/http"

	"github.com/dalemusser/stratacms/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns a router with the page API.
//
// When mounted at /pages:
//   - GET /pages, GET /pages/{id}, GET /pages/slug/{slug}
//   - GET /pages/search/{pageName}[/{sectionName}]
//   - POST /pages, PUT|DELETE /pages/{id}, POST /pages/{id}/restore
//   - PUT /pages/{id}/translations/{lang}
//   - POST /pages/{id}/sections, DELETE /pages/{id}/sections/{sectionId}
//
// Reads are public. Writes require the API key as a Bearer token.
func Routes(h *Handler, apiKey string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/slug/{slug}", h.BySlug)
	r.Get("/search/{pageName}", h.SearchPage)
	r.Get("/search/{pageName}/{sectionName}", h.SearchSection)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.APIKeyAuth(apiKey, logger))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/restore", h.Restore)
		r.Put("/{id}/translations/{lang}", h.PutTranslation)
		r.Post("/{id}/sections", h.Attach)
		r.Delete("/{id}/sections/{sectionId}", h.Detach)
	})

	return r
}
