package sections

import (
	"net/http"

	"github.com/dalemusser/stratacms/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns a router with the section API.
//
// When mounted at /sections:
//   - GET /sections, GET /sections/{id}
//   - POST /sections, PUT|DELETE /sections/{id}, POST /sections/{id}/restore
//   - PUT /sections/{id}/translations/{lang}
//   - POST /sections/{id}/images, DELETE /sections/{id}/images?url=
//
// {id} is an ObjectID hex or a sectionId (with ?lang=). Reads are public;
// writes require the API key as a Bearer token.
func Routes(h *Handler, apiKey string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth.APIKeyAuth(apiKey, logger))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/restore", h.Restore)
		r.Put("/{id}/translations/{lang}", h.PutTranslation)
		r.Post("/{id}/images", h.UploadImage)
		r.Delete("/{id}/images", h.RemoveImage)
	})

	return r
}
