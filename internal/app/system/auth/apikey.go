// Package auth guards mutating routes with the configured API key.
package auth

import (
	"net/http"
	"strings"

	"github.com/dalemusser/stratacms/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// APIKeyAuth returns middleware that requires "Authorization: Bearer <key>".
//
// Usage in routes.go:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(auth.APIKeyAuth(appCfg.APIKey, logger))
//	    r.Post("/pages", h.Create)
//	})
//
// validKey is the key itself or its bcrypt hash (see HashKey). A missing or
// wrong key gets 401. With no key configured every request is rejected.
func APIKeyAuth(validKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	if validKey == "" {
		logger.Warn("API key not configured - all write requests will be rejected")
	}
	keys := newKeyMatcher(validKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validKey == "" {
				logger.Warn("write rejected: API key not configured",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "API authentication not configured")
				return
			}

			provided, ok := BearerToken(r)
			if !ok {
				logger.Debug("write rejected: missing or malformed Authorization header",
					zap.String("path", r.URL.Path),
				)
				jsonutil.Unauthorized(w, "expected Authorization: Bearer <api-key>")
				return
			}

			if !keys.match(provided) {
				logger.Warn("write rejected: invalid API key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				jsonutil.Unauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from a Bearer Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// HasValidKey reports whether r carries validKey (or the key validKey
// hashes) as a Bearer token. An empty validKey never matches.
func HasValidKey(r *http.Request, validKey string) bool {
	provided, ok := BearerToken(r)
	return ok && newKeyMatcher(validKey).match(provided)
}
