package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Davincible/gemini-gateway/internal/config"
	"github.com/Davincible/gemini-gateway/internal/translate"
)

// NewAuthMiddleware authenticates the Dialect A translation endpoint's
// bearer token against the configured localApiKey, per spec.md §4.I step 1.
// /health is always exempt.
func NewAuthMiddleware(cfgMgr *config.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			cfg := cfgMgr.Get()

			token := bearerToken(r)
			if token == "" || token != cfg.LocalAPIKey {
				logger.Warn("rejected unauthenticated request", slog.String("remote_addr", r.RemoteAddr))
				writeAuthError(w)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(translate.ErrorEnvelope{
		Error: translate.ErrorBody{Type: "authentication_error", Message: "missing or invalid bearer token"},
	})
}
