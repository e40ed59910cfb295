package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/attorney/internal/auth"
)

// Auth requires a valid bearer token and stores its user in the request
// context. WebSocket clients that cannot set headers may pass the token in
// the access_token query parameter.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.URL.Query().Get("access_token")
			}
			if tok != "" {
				userID, err := auth.ValidateToken(jwtSecret, tok)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
					return
				}
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("auth: rejected token")
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}
