package devhub

import (
	"context"
	"net/http"
	"strings"

	"example.com/robo-sync/internal/auth"
)

type ctxKey string

const usernameKey ctxKey = "username"

// bearerToken reads the access token from the Authorization header, or from
// the access_token query parameter browsers have to use for websockets.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

// AuthMiddleware resolves the caller's username. With an empty secret any
// token is accepted unverified and a missing token means an anonymous caller.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			var username string
			switch {
			case len(secret) > 0:
				if token == "" {
					writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
					return
				}
				claims, err := auth.Verify(secret, token)
				if err != nil {
					writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
					return
				}
				username = claims.Username
				if username == "" {
					username = claims.Subject
				}
			case token != "":
				username, _ = auth.UsernameFromToken(token)
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UsernameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(usernameKey).(string)
	return s
}
