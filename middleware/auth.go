package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"portaal/handlers/auth"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// ClaimsFromContext returns the authenticated claims set by AuthJWT, or
// nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *auth.AppClaims {
	claims, _ := ctx.Value(ClaimsContextKey).(*auth.AppClaims)
	return claims
}

func AuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ParseJWT(parts[1])
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireDesigner guards template-authoring routes. It must run after
// AuthJWT.
func RequireDesigner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil || !claims.Designer {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Designer access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
