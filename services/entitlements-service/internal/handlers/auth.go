package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/slotwise/slotwise/libs/auth"
)

type claimsKey struct{}

// RequireAuth verifies the bearer token and stores its claims on the request context.
// The subject must be a user uuid.
func RequireAuth(next http.Handler, verifier *auth.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, "missing or invalid Authorization header", http.StatusUnauthorized)
			return
		}
		claims, err := verifier.Verify(token)
		if err != nil || claims.Sub == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if _, err := uuid.Parse(claims.Sub); err != nil {
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// RequireRole only lets through requests whose token role is one of roles.
func RequireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}
