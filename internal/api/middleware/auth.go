package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pratik-mahalle/wiman/internal/auth"
	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
	"github.com/pratik-mahalle/wiman/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// IdentityKey is the context key for the verified caller
	IdentityKey ContextKey = "identity"
)

// RequireAuth returns a middleware that rejects requests without a valid bearer token
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(bearerToken(r), jwtSecret)
			if err != nil {
				utils.WriteAnyError(w, err)
				return
			}

			AddLogField(w, "user_id", id.UserID)
			if id.IsAdmin() {
				AddLogField(w, "role", id.Role)
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects authenticated callers without the given role.
// It must run after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r)
			if !ok {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}
			if id.Role != role {
				utils.WriteError(w, errors.Forbidden(role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// Captive portal pages send the token as a cookie
	if cookie, err := r.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

// WithIdentity stores the caller in ctx
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity extracts the verified caller from the request context
func GetIdentity(r *http.Request) (auth.Identity, bool) {
	id, ok := r.Context().Value(IdentityKey).(auth.Identity)
	return id, ok
}

// GetUserID extracts the user ID from the request context
func GetUserID(r *http.Request) (int64, bool) {
	id, ok := GetIdentity(r)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}
