package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/utafrali/RentMarket/pkg/logger"
)

type contextKeyType string

const (
	tokenKey    contextKeyType = "viewer_token"
	viewerIDKey contextKeyType = "viewer_id"
)

// IdentityResolver maps a raw bearer token to a user id. It returns false when
// the token carries no usable identity.
type IdentityResolver func(token string) (string, bool)

// Viewer reads the optional bearer token on every request and stores it with
// the resolved user id in context. Requests without a token, or with one that
// does not decode, continue as anonymous; signature checks are the backend's job.
func Viewer(resolve IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), tokenKey, token)
			if id, ok := resolve(token); ok {
				ctx = context.WithValue(ctx, viewerIDKey, id)
				ctx = logger.WithViewerID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireViewer rejects requests whose token did not resolve to a user id.
func RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerIDFromContext(r.Context()) == "" {
			writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "please log in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// TokenFromContext returns the raw bearer token stored by Viewer.
func TokenFromContext(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey).(string); ok {
		return t
	}
	return ""
}

// ViewerIDFromContext returns the user id resolved by Viewer, or "" for anonymous requests.
func ViewerIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(viewerIDKey).(string); ok {
		return id
	}
	return ""
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
