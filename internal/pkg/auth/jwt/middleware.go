package jwt

import (
	"context"
	"net/http"
	"strings"

	"chatcore/internal/pkg/logx"
)

// Context key for the parsed Payload, preventing collisions with other packages.
type contextKey string

const (
	// ContextAuthPayloadKey stores the parsed identity Payload in the request context.
	ContextAuthPayloadKey contextKey = "auth_payload"
)

// IdentityExtractorMiddleware extracts and validates a JWT from the request.
// On success the Payload is injected into the context. The request is never
// interrupted here: a missing or invalid token leaves the user anonymous, and
// handlers that require identity reject anonymous requests themselves.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided, treating as anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// tokenFromRequest reads the token from the Authorization header, falling back
// to the "token" query parameter for websocket upgrades, where browsers cannot
// set custom headers.
func tokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	return r.URL.Query().Get("token")
}

// GetPayloadFromContext extracts the authenticated Payload from the request
// context. A nil return means the user is anonymous.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)

	if !ok {
		return nil
	}

	return payload
}
