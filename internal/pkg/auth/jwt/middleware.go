package jwt

import (
	"context"
	"net/http"
	"strings"

	"duochat/internal/pkg/logx"
)

type contextKey string

const (
	// ContextAuthPayloadKey is the context key for the parsed *Payload.
	ContextAuthPayloadKey contextKey = "auth_payload"

	// TokenQueryParam carries the token on websocket upgrades, where browsers cannot set headers.
	TokenQueryParam = "token"
)

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token query parameter. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	return r.URL.Query().Get(TokenQueryParam)
}

// IdentityExtractorMiddleware parses the bearer token when present and stores the Payload
// in the request context. Missing or invalid tokens do not stop the request; handlers that
// require an identity check GetPayloadFromContext themselves.
func IdentityExtractorMiddleware(secretKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := ParseToken(tokenString, secretKey)
			if err != nil {
				logx.Warn("Invalid or expired JWT provided, treating as anonymous", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextAuthPayloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPayloadFromContext returns the authenticated Payload, or nil for anonymous requests.
func GetPayloadFromContext(r *http.Request) *Payload {
	payload, ok := r.Context().Value(ContextAuthPayloadKey).(*Payload)
	if !ok {
		return nil
	}

	return payload
}
