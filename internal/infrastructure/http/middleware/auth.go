package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/ports/outbound"
)

type contextKey int

const identityKey contextKey = iota

// Authenticate verifies the bearer token on every request and stores the
// resolved identity in the request context. Requests without a valid token
// are rejected with 401 before reaching a handler.
func Authenticate(verifier outbound.TokenVerifier, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Warn("Token verification failed",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				unauthorized(w, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(IdentityToContext(r.Context(), identity)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"success":false,"error":{"code":"UNAUTHORIZED","message":%q}}`, message)
}

// IdentityToContext stores the verified identity on the context.
func IdentityToContext(ctx context.Context, identity *outbound.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by Authenticate.
func IdentityFromContext(ctx context.Context) (*outbound.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*outbound.Identity)
	return identity, ok && identity != nil
}
