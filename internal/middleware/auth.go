package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jaydenbeard/haven/internal/auth"
)

type contextKey string

const (
	identityKeyCtx contextKey = "identity_key"
	fingerprintCtx contextKey = "fingerprint"
)

// AuthMiddleware validates the bearer JWT on every request except those
// skipAuth opts out of (health checks, the relay's own WebSocket upgrade,
// which authenticates via its own handshake).
func AuthMiddleware(authService *auth.Service, skipAuth func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipAuth != nil && skipAuth(r) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateToken(parts[1])
			if err != nil {
				switch err {
				case auth.ErrTokenExpired:
					http.Error(w, "token expired", http.StatusUnauthorized)
				case auth.ErrTokenBlacklisted:
					http.Error(w, "token revoked", http.StatusUnauthorized)
				default:
					http.Error(w, "invalid token", http.StatusUnauthorized)
				}
				return
			}

			ctx := context.WithValue(r.Context(), identityKeyCtx, claims.IdentityKey)
			ctx = context.WithValue(ctx, fingerprintCtx, claims.Fingerprint)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentityKey extracts the caller's base64 identity public key from
// the request context.
func GetIdentityKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(identityKeyCtx).(string)
	return key, ok
}

// GetFingerprint extracts the caller's identity fingerprint from the
// request context.
func GetFingerprint(ctx context.Context) (string, bool) {
	fp, ok := ctx.Value(fingerprintCtx).(string)
	return fp, ok
}
