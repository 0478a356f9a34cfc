package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type principalCtxKeyType struct{}

var principalCtxKey = principalCtxKeyType{}

// TokenVerifier resolves an api token to its principal.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (Principal, error)
}

// tokenFromHeader accepts both "Token <t>" and "Bearer <t>".
func tokenFromHeader(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", false
	}
	switch strings.ToLower(scheme) {
	case "token", "bearer":
	default:
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("content-type", "application/json")
	w.Header().Set("www-authenticate", `Bearer realm="casestatus"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "Unauthorized",
		"kind":  "Unauthorized",
	})
}

// Middleware rejects requests without a valid api token with 401 and
// attaches the principal of valid ones to the request context.
func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromHeader(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			principal, err := verifier.VerifyToken(r.Context(), token)
			if errors.Is(err, InvalidToken) {
				unauthorized(w)
				return
			}
			if err != nil {
				slog.ErrorContext(r.Context(), "verify token", "err", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), principalCtxKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the principal Middleware attached.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey).(Principal)
	if !ok || principal.ID == "" {
		return Principal{}, false
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("principal", principal.ID))
	return principal, true
}
