package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/sakif/gridiron-picks/internal/apperror"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue takes any as the key. A package-private type means no other
// package can build a colliding key, so only this package reads or writes the
// principal.
type contextKey string

const principalKey contextKey = "principal"

// Require is a middleware that authenticates the Authorization header and
// admits only the listed principal kinds.
//
//   - no or unknown credential → 401
//   - valid credential of a kind the route does not accept → 403
//
// On success the principal is stored in the request context; handlers read it
// back with PrincipalFromContext.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns one that wraps it.
// Chi runs them as a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func Require(a *Authenticator, logger *slog.Logger, kinds ...Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, apperror.ErrUnauthorized) {
					writeAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
				logger.Error("authentication failed", slog.String("error", err.Error()))
				writeAuthError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}

			if !slices.Contains(kinds, p.Kind) {
				writeAuthError(w, http.StatusForbidden, "forbidden", "this credential cannot use this endpoint")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or (nil, false)
// for a request that went through no auth middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
