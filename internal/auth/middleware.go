package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/talentcontrolhr/talentcontrol/internal/session"
)

type contextKey int

const identityContextKey contextKey = iota

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the context, or nil if not present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}

// FailureFunc is notified when a request is rejected for a bad session.
type FailureFunc func(r *http.Request, reason string)

// SessionMiddleware returns middleware that authenticates requests with the
// session cookie, falling back to a Bearer token in the Authorization header.
// On success the identity is injected into the request context.
func SessionMiddleware(verifier TokenVerifier, cookie session.Cookie, onFailure ...FailureFunc) func(http.Handler) http.Handler {
	fail := func(w http.ResponseWriter, r *http.Request, reason string) {
		for _, f := range onFailure {
			f(r, reason)
		}
		writeUnauthorized(w, "invalid or expired session")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookie.Read(r)
			if token == "" {
				token = extractBearerToken(r)
			}
			if token == "" {
				fail(w, r, "missing")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				fail(w, r, "invalid")
				return
			}

			ctx := ContextWithIdentity(r.Context(), IdentityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that admits the request only when the live
// account behind the session holds one of roles. It must run after
// SessionMiddleware. The identity in context is refreshed with the live role.
func RequireRole(lookup AccountLookup, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if id == nil {
				writeUnauthorized(w, "authentication required")
				return
			}

			p, err := lookup.LookupAccount(r.Context(), id.AccountID)
			switch {
			case errors.Is(err, ErrUnknownAccount), err == nil && p == nil:
				writeUnauthorized(w, "account no longer exists")
				return
			case err != nil:
				slog.Error("looking up session account", "account_id", id.AccountID, "error", err)
				writeUnavailable(w)
				return
			}

			live := &Identity{AccountID: p.ID, Role: p.Role, CompanyID: p.CompanyID}
			if !live.HasRole(roles...) {
				writeForbidden(w, "insufficient role")
				return
			}

			ctx := ContextWithIdentity(r.Context(), live)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "unauthorized",
			Message: message,
		},
	})
}

func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "storage_unavailable",
			Message: http.StatusText(http.StatusServiceUnavailable),
		},
	})
}

func writeForbidden(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "forbidden",
			Message: message,
		},
	})
}
