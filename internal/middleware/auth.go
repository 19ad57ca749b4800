package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/prolynk/backend/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

const (
	msgMissingHeader = "Authorization header required"
	msgBadHeader     = "Invalid authorization header format"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse(problem))
				return
			}
			if verifier == nil {
				hlog.FromRequest(r).Error().Msg("[auth] no token verifier configured")
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil || id.Subject == "" {
				hlog.FromRequest(r).Debug().Err(err).Msg("[auth] token rejected")
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil || id.Subject == "" {
				hlog.FromRequest(r).Debug().Err(err).Msg("[auth] ignoring invalid optional token")
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	id, _ := GetIdentity(ctx)
	return id.Subject
}

// bearerToken returns the token, or a client-facing reason it is missing.
func bearerToken(r *http.Request) (token, problem string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", msgMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", msgBadHeader
	}
	return token, ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
