package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "slotify/pkg/errors"
	httputil "slotify/pkg/http"
	"slotify/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type contextKey struct{}

// WithClaims returns ctx carrying the authenticated caller.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

// FromContext returns the authenticated caller, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the caller's subject or "".
func UserID(ctx context.Context) string {
	if claims, ok := FromContext(ctx); ok {
		return claims.Sub
	}
	return ""
}

type Authenticator struct {
	secret string
	log    *logger.Logger
	now    func() time.Time
}

func NewAuthenticator(secret string, log *logger.Logger) *Authenticator {
	return &Authenticator{secret: secret, log: log, now: time.Now}
}

// User admits any caller presenting a valid bearer token.
func (a *Authenticator) User(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		claims, err := a.authenticate(r)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims)), ps)
	}
}

// Admin admits callers whose token carries the admin role.
func (a *Authenticator) Admin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		claims, err := a.authenticate(r)
		if err != nil {
			a.reject(w, r, err)
			return
		}
		if !claims.IsAdmin() {
			a.log.Warn("Admin route denied", "path", r.URL.Path, "user_id", claims.Sub, "role", claims.Role)
			if err := httputil.WriteError(w, apperrors.Forbidden("Admin access required")); err != nil {
				a.log.Error("failed to write error response", "error", err)
			}
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims)), ps)
	}
}

// Subject returns "user:<sub>" for a request with a valid bearer token and
// "" otherwise. It is used to key per-caller limits ahead of routing.
func (a *Authenticator) Subject(r *http.Request) string {
	claims, err := a.authenticate(r)
	if err != nil {
		return ""
	}
	return "user:" + claims.Sub
}

func (a *Authenticator) authenticate(r *http.Request) (*Claims, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return nil, errMissingToken
	}
	scheme, token, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	return ParseAndVerifyHS256(strings.TrimSpace(token), a.secret, a.now())
}

var errMissingToken = errors.New("missing bearer token")

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, err error) {
	a.log.Debug("Request not authenticated", "path", r.URL.Path, "error", err)

	message := "Invalid or missing token"
	switch {
	case errors.Is(err, errMissingToken):
		message = "Authorization token required"
	case errors.Is(err, ErrExpiredToken):
		message = "Token expired"
	}
	if err := httputil.WriteError(w, apperrors.Unauthorized(message)); err != nil {
		a.log.Error("failed to write error response", "error", err)
	}
}
