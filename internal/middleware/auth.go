// Package middleware provides HTTP middleware for the storefront API
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/R3E-Network/storefront/internal/app/domain/user"
	"github.com/R3E-Network/storefront/internal/errors"
	internalhttputil "github.com/R3E-Network/storefront/internal/httputil"
	"github.com/R3E-Network/storefront/pkg/logger"
)

type identityKey struct{}

// TokenVerifier turns a bearer token into an identity. Verification failures
// are reported as service errors.
type TokenVerifier interface {
	ParseToken(token string) (user.Identity, error)
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the authenticated identity stored in ctx.
func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(user.Identity)
	return id, ok
}

// AuthMiddleware provides JWT authentication
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	return &AuthMiddleware{verifier: verifier, logger: log}
}

// Handler rejects requests without a bearer token with 401 and requests with
// an invalid or expired token with 403. On success the identity is attached to
// the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Token required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format"))
			return
		}

		id, err := m.verifier.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), id)
		ctx = logger.WithUserID(ctx, strconv.FormatInt(id.UserID, 10))
		m.logger.WithContext(ctx).WithField("role", id.Role).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondError sends an error response
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.InvalidToken(err)
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// RequireRole only lets through identities holding role. It must run after
// AuthMiddleware.
func RequireRole(role user.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				internalhttputil.WriteServiceError(w, r, errors.Unauthorized("Token required"))
				return
			}
			if id.Role != role {
				internalhttputil.WriteServiceError(w, r, errors.Forbidden(string(role)+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
