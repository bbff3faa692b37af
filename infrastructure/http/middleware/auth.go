package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
	"github.com/postlane/postlane/infrastructure/http/response"
	"github.com/postlane/postlane/pkg/apperror"
)

// TokenCookieName is the cookie fallback for clients that do not send an
// Authorization header.
const TokenCookieName = "token"

// Identity is the per-request identity context: the decoded claims plus the
// store id of the freshly resolved user. It lives only on the request context
// and is never persisted.
type Identity struct {
	UserID string
	Email  string
	Role   entity.Role
}

type identityKey struct{}

// AuthMiddleware verifies access tokens and resolves the owning account.
// Token validity and account validity are independent gates; both must pass.
type AuthMiddleware struct {
	tokenService   outbound.TokenService
	userRepository outbound.UserRepository
}

func NewAuthMiddleware(tokenService outbound.TokenService, userRepository outbound.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService:   tokenService,
		userRepository: userRepository,
	}
}

// extractToken pulls a bearer token from the Authorization header, falling
// back to the token cookie. Returns "" when neither is present.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// resolve runs the full verification pipeline: token, owning user, account
// status. Failures come back as AppError-compatible errors so Protect can
// hand them straight to the response layer; infrastructure failures keep
// their original error and surface as 500s, never as 401s.
func (m *AuthMiddleware) resolve(r *http.Request) (*Identity, error) {
	token := extractToken(r)
	if token == "" {
		return nil, apperror.NewUnauthorized("not authorized, please login")
	}

	claims, err := m.tokenService.ValidateAccessToken(token)
	if err != nil {
		if errors.Is(err, outbound.ErrTokenExpired) {
			return nil, apperror.NewUnauthorized("token expired")
		}
		return nil, apperror.NewUnauthorized("invalid token")
	}

	user, err := m.userRepository.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, apperror.NewUnauthorized("user no longer exists")
		}
		return nil, err
	}

	if !user.IsActive() {
		return nil, apperror.NewUnauthorized("account inactive")
	}

	return &Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, nil
}

// Protect rejects the request unless a valid access token maps to an active
// account. On success the Identity is attached to the request context.
func (m *AuthMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.resolve(r)
		if err != nil {
			response.AppError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth runs the same pipeline but never rejects: any failure leaves
// the request anonymous. Endpoints behind it branch on IdentityFromContext.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.resolve(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize returns a middleware that admits only the listed roles. It must
// run after Protect: with no identity on the context it rejects with 401, so
// a misordered chain fails closed instead of silently passing.
func (m *AuthMiddleware) Authorize(roles ...entity.Role) func(http.Handler) http.Handler {
	allowed := make(map[entity.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				response.AppError(w, apperror.NewUnauthorized("not authorized, please login"))
				return
			}

			role := identity.Role
			if !role.IsValid() {
				role = entity.RoleUser
			}

			if _, ok := allowed[role]; !ok {
				response.AppError(w, apperror.NewForbidden(fmt.Sprintf("role '%s' is not permitted to access this resource", role)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IdentityFromContext returns the request identity, or nil for anonymous
// requests.
func IdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return identity
	}
	return nil
}
