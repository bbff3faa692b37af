package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
	"github.com/postlane/postlane/infrastructure/service/jwt"
)

// stubUserRepo serves a fixed set of users and can simulate a store outage.
type stubUserRepo struct {
	users map[string]*entity.User
	err   error
}

func (s *stubUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, outbound.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return nil, outbound.ErrUserNotFound
}

func (s *stubUserRepo) FindByResetTokenDigest(ctx context.Context, digest string) (*entity.User, error) {
	return nil, outbound.ErrUserNotFound
}

func (s *stubUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }
func (s *stubUserRepo) Update(ctx context.Context, user *entity.User) error { return nil }
func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}
func (s *stubUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return false, nil
}
func (s *stubUserRepo) FindAll(ctx context.Context, offset, limit int) ([]*entity.User, int, error) {
	return nil, 0, nil
}

func newTestTokenService(t *testing.T, accessTTL time.Duration) *jwt.JWTService {
	t.Helper()
	service, err := jwt.NewJWTService(jwt.Config{
		AccessSecret:    "access-test-secret",
		RefreshSecret:   "refresh-test-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return service
}

func activeUser(id string, role entity.Role) *entity.User {
	user := entity.NewUser(id, "Jane", "jane@x.com", "hashed")
	user.Role = role
	return user
}

// capture records whether the chain reached the handler and with what
// identity.
type capture struct {
	called   bool
	identity *Identity
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.identity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func responseMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestProtect(t *testing.T) {
	tokenService := newTestTokenService(t, time.Hour)
	repo := &stubUserRepo{users: map[string]*entity.User{
		"user-1": activeUser("user-1", entity.RoleUser),
	}}
	mw := NewAuthMiddleware(tokenService, repo)

	validToken := func(userID string) string {
		token, err := tokenService.GenerateAccessToken(outbound.TokenClaims{
			UserID: userID,
			Email:  "jane@x.com",
			Role:   entity.RoleUser,
		})
		require.NoError(t, err)
		return token
	}

	t.Run("NoToken", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "not authorized, please login", responseMessage(t, rec))
		assert.False(t, c.called)
	})

	t.Run("MalformedAuthorizationHeader", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Token abc")

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, c.called)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid token", responseMessage(t, rec))
	})

	t.Run("ExpiredTokenHasDistinctMessage", func(t *testing.T) {
		expiredService := newTestTokenService(t, -time.Minute)
		expiredMw := NewAuthMiddleware(expiredService, repo)
		token, err := expiredService.GenerateAccessToken(outbound.TokenClaims{UserID: "user-1"})
		require.NoError(t, err)

		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		expiredMw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "token expired", responseMessage(t, rec))
	})

	t.Run("UserDeletedAfterIssue", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+validToken("ghost"))

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "user no longer exists", responseMessage(t, rec))
	})

	t.Run("SuspendedAccount", func(t *testing.T) {
		suspended := activeUser("user-2", entity.RoleUser)
		suspended.Status = entity.StatusSuspended
		repoWithSuspended := &stubUserRepo{users: map[string]*entity.User{"user-2": suspended}}
		mwSuspended := NewAuthMiddleware(tokenService, repoWithSuspended)

		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+validToken("user-2"))

		mwSuspended.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "account inactive", responseMessage(t, rec))
	})

	t.Run("StoreOutageIsNot401", func(t *testing.T) {
		downRepo := &stubUserRepo{err: errors.New("connection refused")}
		mwDown := NewAuthMiddleware(tokenService, downRepo)

		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+validToken("user-1"))

		mwDown.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, c.called)
	})

	t.Run("ValidBearerToken", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+validToken("user-1"))

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.True(t, c.called)
		require.NotNil(t, c.identity)
		assert.Equal(t, "user-1", c.identity.UserID)
		assert.Equal(t, entity.RoleUser, c.identity.Role)
	})

	t.Run("CookieFallback", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: validToken("user-1")})

		mw.Protect(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, c.identity)
		assert.Equal(t, "user-1", c.identity.UserID)
	})
}

func TestOptionalAuth(t *testing.T) {
	tokenService := newTestTokenService(t, time.Hour)
	repo := &stubUserRepo{users: map[string]*entity.User{
		"user-1": activeUser("user-1", entity.RoleUser),
	}}
	mw := NewAuthMiddleware(tokenService, repo)

	failureRequests := map[string]func() *http.Request{
		"NoToken": func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/", nil)
		},
		"InvalidToken": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer garbage")
			return req
		},
		"UnknownUser": func() *http.Request {
			token, err := tokenService.GenerateAccessToken(outbound.TokenClaims{UserID: "ghost"})
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			return req
		},
	}

	for name, newRequest := range failureRequests {
		t.Run(name+"ProceedsAnonymously", func(t *testing.T) {
			c := &capture{}
			rec := httptest.NewRecorder()

			mw.OptionalAuth(c.handler()).ServeHTTP(rec, newRequest())

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, c.called)
			assert.Nil(t, c.identity)
		})
	}

	t.Run("ValidTokenAttachesIdentity", func(t *testing.T) {
		token, err := tokenService.GenerateAccessToken(outbound.TokenClaims{UserID: "user-1"})
		require.NoError(t, err)

		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		mw.OptionalAuth(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, c.identity)
		assert.Equal(t, "user-1", c.identity.UserID)
	})
}

func TestAuthorize(t *testing.T) {
	tokenService := newTestTokenService(t, time.Hour)
	repo := &stubUserRepo{users: map[string]*entity.User{}}
	mw := NewAuthMiddleware(tokenService, repo)

	withIdentity := func(req *http.Request, identity *Identity) *http.Request {
		ctx := context.WithValue(req.Context(), identityKey{}, identity)
		return req.WithContext(ctx)
	}

	t.Run("NoIdentityIs401NotSilentPass", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)

		mw.Authorize(entity.RoleAdmin)(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, c.called)
	})

	t.Run("UserRoleRejected", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil),
			&Identity{UserID: "user-1", Role: entity.RoleUser})

		mw.Authorize(entity.RoleAdmin)(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "role 'user' is not permitted to access this resource", responseMessage(t, rec))
		assert.False(t, c.called)
	})

	t.Run("AdminRoleAdmitted", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil),
			&Identity{UserID: "admin-1", Role: entity.RoleAdmin})

		mw.Authorize(entity.RoleAdmin)(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, c.called)
	})

	t.Run("UnknownRoleFoldsToUser", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/admin", nil),
			&Identity{UserID: "user-1", Role: entity.Role("superuser")})

		mw.Authorize(entity.RoleAdmin)(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.False(t, c.called)
	})

	t.Run("MultipleRolesAllowed", func(t *testing.T) {
		c := &capture{}
		rec := httptest.NewRecorder()
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/either", nil),
			&Identity{UserID: "user-1", Role: entity.RoleUser})

		mw.Authorize(entity.RoleUser, entity.RoleAdmin)(c.handler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, c.called)
	})
}
