package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
)

func newTestService(t *testing.T, accessTTL, refreshTTL time.Duration) *JWTService {
	t.Helper()
	service, err := NewJWTService(Config{
		AccessSecret:    "access-test-secret",
		RefreshSecret:   "refresh-test-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	})
	if err != nil {
		t.Fatalf("Failed to create JWT service: %v", err)
	}
	return service
}

func TestJWTService(t *testing.T) {
	service := newTestService(t, time.Hour, 7*24*time.Hour)

	claims := outbound.TokenClaims{
		UserID: "user123",
		Email:  "jane@x.com",
		Role:   entity.RoleAdmin,
	}

	t.Run("AccessTokenRoundTrip", func(t *testing.T) {
		token, err := service.GenerateAccessToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate access token: %v", err)
		}
		if token == "" {
			t.Fatal("Access token should not be empty")
		}

		decoded, err := service.ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("Failed to validate token: %v", err)
		}
		if decoded.UserID != claims.UserID {
			t.Errorf("Expected user ID %q, got %q", claims.UserID, decoded.UserID)
		}
		if decoded.Email != claims.Email {
			t.Errorf("Expected email %q, got %q", claims.Email, decoded.Email)
		}
		if decoded.Role != claims.Role {
			t.Errorf("Expected role %q, got %q", claims.Role, decoded.Role)
		}
	})

	t.Run("RefreshTokenRoundTrip", func(t *testing.T) {
		token, err := service.GenerateRefreshToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate refresh token: %v", err)
		}

		decoded, err := service.ValidateRefreshToken(token)
		if err != nil {
			t.Fatalf("Failed to validate refresh token: %v", err)
		}
		if decoded.UserID != claims.UserID {
			t.Errorf("Expected user ID %q, got %q", claims.UserID, decoded.UserID)
		}
	})

	t.Run("RefreshTokenRejectedAsAccess", func(t *testing.T) {
		token, err := service.GenerateRefreshToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate refresh token: %v", err)
		}

		_, err = service.ValidateAccessToken(token)
		if !errors.Is(err, outbound.ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("AccessTokenRejectedAsRefresh", func(t *testing.T) {
		token, err := service.GenerateAccessToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate access token: %v", err)
		}

		_, err = service.ValidateRefreshToken(token)
		if !errors.Is(err, outbound.ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("ValidateGarbageToken", func(t *testing.T) {
		_, err := service.ValidateAccessToken("not-a-token")
		if !errors.Is(err, outbound.ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("ValidateTamperedToken", func(t *testing.T) {
		token, err := service.GenerateAccessToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate access token: %v", err)
		}

		// Flip one character in the signature segment
		tampered := []byte(token)
		last := len(tampered) - 1
		if tampered[last] == 'A' {
			tampered[last] = 'B'
		} else {
			tampered[last] = 'A'
		}

		_, err = service.ValidateAccessToken(string(tampered))
		if !errors.Is(err, outbound.ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("ValidateExpiredToken", func(t *testing.T) {
		shortService := newTestService(t, -time.Minute, 7*24*time.Hour)

		token, err := shortService.GenerateAccessToken(claims)
		if err != nil {
			t.Fatalf("Failed to generate access token: %v", err)
		}

		_, err = shortService.ValidateAccessToken(token)
		if !errors.Is(err, outbound.ErrTokenExpired) {
			t.Errorf("Expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("MissingRoleDefaultsToUser", func(t *testing.T) {
		token, err := service.GenerateAccessToken(outbound.TokenClaims{UserID: "user456"})
		if err != nil {
			t.Fatalf("Failed to generate access token: %v", err)
		}

		decoded, err := service.ValidateAccessToken(token)
		if err != nil {
			t.Fatalf("Failed to validate token: %v", err)
		}
		if decoded.Role != entity.RoleUser {
			t.Errorf("Expected default role %q, got %q", entity.RoleUser, decoded.Role)
		}
	})
}

func TestNewJWTServiceValidation(t *testing.T) {
	t.Run("MissingSecret", func(t *testing.T) {
		_, err := NewJWTService(Config{RefreshSecret: "only-one"})
		if !errors.Is(err, ErrMissingSecret) {
			t.Errorf("Expected ErrMissingSecret, got %v", err)
		}
	})

	t.Run("IdenticalSecrets", func(t *testing.T) {
		_, err := NewJWTService(Config{AccessSecret: "same", RefreshSecret: "same"})
		if !errors.Is(err, ErrSameSecrets) {
			t.Errorf("Expected ErrSameSecrets, got %v", err)
		}
	})
}
