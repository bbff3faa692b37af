package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTService signs and verifies HS256 access and refresh tokens. The two
// token classes use distinct secrets and carry an explicit type claim, so a
// refresh token presented as an access token fails closed (and vice versa).
type JWTService struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

type Config struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

var (
	ErrMissingSecret = errors.New("token secret is required")
	ErrSameSecrets   = errors.New("access and refresh secrets must differ")
)

func NewJWTService(cfg Config) (*JWTService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSameSecrets
	}

	return &JWTService{
		accessSecret:    []byte(cfg.AccessSecret),
		refreshSecret:   []byte(cfg.RefreshSecret),
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
	}, nil
}

func (s *JWTService) AccessTokenTTL() time.Duration  { return s.accessTokenTTL }
func (s *JWTService) RefreshTokenTTL() time.Duration { return s.refreshTokenTTL }

func (s *JWTService) GenerateAccessToken(claims outbound.TokenClaims) (string, error) {
	return s.generate(claims, tokenTypeAccess, s.accessSecret, s.accessTokenTTL)
}

func (s *JWTService) GenerateRefreshToken(claims outbound.TokenClaims) (string, error) {
	return s.generate(claims, tokenTypeRefresh, s.refreshSecret, s.refreshTokenTTL)
}

func (s *JWTService) ValidateAccessToken(tokenString string) (*outbound.TokenClaims, error) {
	return s.validate(tokenString, tokenTypeAccess, s.accessSecret)
}

func (s *JWTService) ValidateRefreshToken(tokenString string) (*outbound.TokenClaims, error) {
	return s.validate(tokenString, tokenTypeRefresh, s.refreshSecret)
}

func (s *JWTService) generate(claims outbound.TokenClaims, tokenType string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	tokenClaims := jwt.MapClaims{
		"user_id": claims.UserID,
		"email":   claims.Email,
		"role":    string(claims.Role),
		"type":    tokenType,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims)

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return tokenString, nil
}

func (s *JWTService) validate(tokenString, tokenType string, secret []byte) (*outbound.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil {
		return nil, s.handleValidationError(err)
	}

	if !token.Valid {
		return nil, outbound.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, outbound.ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, outbound.ErrInvalidToken
	}

	// The type claim binds a token to its verifier, on top of the distinct
	// secrets.
	claimedType, ok := claims["type"].(string)
	if !ok || claimedType != tokenType {
		return nil, outbound.ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &outbound.TokenClaims{
		UserID: userID,
		Email:  email,
		Role:   entity.ParseRole(role),
	}, nil
}

func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return outbound.ErrTokenExpired
	}
	return outbound.ErrInvalidToken
}
