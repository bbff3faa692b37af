package outbound

import (
	"errors"

	"github.com/postlane/postlane/domain/entity"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the identity claim set baked into every token. It is
// immutable once issued; a role change only shows up in tokens minted after
// the change.
type TokenClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   entity.Role `json:"role"`
}

// TokenService mints and verifies signed, self-contained access and refresh
// tokens. Access and refresh tokens are signed with distinct secrets and an
// explicit type claim, so one class can never be presented as the other.
type TokenService interface {
	GenerateAccessToken(claims TokenClaims) (string, error)
	GenerateRefreshToken(claims TokenClaims) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	ValidateRefreshToken(token string) (*TokenClaims, error)
}
