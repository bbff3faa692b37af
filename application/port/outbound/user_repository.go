package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/postlane/postlane/domain/entity"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository is the external user store. Lookups return ErrUserNotFound
// when no record matches; any other error is an infrastructure failure and
// must not be conflated with "user doesn't exist".
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByResetTokenDigest(ctx context.Context, digest string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context, offset, limit int) ([]*entity.User, int, error)
}
