package entity

import (
	"time"
)

// Role is the closed set of roles a user can hold. ParseRole folds anything
// unknown down to RoleUser so a missing or garbled token claim can never
// grant elevated access.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) Role {
	r := Role(s)
	if !r.IsValid() {
		return RoleUser
	}
	return r
}

// AccountStatus is the lifecycle flag on a user record. Token validity and
// account validity are independent gates: a valid token for a suspended
// account must still be rejected.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
)

type User struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Email             string        `json:"email"`
	Password          string        `json:"-"`
	Role              Role          `json:"role"`
	Status            AccountStatus `json:"status"`
	ResetTokenDigest  string        `json:"-"`
	ResetTokenExpires *time.Time    `json:"-"`
	LastLoginAt       *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func NewUser(id, name, email, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:        id,
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		Role:      RoleUser,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// HasValidResetToken reports whether the stored reset token digest matches
// and has not expired. A matching digest past its expiry fails.
func (u *User) HasValidResetToken(digest string, now time.Time) bool {
	if u.ResetTokenDigest == "" || u.ResetTokenDigest != digest {
		return false
	}
	if u.ResetTokenExpires == nil || now.After(*u.ResetTokenExpires) {
		return false
	}
	return true
}

// ClearResetToken drops the reset token fields so the token is single-use.
func (u *User) ClearResetToken() {
	u.ResetTokenDigest = ""
	u.ResetTokenExpires = nil
}

// Profile is the sanitized projection returned to clients. It never carries
// the password hash or the reset token fields.
type Profile struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	Status      AccountStatus `json:"status"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (u *User) Sanitize() *Profile {
	return &Profile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Status:      u.Status,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
