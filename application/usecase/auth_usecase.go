package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/postlane/postlane/application/port/inbound"
	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
	"github.com/postlane/postlane/domain/valueobject"
	"github.com/postlane/postlane/infrastructure/service/logger"
	"github.com/postlane/postlane/pkg/apperror"
)

type clientIPKey struct{}

// WithClientIP stores the caller's IP for rate limiting.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return "unknown"
}

// AuthUseCase orchestrates registration, login, password lifecycle and
// refresh-token exchange. Refresh tokens are stateless: rotation issues a new
// pair but cannot revoke the old one before its natural expiry.
type AuthUseCase struct {
	userRepository   outbound.UserRepository
	tokenService     outbound.TokenService
	passwordService  outbound.PasswordService
	rateLimitService outbound.RateLimitService
	mailer           outbound.Mailer
	logger           logger.Logger
	accessTokenTTL   time.Duration
	refreshTokenTTL  time.Duration
	resetTokenTTL    time.Duration
}

func NewAuthUseCase(
	userRepo outbound.UserRepository,
	tokenService outbound.TokenService,
	passwordService outbound.PasswordService,
	rateLimitService outbound.RateLimitService,
	mailer outbound.Mailer,
	log logger.Logger,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
	resetTokenTTL time.Duration,
) inbound.AuthUseCase {
	return &AuthUseCase{
		userRepository:   userRepo,
		tokenService:     tokenService,
		passwordService:  passwordService,
		rateLimitService: rateLimitService,
		mailer:           mailer,
		logger:           log,
		accessTokenTTL:   accessTokenTTL,
		refreshTokenTTL:  refreshTokenTTL,
		resetTokenTTL:    resetTokenTTL,
	}
}

func (uc *AuthUseCase) issueTokens(user *entity.User) (*inbound.AuthResponse, error) {
	claims := outbound.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}

	accessToken, err := uc.tokenService.GenerateAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := uc.tokenService.GenerateRefreshToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &inbound.AuthResponse{
		User:             user.Sanitize(),
		Tokens:           valueobject.NewTokenPair(accessToken, refreshToken),
		ExpiresIn:        int(uc.accessTokenTTL.Seconds()),
		RefreshExpiresIn: int(uc.refreshTokenTTL.Seconds()),
	}, nil
}

func (uc *AuthUseCase) Register(ctx context.Context, req inbound.RegisterRequest) (*inbound.AuthResponse, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, apperror.NewBadRequest("name, email and password are required")
	}

	if valid, reasons := uc.passwordService.CheckStrength(req.Password); !valid {
		return nil, apperror.NewBadRequest("password " + strings.Join(reasons, "; "))
	}

	exists, err := uc.userRepository.ExistsByEmail(ctx, req.Email)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check email existence", err, map[string]interface{}{
			"email": req.Email,
		})
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, apperror.NewConflict("email already registered")
	}

	hash, err := uc.passwordService.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := entity.NewUser(uuid.NewString(), req.Name, req.Email, hash)

	if err := uc.userRepository.Create(ctx, user); err != nil {
		if errors.Is(err, outbound.ErrUserAlreadyExists) {
			return nil, apperror.NewConflict("email already registered")
		}
		uc.logger.Error(ctx, "Failed to create user", err, map[string]interface{}{
			"email": req.Email,
		})
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "register", user.ID, clientIPFromContext(ctx), true, nil)

	return uc.issueTokens(user)
}

func (uc *AuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, apperror.NewBadRequest("email and password are required")
	}

	ip := clientIPFromContext(ctx)
	ipKey := fmt.Sprintf("ip:%s", ip)

	if uc.rateLimitService != nil {
		blocked, err := uc.rateLimitService.IsBlocked(ctx, ipKey)
		if err != nil {
			uc.logger.Error(ctx, "Failed to check IP block status", err, map[string]interface{}{
				"ip": ip,
			})
		}
		if blocked {
			logger.LogSecurityEvent(ctx, uc.logger, "blocked_ip_login_attempt", "MEDIUM", map[string]interface{}{
				"ip": ip,
			})
			return nil, apperror.NewUnauthorized("too many failed attempts, try again later")
		}

		allowed, err := uc.rateLimitService.CheckLimit(ctx, ipKey, 5, 15*time.Minute)
		if err != nil {
			uc.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip": ip,
			})
		}
		if !allowed {
			uc.rateLimitService.Block(ctx, ipKey, 30*time.Minute, "login rate limit exceeded")
			logger.LogSecurityEvent(ctx, uc.logger, "ip_rate_limit_exceeded", "HIGH", map[string]interface{}{
				"ip": ip,
			})
			return nil, apperror.NewUnauthorized("too many failed attempts, try again later")
		}
	}

	user, err := uc.userRepository.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			uc.recordFailedAttempt(ctx, ipKey)
			logger.LogAuthEvent(ctx, uc.logger, "login_failed", "", ip, false, nil)
			// Identical message to the wrong-password path: never leak which
			// check failed.
			return nil, apperror.NewUnauthorized("Invalid credentials")
		}
		uc.logger.Error(ctx, "Failed to find user", err, nil)
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	valid, err := uc.passwordService.VerifyPassword(req.Password, user.Password)
	if err != nil {
		uc.logger.Error(ctx, "Password verification error", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, fmt.Errorf("password verification failed: %w", err)
	}
	if !valid {
		uc.recordFailedAttempt(ctx, ipKey)
		logger.LogAuthEvent(ctx, uc.logger, "login_failed", user.ID, ip, false, nil)
		return nil, apperror.NewUnauthorized("Invalid credentials")
	}

	if !user.IsActive() {
		logger.LogAuthEvent(ctx, uc.logger, "login_inactive_account", user.ID, ip, false, map[string]interface{}{
			"status": user.Status,
		})
		return nil, apperror.NewUnauthorized("account inactive")
	}

	// Best effort: a failed timestamp write must not fail the login.
	if err := uc.userRepository.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		uc.logger.Warn(ctx, "Failed to update last login", map[string]interface{}{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}

	logger.LogAuthEvent(ctx, uc.logger, "login", user.ID, ip, true, nil)

	return uc.issueTokens(user)
}

func (uc *AuthUseCase) recordFailedAttempt(ctx context.Context, key string) {
	if uc.rateLimitService == nil {
		return
	}
	if err := uc.rateLimitService.Increment(ctx, key, 15*time.Minute); err != nil {
		uc.logger.Error(ctx, "Failed to record failed attempt", err, map[string]interface{}{
			"key": key,
		})
	}
}

func (uc *AuthUseCase) Me(ctx context.Context, userID string) (*entity.Profile, error) {
	user, err := uc.userRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, apperror.NewUnauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user.Sanitize(), nil
}

func (uc *AuthUseCase) ForgotPassword(ctx context.Context, req inbound.ForgotPasswordRequest) error {
	if req.Email == "" {
		return apperror.NewBadRequest("email is required")
	}

	user, err := uc.userRepository.FindByEmail(ctx, req.Email)
	if err != nil {
		// Unknown email and infrastructure failure both fall through to the
		// generic reply so the endpoint cannot be used to enumerate accounts.
		if !errors.Is(err, outbound.ErrUserNotFound) {
			uc.logger.Error(ctx, "Failed to look up user for password reset", err, nil)
		}
		return nil
	}

	token, digest, err := generateResetToken()
	if err != nil {
		uc.logger.Error(ctx, "Failed to generate reset token", err, nil)
		return nil
	}

	expires := time.Now().Add(uc.resetTokenTTL)
	user.ResetTokenDigest = digest
	user.ResetTokenExpires = &expires

	if err := uc.userRepository.Update(ctx, user); err != nil {
		uc.logger.Error(ctx, "Failed to persist reset token", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil
	}

	if err := uc.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		uc.logger.Error(ctx, "Failed to dispatch reset email", err, map[string]interface{}{
			"user_id": user.ID,
		})
	}

	logger.LogAuthEvent(ctx, uc.logger, "password_reset_requested", user.ID, clientIPFromContext(ctx), true, nil)
	return nil
}

func (uc *AuthUseCase) ResetPassword(ctx context.Context, req inbound.ResetPasswordRequest) error {
	if req.Token == "" {
		return apperror.NewBadRequest("invalid or expired token")
	}

	if valid, reasons := uc.passwordService.CheckStrength(req.NewPassword); !valid {
		return apperror.NewBadRequest("password " + strings.Join(reasons, "; "))
	}

	digest := digestResetToken(req.Token)

	user, err := uc.userRepository.FindByResetTokenDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return apperror.NewBadRequest("invalid or expired token")
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	// A matching record past its expiry still fails.
	if !user.HasValidResetToken(digest, time.Now()) {
		return apperror.NewBadRequest("invalid or expired token")
	}

	hash, err := uc.passwordService.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.Password = hash
	user.ClearResetToken()

	if err := uc.userRepository.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "password_reset", user.ID, clientIPFromContext(ctx), true, nil)
	return nil
}

func (uc *AuthUseCase) ChangePassword(ctx context.Context, userID string, req inbound.ChangePasswordRequest) error {
	user, err := uc.userRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return apperror.NewUnauthorized("user no longer exists")
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	valid, err := uc.passwordService.VerifyPassword(req.CurrentPassword, user.Password)
	if err != nil {
		return fmt.Errorf("password verification failed: %w", err)
	}
	if !valid {
		return apperror.NewBadRequest("current password incorrect")
	}

	if valid, reasons := uc.passwordService.CheckStrength(req.NewPassword); !valid {
		return apperror.NewBadRequest("password " + strings.Join(reasons, "; "))
	}

	hash, err := uc.passwordService.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.Password = hash
	if err := uc.userRepository.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "password_changed", user.ID, clientIPFromContext(ctx), true, nil)
	return nil
}

func (uc *AuthUseCase) Refresh(ctx context.Context, req inbound.RefreshRequest) (*inbound.AuthResponse, error) {
	if req.RefreshToken == "" {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	claims, err := uc.tokenService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		logger.LogAuthEvent(ctx, uc.logger, "refresh_failed", "", clientIPFromContext(ctx), false, nil)
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}

	user, err := uc.userRepository.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, apperror.NewUnauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !user.IsActive() {
		return nil, apperror.NewUnauthorized("account inactive")
	}

	logger.LogAuthEvent(ctx, uc.logger, "refresh", user.ID, clientIPFromContext(ctx), true, nil)

	// Rotation: a fresh pair is issued but the old refresh token stays valid
	// until its own expiry, since no server-side state exists to revoke it.
	return uc.issueTokens(user)
}

// generateResetToken returns the random token handed to the user and the
// sha256 digest kept at rest.
func generateResetToken() (token, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	token = hex.EncodeToString(buf)
	return token, digestResetToken(token), nil
}

func digestResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
