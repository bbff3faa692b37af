package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/postlane/postlane/application/port/inbound"
	"github.com/postlane/postlane/application/usecase"
	"github.com/postlane/postlane/infrastructure/http/middleware"
	"github.com/postlane/postlane/infrastructure/http/response"
	"github.com/postlane/postlane/infrastructure/http/validator"
)

// CookieOptions controls the session cookie written on register/login.
type CookieOptions struct {
	Domain string
	Secure bool
	// MaxAge in seconds. The token's own expiry is the real boundary; the
	// cookie just has to outlive it.
	MaxAge int
}

type AuthHandler struct {
	authUseCase inbound.AuthUseCase
	cookies     CookieOptions
}

func NewAuthHandler(authUseCase inbound.AuthUseCase, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{
		authUseCase: authUseCase,
		cookies:     cookies,
	}
}

// RegisterRoutes mounts the auth endpoints. protect marks the routes that
// require a session.
func (h *AuthHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware) {
	router.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/auth/forgot-password", h.ForgotPassword).Methods(http.MethodPost)
	router.HandleFunc("/auth/reset-password", h.ResetPassword).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh-token", h.Refresh).Methods(http.MethodPost)

	router.Handle("/auth/logout", auth.Protect(http.HandlerFunc(h.Logout))).Methods(http.MethodPost)
	router.Handle("/auth/me", auth.Protect(http.HandlerFunc(h.Me))).Methods(http.MethodGet)
	router.Handle("/auth/change-password", auth.Protect(http.HandlerFunc(h.ChangePassword))).Methods(http.MethodPost)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req inbound.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if !validator.ValidateRequired(req.Name) {
		response.UnprocessableEntity(w, "Name is required")
		return
	}
	if !validator.ValidateEmail(req.Email) {
		response.UnprocessableEntity(w, "Invalid email format")
		return
	}
	if !validator.ValidateRequired(req.Password) {
		response.UnprocessableEntity(w, "Password is required")
		return
	}

	ctx := usecase.WithClientIP(r.Context(), getClientIP(r))

	res, err := h.authUseCase.Register(ctx, req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookie(w, res.Tokens.AccessToken)
	response.Success(w, http.StatusCreated, "registered", res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req inbound.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	ctx := usecase.WithClientIP(r.Context(), getClientIP(r))

	res, err := h.authUseCase.Login(ctx, req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookie(w, res.Tokens.AccessToken)
	response.Success(w, http.StatusOK, "success", res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless, so logout only clears the cookie; an access token
	// kept by the client stays valid until it expires.
	h.clearSessionCookie(w)
	response.Success(w, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		response.Unauthorized(w, "not authorized, please login")
		return
	}

	profile, err := h.authUseCase.Me(r.Context(), identity.UserID)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "success", profile)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req inbound.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if !validator.ValidateEmail(req.Email) {
		response.UnprocessableEntity(w, "Invalid email format")
		return
	}

	if err := h.authUseCase.ForgotPassword(r.Context(), req); err != nil {
		response.AppError(w, err)
		return
	}

	// Same reply whether or not the account exists.
	response.Success(w, http.StatusOK, "if the email exists, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req inbound.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if !validator.ValidateRequired(req.Token) || !validator.ValidateRequired(req.NewPassword) {
		response.UnprocessableEntity(w, "Token and new password are required")
		return
	}

	if err := h.authUseCase.ResetPassword(r.Context(), req); err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "password has been reset", nil)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		response.Unauthorized(w, "not authorized, please login")
		return
	}

	var req inbound.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if !validator.ValidateRequired(req.CurrentPassword) || !validator.ValidateRequired(req.NewPassword) {
		response.UnprocessableEntity(w, "Current and new password are required")
		return
	}

	if err := h.authUseCase.ChangePassword(r.Context(), identity.UserID, req); err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "password changed", nil)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req inbound.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if !validator.ValidateRequired(req.RefreshToken) {
		response.Unauthorized(w, "invalid refresh token")
		return
	}

	ctx := usecase.WithClientIP(r.Context(), getClientIP(r))

	res, err := h.authUseCase.Refresh(ctx, req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	h.setSessionCookie(w, res.Tokens.AccessToken)
	response.Success(w, http.StatusOK, "success", res)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   h.cookies.Domain,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   h.cookies.MaxAge,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.Domain,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// getClientIP resolves the caller IP, preferring proxy headers.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
