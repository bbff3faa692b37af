package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/postlane/postlane/application/port/outbound"
	"github.com/postlane/postlane/domain/entity"
	"github.com/postlane/postlane/infrastructure/http/middleware"
	"github.com/postlane/postlane/infrastructure/http/response"
)

// AdminHandler exposes the admin-only user listing. It sits behind
// Protect + Authorize(admin).
type AdminHandler struct {
	userRepository outbound.UserRepository
}

func NewAdminHandler(userRepository outbound.UserRepository) *AdminHandler {
	return &AdminHandler{
		userRepository: userRepository,
	}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router, auth *middleware.AuthMiddleware) {
	adminOnly := auth.Authorize(entity.RoleAdmin)
	router.Handle("/admin/users",
		auth.Protect(adminOnly(http.HandlerFunc(h.ListUsers)))).Methods(http.MethodGet)
}

type userListResponse struct {
	Users []*entity.Profile `json:"users"`
	Total int               `json:"total"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	offset := parseQueryInt(r, "offset", 0)
	limit := parseQueryInt(r, "limit", 20)

	users, total, err := h.userRepository.FindAll(r.Context(), offset, limit)
	if err != nil {
		response.AppError(w, err)
		return
	}

	profiles := make([]*entity.Profile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Sanitize())
	}

	response.Success(w, http.StatusOK, "success", userListResponse{
		Users: profiles,
		Total: total,
	})
}

func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return defaultValue
	}
	return parsed
}
