package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/campuslife/apiserver/internal/services"
	"github.com/campuslife/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UserHandler provides HTTP handlers for the user directory.
type UserHandler struct {
	userService *services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService *services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UserRouter registers directory routes. Listing and per-user routes are
// visibility-gated inside the service; creation is admin only.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListUsers)
	r.With(adminMiddleware).Post("/", handler.CreateUser)
	r.Get("/me", handler.Me)
	r.Get("/{userID}", handler.GetUser)
	r.Put("/{userID}", handler.UpdateUser)
	r.Delete("/{userID}", handler.DeleteUser)
}

// UserListResponse is the directory list payload.
type UserListResponse struct {
	Users []types.User `json:"users"`
}

type upsertUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	users, err := h.userService.List(r.Context(), principal)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

// Me returns the caller's own record. A degraded principal that was never
// persisted is echoed back as-is.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if principal.ID > 0 {
		user, err := h.userService.Get(r.Context(), principal, principal.ID)
		if err == nil {
			writeJSON(w, http.StatusOK, user)
			return
		}
	}

	writeJSON(w, http.StatusOK, types.User{
		ID:    principal.ID,
		Email: principal.Email,
		Name:  principal.Name,
		Role:  principal.Role,
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.Get(r.Context(), principal, userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Update(r.Context(), principal, userID, services.UserPatch{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Delete(r.Context(), principal, userID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": userID})
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Create(r.Context(), principal, stringValue(req.Name), stringValue(req.Email), stringValue(req.Role))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
