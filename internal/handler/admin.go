package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/papergen/internal/model"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		internalError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,max=64"`
	DisplayName string `json:"display_name" validate:"max=200"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"omitempty,oneof=educator admin"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	existing, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		internalError(w, r, "failed to get user", err)
		return
	}
	if existing != nil {
		fail(w, r, http.StatusConflict, "UserExists", map[string]any{"Username": req.Username})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, r, "failed to hash password", err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	id, err := h.store.CreateUser(model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         model.UserRole(req.Role),
		Active:       true,
	})
	if err != nil {
		internalError(w, r, "failed to create user", err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		internalError(w, r, "failed to get user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "userID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		fail(w, r, http.StatusBadRequest, "FieldInvalid", map[string]any{"Field": "userID"})
		return
	}

	if err := h.store.ToggleUserActive(id); err != nil {
		internalError(w, r, "failed to toggle user active", err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		internalError(w, r, "failed to get user", err)
		return
	}
	if user == nil {
		fail(w, r, http.StatusNotFound, "FieldInvalid", map[string]any{"Field": "userID"})
		return
	}
	if !user.Active {
		if err := h.store.DeleteUserSessions(id); err != nil {
			internalError(w, r, "failed to revoke sessions", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, user)
}
