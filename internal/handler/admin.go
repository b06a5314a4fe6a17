package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/bandcoach/internal/model"
)

type createUserRequest struct {
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8"`
	FullName    string         `json:"full_name"`
	Role        model.UserRole `json:"role" validate:"required,oneof=student teacher admin"`
	CurrentBand float64        `json:"current_band" validate:"halfband"`
	TargetBand  float64        `json:"target_band" validate:"halfband"`
}

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": nonNil(users)})
}

func (h *Handler) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		respondMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	name := strings.TrimSpace(req.FullName)
	if name == "" {
		name = req.Email
	}

	user, err := h.store.CreateUser(model.User{
		Email:        req.Email,
		FullName:     name,
		PasswordHash: string(hash),
		CurrentBand:  req.CurrentBand,
		TargetBand:   req.TargetBand,
		Role:         req.Role,
		Onboarded:    req.Role != model.UserRoleStudent,
		Active:       true,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	if id == model.UserFromContext(r.Context()).ID {
		respondMessage(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}
	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		respondError(w, r, err)
		return
	}
	user, err := h.store.GetUserByID(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
