package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/bandcoach/internal/model"
	"github.com/pavelanni/bandcoach/internal/store"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfHeaderName    = "X-CSRF-Token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// bearerToken returns the token from an "Authorization: Bearer" header, if any.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// sessionToken prefers the bearer token over the session cookie.
func sessionToken(r *http.Request) string {
	if t := bearerToken(r); t != "" {
		return t
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// csrfMiddleware requires cookie-authenticated unsafe requests to echo the
// csrf_token cookie in the X-CSRF-Token header. Bearer requests are exempt.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || bearerToken(r) != "" {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing", "path", r.URL.Path)
			respondMessage(w, http.StatusForbidden, "csrf token missing")
			return
		}
		headerToken := r.Header.Get(csrfHeaderName)
		if headerToken == "" {
			slog.Warn("CSRF header missing", "path", r.URL.Path)
			respondMessage(w, http.StatusForbidden, "csrf token missing")
			return
		}
		if subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch", "path", r.URL.Path)
			respondMessage(w, http.StatusForbidden, "invalid csrf token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth is middleware that resolves the session token to an active user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			respondMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		authSess, err := h.store.GetAuthSession(token)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			respondMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if authSess == nil {
			respondMessage(w, http.StatusUnauthorized, "session expired")
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || !user.Active {
			respondMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				respondMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondMessage(w, http.StatusForbidden, "forbidden")
		})
	}
}

type registerRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FullName    string  `json:"full_name" validate:"required"`
	Age         *int    `json:"age" validate:"omitnil,gte=10,lte=100"`
	Address     *string `json:"address"`
	Phone       *string `json:"phone"`
	CurrentBand float64 `json:"current_band" validate:"halfband"`
	TargetBand  float64 `json:"target_band" validate:"halfband,gtfield=CurrentBand"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	CSRFToken string      `json:"csrf_token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	user, err := h.store.CreateUser(model.User{
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		Age:          req.Age,
		Address:      req.Address,
		Phone:        req.Phone,
		CurrentBand:  req.CurrentBand,
		TargetBand:   req.TargetBand,
		Role:         model.UserRoleStudent,
		Onboarded:    true,
		Active:       true,
	})
	if errors.Is(err, store.ErrConflict) {
		respondMessage(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.startSession(w, r, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.store.GetUserByEmail(normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to get user", "error", err)
	}
	if err != nil || !user.Active {
		respondMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondMessage(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	h.startSession(w, r, http.StatusOK, user)
}

// startSession creates a session for user, sets the session and CSRF cookies
// and returns both tokens in the body for clients that do not keep cookies.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, code int, user *model.User) {
	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		respondError(w, r, fmt.Errorf("create auth session: %w", err))
		return
	}
	csrfToken, err := generateCSRFToken()
	if err != nil {
		respondError(w, r, fmt.Errorf("generate csrf token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, code, sessionResponse{User: user, Token: token, CSRFToken: csrfToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.store.DeleteAuthSession(token); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}

	for _, name := range []string{sessionCookieName, csrfCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: name == sessionCookieName,
			Secure:   h.config.SecureCookies,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
