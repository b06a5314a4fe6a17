package handler

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/bandcoach/internal/llm"
	"github.com/pavelanni/bandcoach/internal/model"
	"github.com/pavelanni/bandcoach/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	llm      *llm.Client
	config   model.ServerConfig
	validate *validator.Validate

	// inflight tracks submission writes that outlive their request.
	inflight sync.WaitGroup
}

// New creates a new Handler.
func New(s *store.Store, l *llm.Client, cfg model.ServerConfig) *Handler {
	return &Handler{store: s, llm: l, config: cfg, validate: newValidator()}
}

// Wait blocks until every background submission write has finished.
func (h *Handler) Wait() {
	h.inflight.Wait()
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Use(h.csrfMiddleware)

			r.Post("/auth/logout", h.handleLogout)
			r.Get("/profile", h.handleGetProfile)
			r.Patch("/profile", h.handleUpdateProfile)
			r.Get("/dashboard", h.handleDashboard)
			r.Get("/prompts", h.handlePracticePrompts)
			r.Get("/prompts/{promptID}", h.handleGetPrompt)
			r.Get("/submissions", h.handleListSubmissions)
			r.Get("/submissions/{submissionID}", h.handleGetSubmission)
			r.Post("/mark", h.handleMark)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
				r.Get("/prompts", h.handleAdminListPrompts)
				r.Post("/prompts", h.handleAdminCreatePrompts)
				r.Post("/prompts/import", h.handleAdminImportPrompts)
				r.Delete("/prompts/{promptID}", h.handleAdminDeletePrompt)
				r.Post("/generate-questions", h.handleGenerateQuestions)

				r.Group(func(r chi.Router) {
					r.Use(requireRole(model.UserRoleAdmin))
					r.Get("/users", h.handleAdminListUsers)
					r.Post("/users", h.handleAdminCreateUser)
					r.Post("/users/{userID}/toggle-active", h.handleToggleUserActive)
				})
			})
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		respondMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
