package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/bandcoach/internal/model"
)

// handleListSubmissions returns the student's submissions, newest first. An
// optional limit caps the list; total always counts every submission.
func (h *Handler) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			respondError(w, r, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = n
	}

	subs, err := h.store.ListSubmissions(user.ID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.store.SubmissionCount(user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"submissions": nonNil(subs), "total": total})
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	sub, err := h.store.GetSubmission(chi.URLParam(r, "submissionID"), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sub)
}
