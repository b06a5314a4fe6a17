package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/bandcoach/internal/llm"
	"github.com/pavelanni/bandcoach/internal/model"
)

type markRequest struct {
	Essay      string         `json:"essay"`
	PromptText string         `json:"promptText"`
	TaskType   model.TaskType `json:"taskType"`
	WordCount  int            `json:"wordCount"`
	PromptID   *string        `json:"promptId"`
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Essay) == "" || strings.TrimSpace(req.PromptText) == "" {
		respondMessage(w, http.StatusBadRequest, "request body must include essay and promptText")
		return
	}
	if req.WordCount < 0 {
		respondMessage(w, http.StatusBadRequest, "wordCount cannot be negative")
		return
	}

	var visual string
	if req.PromptID != nil && *req.PromptID != "" {
		p, err := h.store.GetPrompt(*req.PromptID)
		if err != nil {
			respondError(w, r, fmt.Errorf("prompt %s: %w", *req.PromptID, err))
			return
		}
		visual = p.VisualDescription()
		if req.TaskType != "" && req.TaskType != p.Task() {
			respondMessage(w, http.StatusBadRequest, fmt.Sprintf("taskType %s does not match prompt task %s", req.TaskType, p.Task()))
			return
		}
		req.TaskType = p.Task()
	} else {
		req.PromptID = nil
	}
	if req.TaskType == "" {
		req.TaskType = model.Task2
	}
	if !req.TaskType.Valid() {
		respondMessage(w, http.StatusBadRequest, "taskType must be task1 or task2")
		return
	}

	user := model.UserFromContext(r.Context())
	start := time.Now()
	fb, cleaned, err := h.llm.Mark(r.Context(), llm.MarkRequest{
		Essay:             req.Essay,
		PromptText:        req.PromptText,
		TaskType:          req.TaskType,
		WordCount:         req.WordCount,
		VisualDescription: visual,
	})
	if err != nil {
		slog.Error("marking failed", "student", user.ID, "error", err)
		respondError(w, r, err)
		return
	}
	slog.Info("essay marked", "student", user.ID, "task", req.TaskType,
		"band", fb.OverallBand, "duration", time.Since(start))

	scores := fb.CriteriaScores.Scores()
	overall := fb.OverallBand
	wordCount := req.WordCount
	sub := model.Submission{
		StudentID:      user.ID,
		PromptID:       req.PromptID,
		TaskType:       req.TaskType,
		EssayText:      req.Essay,
		WordCount:      &wordCount,
		OverallBand:    &overall,
		CriteriaScores: &scores,
		Feedback:       cleaned,
	}

	// The student gets the feedback regardless of whether the history write succeeds.
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		saved, err := h.store.InsertSubmission(sub)
		if err != nil {
			slog.Error("failed to save submission", "student", sub.StudentID, "error", err)
			return
		}
		slog.Debug("saved submission", "id", saved.ID, "student", saved.StudentID)
	}()

	respondJSON(w, http.StatusOK, map[string]any{"feedback": fb})
}
