package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pavelanni/bandcoach/internal/llm"
	"github.com/pavelanni/bandcoach/internal/model"
)

type generateRequest struct {
	Task              model.TaskType           `json:"task"`
	Count             *int                     `json:"count"`
	Task1Type         *model.Task1Type         `json:"task1_type"`
	Task2QuestionType *model.Task2QuestionType `json:"task2_question_type"`
}

// handleGenerateQuestions returns oracle-written candidate questions for staff
// to review. Nothing is stored until a candidate is posted to /admin/prompts.
func (h *Handler) handleGenerateQuestions(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Task1Type != nil && *req.Task1Type != "" && !req.Task1Type.Valid() {
		respondError(w, r, fmt.Errorf("%w: unknown task1_type %q", errBadRequest, *req.Task1Type))
		return
	}
	if req.Task2QuestionType != nil && *req.Task2QuestionType != "" && !req.Task2QuestionType.Valid() {
		respondError(w, r, fmt.Errorf("%w: unknown task2_question_type %q", errBadRequest, *req.Task2QuestionType))
		return
	}

	gen := llm.GenerateRequest{
		Task:              req.Task,
		Count:             llm.DefaultCandidates,
		Task1Type:         emptyToNil(req.Task1Type),
		Task2QuestionType: emptyToNil(req.Task2QuestionType),
	}
	if req.Count != nil {
		gen.Count = *req.Count
	}
	gen = gen.Normalize()

	samples, err := h.store.SamplePrompts(gen.Filter(), llm.SampleLimit)
	if err != nil {
		respondError(w, r, fmt.Errorf("load style samples: %w", err))
		return
	}

	candidates, err := h.llm.GenerateCandidates(r.Context(), gen, samples)
	if err != nil {
		slog.Error("question generation failed", "task", gen.Task, "error", err)
		respondError(w, r, err)
		return
	}
	slog.Info("generated candidate questions", "task", gen.Task, "requested", gen.Count,
		"returned", len(candidates), "samples", len(samples))
	respondJSON(w, http.StatusOK, map[string]any{"candidates": nonNil(candidates)})
}

func emptyToNil[T ~string](p *T) *T {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
