package handler

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/bandcoach/internal/model"
)

const (
	adminPageSize  = 10
	maxImportBytes = 10 << 20
)

func (h *Handler) handlePracticePrompts(w http.ResponseWriter, r *http.Request) {
	task := model.TaskType(r.URL.Query().Get("task"))
	if task == "" {
		task = model.Task2
	}
	if !task.Valid() {
		respondError(w, r, fmt.Errorf("%w: task must be task1 or task2", errBadRequest))
		return
	}
	ps, err := h.store.ListPracticePrompts(task)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prompts": nonNil(ps)})
}

func (h *Handler) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPrompt(chi.URLParam(r, "promptID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// promptFilterFromQuery reads the catalog filters from the query string.
func promptFilterFromQuery(r *http.Request) (model.PromptFilter, error) {
	q := r.URL.Query()
	f := model.PromptFilter{
		Task:              model.TaskType(q.Get("task")),
		Task1Type:         model.Task1Type(q.Get("task1_type")),
		Task2QuestionType: model.Task2QuestionType(q.Get("task2_question_type")),
	}
	if f.Task != "" && !f.Task.Valid() {
		return f, fmt.Errorf("%w: unknown task %q", errBadRequest, f.Task)
	}
	if f.Task1Type != "" && !f.Task1Type.Valid() {
		return f, fmt.Errorf("%w: unknown task1_type %q", errBadRequest, f.Task1Type)
	}
	if f.Task2QuestionType != "" && !f.Task2QuestionType.Valid() {
		return f, fmt.Errorf("%w: unknown task2_question_type %q", errBadRequest, f.Task2QuestionType)
	}
	if d := q.Get("difficulty"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 3 {
			return f, fmt.Errorf("%w: difficulty must be 1, 2 or 3", errBadRequest)
		}
		f.Difficulty = n
	}
	return f, nil
}

func (h *Handler) handleAdminListPrompts(w http.ResponseWriter, r *http.Request) {
	f, err := promptFilterFromQuery(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 1 {
			respondError(w, r, fmt.Errorf("%w: page must be a positive integer", errBadRequest))
			return
		}
	}

	ps, total, err := h.store.ListPrompts(f, adminPageSize, (page-1)*adminPageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"prompts":   nonNil(ps),
		"total":     total,
		"page":      page,
		"page_size": adminPageSize,
	})
}

// decodeRecords accepts a single prompt record or an array of them.
func decodeRecords(data []byte) ([]model.PromptRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: request body is empty", errBadRequest)
	}
	var recs []model.PromptRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		}
	} else {
		var rec model.PromptRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no prompts given", errBadRequest)
	}
	return recs, nil
}

// toPrompts validates every record before any of them is stored.
func (h *Handler) toPrompts(recs []model.PromptRecord) ([]model.WritingPrompt, error) {
	ps := make([]model.WritingPrompt, 0, len(recs))
	for i, rec := range recs {
		// Ids and timestamps are assigned by the store.
		rec.ID, rec.CreatedAt = "", nil
		if err := h.validate.Struct(rec); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i, err)
		}
		p, err := rec.ToPrompt()
		if err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i, err)
		}
		ps = append(ps, p)
	}
	return ps, nil
}

func (h *Handler) handleAdminCreatePrompts(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	recs, err := decodeRecords(data)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ps, err := h.toPrompts(recs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	stored, err := h.store.InsertPrompts(ps)
	if err != nil {
		respondError(w, r, err)
		return
	}
	slog.Info("added prompts", "count", len(stored), "by", model.UserFromContext(r.Context()).Email)
	respondJSON(w, http.StatusCreated, map[string]any{"prompts": stored})
}

func (h *Handler) handleAdminImportPrompts(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		respondError(w, r, fmt.Errorf("%w: file too large or not multipart", errBadRequest))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("%w: no file uploaded", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	hashBytes := sha256.Sum256(data)
	hash := hex.EncodeToString(hashBytes[:])

	seen, err := h.store.HasImportedHash(hash)
	if err != nil {
		respondError(w, r, fmt.Errorf("check import status: %w", err))
		return
	}
	if seen {
		slog.Info("skipping already imported file", "filename", header.Filename)
		respondJSON(w, http.StatusOK, map[string]any{"imported": 0, "duplicate": true})
		return
	}

	var recs []model.PromptRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		respondError(w, r, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err))
		return
	}
	ps, err := h.toPrompts(recs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	stored, err := h.store.InsertPrompts(ps)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.store.SetImportedFileHash(header.Filename, hash); err != nil {
		slog.Error("failed to record import", "error", err)
	}
	slog.Info("imported prompts via admin", "filename", header.Filename, "count", len(stored))
	respondJSON(w, http.StatusCreated, map[string]any{"imported": len(stored), "duplicate": false})
}

func (h *Handler) handleAdminDeletePrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "promptID")
	if err := h.store.DeletePrompt(id); err != nil {
		respondError(w, r, err)
		return
	}
	slog.Info("deleted prompt", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
