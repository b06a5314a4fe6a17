package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/bandcoach/internal/model"
)

const promptColumns = `id, task, task1_type, task2_question_type, prompt_text, difficulty,
	topic_tags, image_url, visual_description, metadata, created_at`

func scanPrompt(row rowScanner) (model.WritingPrompt, error) {
	var (
		rec       model.PromptRecord
		tags, md  string
		createdAt time.Time
	)
	err := row.Scan(&rec.ID, &rec.Task, &rec.Task1Type, &rec.Task2QuestionType, &rec.PromptText, &rec.Difficulty,
		&tags, &rec.ImageURL, &rec.VisualDescription, &md, &createdAt)
	if err != nil {
		return model.WritingPrompt{}, err
	}
	if err := json.Unmarshal([]byte(tags), &rec.TopicTags); err != nil {
		return model.WritingPrompt{}, fmt.Errorf("prompt %s topic_tags: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(md), &rec.Metadata); err != nil {
		return model.WritingPrompt{}, fmt.Errorf("prompt %s metadata: %w", rec.ID, err)
	}
	rec.CreatedAt = &createdAt
	return rec.ToPrompt()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertPrompt(db execer, p *model.WritingPrompt) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	rec := p.Record()
	if rec.TopicTags == nil {
		rec.TopicTags = []string{}
	}
	tags, err := json.Marshal(rec.TopicTags)
	if err != nil {
		return err
	}
	md, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO writing_prompts (`+promptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Task, rec.Task1Type, rec.Task2QuestionType, rec.PromptText, rec.Difficulty,
		string(tags), rec.ImageURL, rec.VisualDescription, string(md), p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("prompt %s: %w", rec.ID, ErrConflict)
	}
	return err
}

// InsertPrompts stores prompts in one transaction, assigning IDs and creation
// times when unset. Either all are stored or none.
func (s *Store) InsertPrompts(ps []model.WritingPrompt) ([]model.WritingPrompt, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]model.WritingPrompt, len(ps))
	for i, p := range ps {
		if err := insertPrompt(tx, &p); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i, err)
		}
		out[i] = p
	}
	return out, tx.Commit()
}

// GetPrompt returns a prompt by ID.
func (s *Store) GetPrompt(id string) (model.WritingPrompt, error) {
	p, err := scanPrompt(s.db.QueryRow(`SELECT `+promptColumns+` FROM writing_prompts WHERE id = ?`, id))
	return p, notFound(err)
}

// DeletePrompt removes a prompt. Submissions that referenced it keep their
// essay but lose the link.
func (s *Store) DeletePrompt(id string) error {
	res, err := s.db.Exec(`DELETE FROM writing_prompts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func filterClause(f model.PromptFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Task != "" {
		conds = append(conds, "task = ?")
		args = append(args, f.Task)
	}
	if f.Task1Type != "" {
		conds = append(conds, "task1_type = ?")
		args = append(args, f.Task1Type)
	}
	if f.Task2QuestionType != "" {
		conds = append(conds, "task2_question_type = ?")
		args = append(args, f.Task2QuestionType)
	}
	if f.Difficulty != 0 {
		conds = append(conds, "difficulty = ?")
		args = append(args, f.Difficulty)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPrompts returns one page of prompts matching f, newest first, and the
// total number of matches.
func (s *Store) ListPrompts(f model.PromptFilter, limit, offset int) ([]model.WritingPrompt, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM writing_prompts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	ps, err := s.queryPrompts(
		`SELECT `+promptColumns+` FROM writing_prompts`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	return ps, total, err
}

// ListPracticePrompts returns every prompt of a task, oldest first.
func (s *Store) ListPracticePrompts(task model.TaskType) ([]model.WritingPrompt, error) {
	return s.queryPrompts(
		`SELECT `+promptColumns+` FROM writing_prompts WHERE task = ? ORDER BY created_at, rowid`, task,
	)
}

// SamplePrompts returns up to limit prompts matching f in flat form, for use as
// generation style examples.
func (s *Store) SamplePrompts(f model.PromptFilter, limit int) ([]model.PromptRecord, error) {
	where, args := filterClause(f)
	ps, err := s.queryPrompts(
		`SELECT `+promptColumns+` FROM writing_prompts`+where+` ORDER BY created_at, rowid LIMIT ?`,
		append(args, limit)...,
	)
	if err != nil {
		return nil, err
	}
	recs := make([]model.PromptRecord, len(ps))
	for i, p := range ps {
		recs[i] = p.Record()
	}
	return recs, nil
}

// PromptCount returns the number of prompts in the catalog.
func (s *Store) PromptCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM writing_prompts`).Scan(&count)
	return count, err
}

func (s *Store) queryPrompts(query string, args ...any) ([]model.WritingPrompt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ps []model.WritingPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}
