package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/bandcoach/internal/model"
)

const submissionColumns = `id, student_id, prompt_id, task_type, essay_text, word_count,
	overall_band, criteria_scores, feedback_json, created_at`

func scanSubmission(row rowScanner, withFeedback bool) (model.Submission, error) {
	var (
		sub      model.Submission
		criteria *string
		feedback *string
	)
	err := row.Scan(&sub.ID, &sub.StudentID, &sub.PromptID, &sub.TaskType, &sub.EssayText, &sub.WordCount,
		&sub.OverallBand, &criteria, &feedback, &sub.CreatedAt)
	if err != nil {
		return model.Submission{}, err
	}
	if criteria != nil {
		var cs model.CriteriaScores
		if err := json.Unmarshal([]byte(*criteria), &cs); err != nil {
			return model.Submission{}, fmt.Errorf("submission %s criteria_scores: %w", sub.ID, err)
		}
		sub.CriteriaScores = &cs
	}
	if withFeedback && feedback != nil {
		sub.Feedback = json.RawMessage(*feedback)
	}
	return sub, nil
}

// InsertSubmission records a marked essay. Submissions are never updated.
func (s *Store) InsertSubmission(sub model.Submission) (model.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	var criteria, feedback *string
	if sub.CriteriaScores != nil {
		b, err := json.Marshal(sub.CriteriaScores)
		if err != nil {
			return model.Submission{}, err
		}
		c := string(b)
		criteria = &c
	}
	if len(sub.Feedback) > 0 {
		f := string(sub.Feedback)
		feedback = &f
	}
	_, err := s.db.Exec(
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.StudentID, sub.PromptID, sub.TaskType, sub.EssayText, sub.WordCount,
		sub.OverallBand, criteria, feedback, sub.CreatedAt,
	)
	if err != nil {
		return model.Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns a student's submissions newest first, without the
// feedback document. limit <= 0 returns all of them.
func (s *Store) ListSubmissions(studentID string, limit int) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE student_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []any{studentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var subs []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows, false)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// GetSubmission returns one of a student's submissions with its feedback.
// Another student's submission is reported as not found.
func (s *Store) GetSubmission(id, studentID string) (model.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRow(
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ? AND student_id = ?`, id, studentID,
	), true)
	return sub, notFound(err)
}

// SubmissionCount returns the number of submissions of a student.
func (s *Store) SubmissionCount(studentID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE student_id = ?`, studentID).Scan(&count)
	return count, err
}
