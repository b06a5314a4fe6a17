package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/bandcoach/internal/model"
)

// ExportSubmissions returns every submission joined with its student, oldest
// first. Feedback documents are left out.
func (s *Store) ExportSubmissions() ([]model.SubmissionExport, error) {
	rows, err := s.db.Query(
		`SELECT s.id, u.email, u.full_name, s.task_type, s.word_count, s.overall_band, s.criteria_scores, s.created_at
		 FROM submissions s JOIN users u ON u.id = s.student_id
		 ORDER BY s.created_at, s.rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var results []model.SubmissionExport
	for rows.Next() {
		var (
			r        model.SubmissionExport
			criteria *string
		)
		if err := rows.Scan(&r.SubmissionID, &r.StudentEmail, &r.StudentName, &r.TaskType,
			&r.WordCount, &r.OverallBand, &criteria, &r.CreatedAt); err != nil {
			return nil, err
		}
		if criteria != nil {
			var cs model.CriteriaScores
			if err := json.Unmarshal([]byte(*criteria), &cs); err != nil {
				return nil, fmt.Errorf("submission %s criteria_scores: %w", r.SubmissionID, err)
			}
			r.Criteria = &cs
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
