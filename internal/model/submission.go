package model

import (
	"encoding/json"
	"time"
)

// TaskType identifies the IELTS Writing task.
type TaskType string

const (
	Task1 TaskType = "task1"
	Task2 TaskType = "task2"
)

// Valid reports whether t is task1 or task2.
func (t TaskType) Valid() bool {
	return t == Task1 || t == Task2
}

// Criterion is one of the four scored dimensions.
type Criterion string

const (
	CriterionTR  Criterion = "TR"
	CriterionCC  Criterion = "CC"
	CriterionLR  Criterion = "LR"
	CriterionGRA Criterion = "GRA"
)

// Criteria lists the criteria in their canonical order.
var Criteria = []Criterion{CriterionTR, CriterionCC, CriterionLR, CriterionGRA}

// CriteriaScores is the per-criterion band snapshot stored with a submission.
type CriteriaScores struct {
	TR  float64 `json:"TR"`
	CC  float64 `json:"CC"`
	LR  float64 `json:"LR"`
	GRA float64 `json:"GRA"`
}

// Get returns the band for c.
func (s CriteriaScores) Get(c Criterion) float64 {
	switch c {
	case CriterionTR:
		return s.TR
	case CriterionCC:
		return s.CC
	case CriterionLR:
		return s.LR
	case CriterionGRA:
		return s.GRA
	}
	return 0
}

// Submission is one marked essay attempt.
type Submission struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	PromptID       *string         `json:"prompt_id"`
	TaskType       TaskType        `json:"task_type"`
	EssayText      string          `json:"essay_text"`
	WordCount      *int            `json:"word_count"`
	OverallBand    *float64        `json:"overall_band"`
	CriteriaScores *CriteriaScores `json:"criteria_scores"`
	Feedback       json.RawMessage `json:"feedback_json,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SubmissionExport is one row of the submissions export.
type SubmissionExport struct {
	SubmissionID string          `json:"submission_id"`
	StudentEmail string          `json:"student_email"`
	StudentName  string          `json:"student_name"`
	TaskType     TaskType        `json:"task_type"`
	WordCount    *int            `json:"word_count"`
	OverallBand  *float64        `json:"overall_band"`
	Criteria     *CriteriaScores `json:"criteria_scores"`
	CreatedAt    time.Time       `json:"created_at"`
}
