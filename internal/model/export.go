package model

import "time"

// SubmissionsExport is the top-level JSON structure for the submissions export.
type SubmissionsExport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Count       int                `json:"count"`
	Results     []SubmissionExport `json:"results"`
}
