package models

import "time"

// GradingSettings stores operator-tuned validation thresholds. A single row
// per profile; the config provider falls back to static defaults when no row
// exists.
type GradingSettings struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Profile            string    `gorm:"size:64;uniqueIndex;not null" json:"profile"`
	MaxIssues          int       `json:"max_issues"`
	BlankPaperRatio    float64   `json:"blank_paper_ratio"`
	MarksMismatchRatio float64   `json:"marks_mismatch_ratio"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
