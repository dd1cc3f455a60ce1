package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// EvaluationStatusGraded indicates the pipeline produced a real graded result.
	EvaluationStatusGraded = "graded"
	// EvaluationStatusFallback indicates a synthetic placeholder result was stored.
	EvaluationStatusFallback = "fallback"
)

// Evaluation is the persisted outcome of one grading pipeline run.
type Evaluation struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	PublicID       string         `gorm:"size:36;uniqueIndex;not null" json:"public_id"`
	TeacherID      uint           `gorm:"index" json:"teacher_id"`
	StudentID      *uint          `gorm:"index" json:"student_id"`
	StudentName    string         `gorm:"size:255" json:"student_name"`
	StudentRef     string         `gorm:"size:64" json:"student_ref"`
	Subject        string         `gorm:"size:128;index" json:"subject"`
	ExamType       string         `gorm:"size:32;not null" json:"exam_type"`
	RequestedTotal float64        `json:"requested_total"`
	Status         string         `gorm:"size:16;not null;index" json:"status"`
	Summary        datatypes.JSON `json:"summary"`
	Questions      datatypes.JSON `json:"questions"`
	RawResponse    string         `gorm:"type:text" json:"raw_response"`
	DocumentURLs   datatypes.JSON `json:"document_urls"`

	ValidationPassed bool `json:"validation_passed"`
	BlankPaper       bool `json:"blank_paper"`
	FallbackUsed     bool `json:"fallback_used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Student   *Student  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"student,omitempty"`
}

// IsFallback reports whether the stored result is a synthetic placeholder.
func (e Evaluation) IsFallback() bool {
	return e.Status == EvaluationStatusFallback
}
