package dto

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/markwise-app/markwise-api/internal/grading"
	"github.com/markwise-app/markwise-api/internal/models"
)

// EvaluationCreateRequest describes the multipart payload for a grading run.
// Documents travel separately as file parts.
type EvaluationCreateRequest struct {
	StudentID       *uint   `form:"student_id" validate:"omitempty,gt=0"`
	StudentName     string  `form:"student_name" validate:"required,min=2"`
	StudentRef      string  `form:"student_ref" validate:"omitempty,max=64"`
	Subject         string  `form:"subject" validate:"required,min=2"`
	ExamType        string  `form:"exam_type" validate:"required"`
	TotalMarks      float64 `form:"total_marks" validate:"gte=0"`
	GradingCriteria string  `form:"grading_criteria" validate:"omitempty,max=2000"`
}

// EvaluationUpdateRequest is the manual-review path: a teacher overrides the
// awarded total or the feedback after inspecting the result.
type EvaluationUpdateRequest struct {
	TotalAwarded *float64 `json:"total_awarded" validate:"omitempty,gte=0"`
	Feedback     *string  `json:"feedback" validate:"omitempty,min=3"`
}

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	StudentID *uint   `query:"student_id"`
	Subject   *string `query:"subject"`
	ExamType  *string `query:"exam_type"`
	Status    *string `query:"status" validate:"omitempty,oneof=graded fallback"`
}

// PipelineMeta reports how the pipeline arrived at the stored result.
type PipelineMeta struct {
	ValidationPassed bool `json:"validation_passed"`
	BlankPaper       bool `json:"blank_paper"`
	FallbackUsed     bool `json:"fallback_used"`
}

// EvaluationResponse is returned to API clients for a graded paper.
type EvaluationResponse struct {
	ID             uint               `json:"id"`
	PublicID       string             `json:"public_id"`
	StudentID      *uint              `json:"student_id"`
	StudentName    string             `json:"student_name"`
	StudentRef     string             `json:"student_ref"`
	Subject        string             `json:"subject"`
	ExamType       string             `json:"exam_type"`
	RequestedTotal float64            `json:"requested_total"`
	Status         string             `json:"status"`
	Summary        grading.Summary    `json:"summary"`
	Questions      []grading.Question `json:"questions"`
	DocumentURLs   []string           `json:"document_urls"`
	Pipeline       PipelineMeta       `json:"pipeline"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NewEvaluationResponse converts an Evaluation model into a DTO. JSON columns
// that fail to decode are returned zero-valued rather than failing the whole
// response, but the corruption is logged so it does not pass for a real score.
func NewEvaluationResponse(model models.Evaluation, logger zerolog.Logger) EvaluationResponse {
	var summary grading.Summary
	decodeColumn(logger, model.PublicID, "summary", model.Summary, &summary)

	var questions []grading.Question
	decodeColumn(logger, model.PublicID, "questions", model.Questions, &questions)

	var documentURLs []string
	decodeColumn(logger, model.PublicID, "document_urls", model.DocumentURLs, &documentURLs)

	return EvaluationResponse{
		ID:             model.ID,
		PublicID:       model.PublicID,
		StudentID:      model.StudentID,
		StudentName:    model.StudentName,
		StudentRef:     model.StudentRef,
		Subject:        model.Subject,
		ExamType:       model.ExamType,
		RequestedTotal: model.RequestedTotal,
		Status:         model.Status,
		Summary:        summary,
		Questions:      questions,
		DocumentURLs:   documentURLs,
		Pipeline: PipelineMeta{
			ValidationPassed: model.ValidationPassed,
			BlankPaper:       model.BlankPaper,
			FallbackUsed:     model.FallbackUsed,
		},
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func decodeColumn(logger zerolog.Logger, publicID, column string, raw []byte, target interface{}) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, target); err != nil {
		logger.Error().Err(err).
			Str("public_id", publicID).
			Str("column", column).
			Msg("stored evaluation column failed to decode")
	}
}

// NewEvaluationResponseSlice maps a list of models to DTOs.
func NewEvaluationResponseSlice(evaluations []models.Evaluation, logger zerolog.Logger) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		responses = append(responses, NewEvaluationResponse(evaluation, logger))
	}
	return responses
}

// EvaluationEvent is pushed to event-stream subscribers on lifecycle changes.
type EvaluationEvent struct {
	PublicID string    `json:"public_id"`
	Status   string    `json:"status"`
	Subject  string    `json:"subject"`
	Grade    string    `json:"grade,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}
