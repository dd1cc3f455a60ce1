package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/dto"
	"github.com/markwise-app/markwise-api/internal/grading"
	"github.com/markwise-app/markwise-api/internal/models"
	"github.com/markwise-app/markwise-api/internal/observability"
	"github.com/markwise-app/markwise-api/internal/repository"
	"github.com/markwise-app/markwise-api/pkg/ai"
)

var (
	// ErrEvaluationNotFound indicates an evaluation could not be found.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrNoStudentPaper indicates the caller supplied no student paper documents.
	ErrNoStudentPaper = errors.New("at least one student paper document is required")
	// ErrUnsupportedDocument indicates a document type the pipeline cannot send to the model.
	ErrUnsupportedDocument = errors.New("unsupported document type")
	// ErrDocumentTooLarge indicates a document exceeding the upload ceiling.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
)

const maxDocumentBytes = 15 << 20

var allowedDocumentTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"image/webp",
}

// DocumentInput is one uploaded file, already read from the multipart form.
type DocumentInput struct {
	Filename   string
	Data       []byte
	MarkScheme bool
}

// FileUploader archives exam documents and returns the hosted URL.
type FileUploader interface {
	Upload(ctx context.Context, filename string, contents io.Reader) (string, error)
}

// EventPublisher broadcasts evaluation lifecycle events.
type EventPublisher interface {
	PublishEvaluation(ctx context.Context, event dto.EvaluationEvent)
}

// EvaluationService orchestrates the grading pipeline and evaluation access.
type EvaluationService interface {
	Evaluate(ctx context.Context, payload dto.EvaluationCreateRequest, documents []DocumentInput, teacherID uint) (dto.EvaluationResponse, error)
	List(ctx context.Context, filter dto.EvaluationFilter, teacherID uint) ([]dto.EvaluationResponse, error)
	GetByPublicID(ctx context.Context, publicID string, teacherID uint) (dto.EvaluationResponse, error)
	Update(ctx context.Context, publicID string, teacherID uint, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error)
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	students    repository.StudentRepository
	grader      ai.Grader
	config      ThresholdProvider
	uploader    FileUploader
	events      EventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewEvaluationService constructs an EvaluationService instance. The grader
// is expected to already carry its retry policy.
func NewEvaluationService(
	evaluations repository.EvaluationRepository,
	students repository.StudentRepository,
	grader ai.Grader,
	config ThresholdProvider,
	uploader FileUploader,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		students:    students,
		grader:      grader,
		config:      config,
		uploader:    uploader,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

// Evaluate runs the full grading pipeline. Precondition failures return an
// error; once the pipeline is underway every failure mode degrades to a
// structurally complete fallback evaluation instead of an error.
func (s *evaluationService) Evaluate(ctx context.Context, payload dto.EvaluationCreateRequest, documents []DocumentInput, teacherID uint) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	hasPaper := false
	hasScheme := false
	for _, document := range documents {
		if document.MarkScheme {
			hasScheme = true
		} else {
			hasPaper = true
		}
	}
	if !hasPaper {
		return dto.EvaluationResponse{}, ErrNoStudentPaper
	}

	parts, err := s.prepareDocuments(documents)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	studentID, err := s.resolveStudent(ctx, payload)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	examType := grading.ParseExamType(payload.ExamType)
	thresholds := s.config.Thresholds(ctx)

	prompt := grading.BuildGradingPrompt(grading.PromptInput{
		StudentName:     payload.StudentName,
		StudentRef:      payload.StudentRef,
		Subject:         payload.Subject,
		ExamType:        examType,
		TotalMarks:      payload.TotalMarks,
		GradingCriteria: payload.GradingCriteria,
		HasMarkScheme:   hasScheme,
	})

	raw, gradeErr := s.grader.Grade(ctx, ai.GradeRequest{Prompt: prompt, Documents: parts})

	data, meta := s.runPipeline(raw, gradeErr, payload.TotalMarks, examType, thresholds)
	s.sanitizeData(&data)

	documentURLs := s.archiveDocuments(ctx, documents)

	evaluation, err := s.persist(ctx, payload, data, meta, examType, teacherID, studentID, documentURLs)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	s.publishEvent(ctx, evaluation, data)

	observability.EvaluationOutcomes().WithLabelValues(evaluation.Status).Inc()
	s.logger.Info().
		Str("public_id", evaluation.PublicID).
		Str("status", evaluation.Status).
		Bool("blank_paper", meta.BlankPaper).
		Float64("percentage", data.Summary.Percentage).
		Msg("evaluation stored")

	return dto.NewEvaluationResponse(evaluation, s.logger), nil
}

// runPipeline converts the raw model outcome into a usable EvaluationData,
// degrading to the fallback synthesizer at every failure boundary.
func (s *evaluationService) runPipeline(raw string, gradeErr error, requestedTotal float64, examType grading.ExamType, thresholds grading.Thresholds) (grading.EvaluationData, dto.PipelineMeta) {
	fallback := func(reason string) (grading.EvaluationData, dto.PipelineMeta) {
		s.logger.Warn().Str("reason", reason).Msg("falling back to synthetic evaluation")
		data := grading.Fallback(requestedTotal, examType, reason)
		data.RawResponse = raw
		return data, dto.PipelineMeta{FallbackUsed: true}
	}

	if gradeErr != nil {
		return fallback(gradeErr.Error())
	}

	payload, err := grading.ExtractJSON(raw)
	if err != nil {
		return fallback("JSON parse failed")
	}

	if err := grading.CheckStructure(payload); err != nil {
		return fallback("model response failed structural checks")
	}

	var response grading.ModelResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return fallback("JSON parse failed")
	}

	result := grading.Validate(&response, requestedTotal, thresholds)
	if !result.IsValid {
		return fallback("model response failed validation: " + strings.Join(result.Issues, "; "))
	}
	for _, issue := range result.Issues {
		s.logger.Warn().Str("issue", issue).Msg("validation issue tolerated")
	}

	out := grading.Reconcile(grading.ReconcileInput{
		Response:       &response,
		RequestedTotal: requestedTotal,
		ExamType:       examType,
		BlankPaper:     result.IsBlankPaper,
	})
	for _, warning := range out.Warnings {
		s.logger.Warn().Str("warning", warning).Msg("score corrected during reconciliation")
	}

	data := grading.EvaluationData{
		Summary:     out.Summary,
		Questions:   out.Questions,
		RawResponse: raw,
	}
	meta := dto.PipelineMeta{
		ValidationPassed: len(result.Issues) == 0,
		BlankPaper:       result.IsBlankPaper,
	}

	return data, meta
}

// prepareDocuments sniffs MIME types and converts uploads into model parts.
// Files are processed concurrently; order across parts does not matter.
func (s *evaluationService) prepareDocuments(documents []DocumentInput) ([]ai.Document, error) {
	parts := make([]ai.Document, len(documents))
	errs := make([]error, len(documents))

	var wg sync.WaitGroup
	for i, document := range documents {
		wg.Add(1)
		go func(i int, document DocumentInput) {
			defer wg.Done()

			if len(document.Data) == 0 {
				errs[i] = fmt.Errorf("%w: %s is empty", ErrUnsupportedDocument, document.Filename)
				return
			}
			if len(document.Data) > maxDocumentBytes {
				errs[i] = fmt.Errorf("%w: %s", ErrDocumentTooLarge, document.Filename)
				return
			}

			detected := mimetype.Detect(document.Data)
			if !isAllowedDocumentType(detected.String()) {
				errs[i] = fmt.Errorf("%w: %s (%s)", ErrUnsupportedDocument, document.Filename, detected.String())
				return
			}

			parts[i] = ai.Document{
				Name: document.Filename,
				MIME: detected.String(),
				Data: document.Data,
			}
		}(i, document)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return parts, nil
}

func (s *evaluationService) resolveStudent(ctx context.Context, payload dto.EvaluationCreateRequest) (*uint, error) {
	if payload.StudentID != nil {
		if _, err := s.students.GetByID(ctx, *payload.StudentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("student %d not found", *payload.StudentID)
			}
			return nil, err
		}
		return payload.StudentID, nil
	}

	student := models.Student{Name: payload.StudentName, ExternalRef: payload.StudentRef}
	if err := s.students.FindOrCreate(ctx, &student); err != nil {
		return nil, err
	}

	return &student.ID, nil
}

// archiveDocuments uploads the original files for later review. Archival is
// best-effort: a storage outage must not lose an already-computed grade.
func (s *evaluationService) archiveDocuments(ctx context.Context, documents []DocumentInput) []string {
	if s.uploader == nil {
		return nil
	}

	var urls []string
	for _, document := range documents {
		url, err := s.uploader.Upload(ctx, document.Filename, bytes.NewReader(document.Data))
		if err != nil {
			s.logger.Warn().Err(err).Str("filename", document.Filename).Msg("document archival failed")
			continue
		}
		urls = append(urls, url)
	}

	return urls
}

func (s *evaluationService) sanitizeData(data *grading.EvaluationData) {
	data.Summary.Feedback = s.sanitizeText(data.Summary.Feedback)
	for i := range data.Questions {
		question := &data.Questions[i]
		question.Heading = s.sanitizeText(question.Heading)
		question.QuestionText = s.sanitizeText(question.QuestionText)
		question.Transcription = s.sanitizeText(question.Transcription)
		question.Evaluation = s.sanitizeText(question.Evaluation)
		question.Justification = s.sanitizeText(question.Justification)
	}
}

func (s *evaluationService) sanitizeText(text string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(text))
}

func (s *evaluationService) persist(ctx context.Context, payload dto.EvaluationCreateRequest, data grading.EvaluationData, meta dto.PipelineMeta, examType grading.ExamType, teacherID uint, studentID *uint, documentURLs []string) (models.Evaluation, error) {
	summaryJSON, err := json.Marshal(data.Summary)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("marshal summary: %w", err)
	}
	questionsJSON, err := json.Marshal(data.Questions)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("marshal questions: %w", err)
	}
	urlsJSON, err := json.Marshal(documentURLs)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("marshal document urls: %w", err)
	}

	status := models.EvaluationStatusGraded
	if meta.FallbackUsed {
		status = models.EvaluationStatusFallback
	}

	evaluation := models.Evaluation{
		PublicID:         uuid.NewString(),
		TeacherID:        teacherID,
		StudentID:        studentID,
		StudentName:      payload.StudentName,
		StudentRef:       payload.StudentRef,
		Subject:          payload.Subject,
		ExamType:         string(examType),
		RequestedTotal:   payload.TotalMarks,
		Status:           status,
		Summary:          datatypes.JSON(summaryJSON),
		Questions:        datatypes.JSON(questionsJSON),
		RawResponse:      data.RawResponse,
		DocumentURLs:     datatypes.JSON(urlsJSON),
		ValidationPassed: meta.ValidationPassed,
		BlankPaper:       meta.BlankPaper,
		FallbackUsed:     meta.FallbackUsed,
	}

	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (s *evaluationService) publishEvent(ctx context.Context, evaluation models.Evaluation, data grading.EvaluationData) {
	if s.events == nil {
		return
	}

	s.events.PublishEvaluation(ctx, dto.EvaluationEvent{
		PublicID: evaluation.PublicID,
		Status:   evaluation.Status,
		Subject:  evaluation.Subject,
		Grade:    data.Summary.Grade.Grade,
	})
}

func (s *evaluationService) List(ctx context.Context, filter dto.EvaluationFilter, teacherID uint) ([]dto.EvaluationResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.EvaluationFilter{
		StudentID: filter.StudentID,
		Subject:   filter.Subject,
		ExamType:  filter.ExamType,
		Status:    filter.Status,
	}
	if teacherID > 0 {
		repoFilter.TeacherID = &teacherID
	}

	evaluations, err := s.evaluations.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewEvaluationResponseSlice(evaluations, s.logger), nil
}

func (s *evaluationService) GetByPublicID(ctx context.Context, publicID string, teacherID uint) (dto.EvaluationResponse, error) {
	evaluation, err := s.fetchOwned(ctx, publicID, teacherID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation, s.logger), nil
}

// fetchOwned loads an evaluation and checks it belongs to the caller.
// Evaluations owned by someone else read as not found so public IDs leak
// nothing across teachers.
func (s *evaluationService) fetchOwned(ctx context.Context, publicID string, teacherID uint) (models.Evaluation, error) {
	evaluation, err := s.evaluations.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, ErrEvaluationNotFound
		}
		return models.Evaluation{}, err
	}
	if teacherID > 0 && evaluation.TeacherID != teacherID {
		return models.Evaluation{}, ErrEvaluationNotFound
	}

	return evaluation, nil
}

// Update applies a teacher's manual override. Overridden totals go through
// the same clamping as model output so stored numbers stay possible.
func (s *evaluationService) Update(ctx context.Context, publicID string, teacherID uint, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	evaluation, err := s.fetchOwned(ctx, publicID, teacherID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	var summary grading.Summary
	if err := json.Unmarshal(evaluation.Summary, &summary); err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("decode stored summary: %w", err)
	}

	if payload.TotalAwarded != nil {
		awarded := *payload.TotalAwarded
		if awarded > summary.TotalPossible {
			awarded = summary.TotalPossible
		}
		summary.TotalAwarded = awarded
		summary.Percentage = grading.Percentage(awarded, summary.TotalPossible)
		summary.Grade = grading.MapGradeFor(summary.Percentage, evaluation.ExamType)
		evaluation.Status = models.EvaluationStatusGraded
		evaluation.FallbackUsed = false
	}

	if payload.Feedback != nil {
		summary.Feedback = s.sanitizeText(*payload.Feedback)
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("marshal summary: %w", err)
	}
	evaluation.Summary = datatypes.JSON(summaryJSON)

	if err := s.evaluations.Update(ctx, &evaluation); err != nil {
		return dto.EvaluationResponse{}, err
	}

	return dto.NewEvaluationResponse(evaluation, s.logger), nil
}

func isAllowedDocumentType(mime string) bool {
	for _, allowed := range allowedDocumentTypes {
		if strings.HasPrefix(mime, allowed) {
			return true
		}
	}
	return false
}
