package handler

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/markwise-app/markwise-api/internal/dto"
	"github.com/markwise-app/markwise-api/internal/observability"
	"github.com/markwise-app/markwise-api/internal/service"
	"github.com/markwise-app/markwise-api/internal/utils"
)

// Multipart form fields carrying the exam documents.
const (
	fieldStudentPaper = "student_paper"
	fieldMarkScheme   = "mark_scheme"
)

// EvaluationHandler manages exam evaluation endpoints.
type EvaluationHandler struct {
	service service.EvaluationService
	quota   service.QuotaService
	drafts  service.DraftStore
	logger  zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(service service.EvaluationService, quota service.QuotaService, drafts service.DraftStore, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		quota:   quota,
		drafts:  drafts,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Get("/quota", h.quotaRemaining)
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:publicID", h.get)
	router.Patch("/:publicID", h.update)
	router.Put("/:publicID/draft", h.saveDraft)
	router.Get("/:publicID/draft", h.loadDraft)
	router.Delete("/:publicID/draft", h.deleteDraft)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	var filter dto.EvaluationFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	evaluations, err := h.service.List(c.Context(), filter, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", evaluations)
}

func (h *EvaluationHandler) create(c *fiber.Ctx) error {
	var payload dto.EvaluationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form is required")
	}

	documents, err := readDocuments(form)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "failed to read uploaded documents")
	}

	if h.quota != nil {
		if err := h.quota.Consume(c.Context(), userIDStringFromContext(c)); err != nil {
			if errors.Is(err, service.ErrQuotaExceeded) {
				observability.PreconditionRejections().WithLabelValues("quota").Inc()
				return utils.SendError(c, fiber.StatusTooManyRequests, err.Error())
			}
			return h.handleError(c, err)
		}
	}

	evaluation, err := h.service.Evaluate(c.Context(), payload, documents, userIDFromContext(c))
	if err != nil {
		// Requests thrown out before grading should not count against the
		// daily quota.
		if h.quota != nil && isPreconditionFailure(err) {
			if refundErr := h.quota.Refund(c.Context(), userIDStringFromContext(c)); refundErr != nil {
				h.logger.Warn().Err(refundErr).Msg("failed to refund quota after rejected request")
			}
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evaluation completed", evaluation)
}

// isPreconditionFailure reports whether the evaluation was rejected before
// the grading pipeline ran.
func isPreconditionFailure(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.Is(err, service.ErrNoStudentPaper) ||
		errors.Is(err, service.ErrUnsupportedDocument) ||
		errors.Is(err, service.ErrDocumentTooLarge) ||
		errors.As(err, &validationErrors)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	evaluation, err := h.service.GetByPublicID(c.Context(), c.Params("publicID"), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) update(c *fiber.Ctx) error {
	var payload dto.EvaluationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	evaluation, err := h.service.Update(c.Context(), c.Params("publicID"), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation updated", evaluation)
}

func (h *EvaluationHandler) quotaRemaining(c *fiber.Ctx) error {
	if h.quota == nil {
		return utils.SendSuccess(c, "quota retrieved", fiber.Map{"remaining": -1})
	}

	remaining, err := h.quota.Remaining(c.Context(), userIDStringFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "quota retrieved", fiber.Map{"remaining": remaining})
}

func (h *EvaluationHandler) saveDraft(c *fiber.Ctx) error {
	if h.drafts == nil {
		return utils.SendError(c, fiber.StatusNotImplemented, "drafts are not enabled")
	}

	body := c.Body()
	if len(body) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "draft body is required")
	}

	payload := make([]byte, len(body))
	copy(payload, body)

	if err := h.drafts.Save(c.Context(), userIDStringFromContext(c), c.Params("publicID"), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "draft saved", nil)
}

func (h *EvaluationHandler) loadDraft(c *fiber.Ctx) error {
	if h.drafts == nil {
		return utils.SendError(c, fiber.StatusNotImplemented, "drafts are not enabled")
	}

	payload, err := h.drafts.Load(c.Context(), userIDStringFromContext(c), c.Params("publicID"))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(payload)
}

func (h *EvaluationHandler) deleteDraft(c *fiber.Ctx) error {
	if h.drafts == nil {
		return utils.SendError(c, fiber.StatusNotImplemented, "drafts are not enabled")
	}

	if err := h.drafts.Delete(c.Context(), userIDStringFromContext(c), c.Params("publicID")); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "draft deleted", nil)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrDraftNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "draft not found")
	case errors.Is(err, service.ErrNoStudentPaper):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUnsupportedDocument):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDocumentTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &validationErrors):
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			details = append(details, fieldError.Error())
		}
		return utils.SendError(c, fiber.StatusBadRequest, "request validation failed", details...)
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// readDocuments pulls the file parts out of the multipart form. Mark scheme
// pages are flagged so the pipeline can describe them to the model.
func readDocuments(form *multipart.Form) ([]service.DocumentInput, error) {
	var documents []service.DocumentInput

	for _, header := range form.File[fieldStudentPaper] {
		document, err := readDocument(header, false)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}
	for _, header := range form.File[fieldMarkScheme] {
		document, err := readDocument(header, true)
		if err != nil {
			return nil, err
		}
		documents = append(documents, document)
	}

	return documents, nil
}

func readDocument(header *multipart.FileHeader, markScheme bool) (service.DocumentInput, error) {
	file, err := header.Open()
	if err != nil {
		return service.DocumentInput{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return service.DocumentInput{}, err
	}

	return service.DocumentInput{
		Filename:   header.Filename,
		Data:       data,
		MarkScheme: markScheme,
	}, nil
}
