package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/config"
	"github.com/markwise-app/markwise-api/internal/dto"
	"github.com/markwise-app/markwise-api/internal/grading"
	"github.com/markwise-app/markwise-api/internal/handler"
	"github.com/markwise-app/markwise-api/internal/models"
	"github.com/markwise-app/markwise-api/internal/repository"
	"github.com/markwise-app/markwise-api/internal/router"
	"github.com/markwise-app/markwise-api/internal/service"
	"github.com/markwise-app/markwise-api/pkg/ai"
)

type scriptedGrader struct {
	response string
	err      error
}

func (s *scriptedGrader) Grade(_ context.Context, _ ai.GradeRequest) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type testUploader struct{}

func (testUploader) Upload(_ context.Context, name string, _ io.Reader) (string, error) {
	return "https://files.test/" + name, nil
}

type thresholdDefaults struct{}

func (thresholdDefaults) Thresholds(_ context.Context) grading.Thresholds {
	return grading.DefaultThresholds()
}

type evaluationTestEnv struct {
	app    *fiber.App
	db     *gorm.DB
	grader *scriptedGrader
}

func setupEvaluationApp(t *testing.T, dailyQuota int) evaluationTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Evaluation{}, &models.GradingSettings{}))

	server := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)
	grader := &scriptedGrader{response: gradedResponse(t)}

	evaluationRepo := repository.NewEvaluationRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	events := service.NewEvaluationEvents(nil, "", logger)
	quota := service.NewQuotaService(redisClient, dailyQuota, logger)
	drafts := service.NewDraftStore(redisClient, time.Hour)

	evaluationService := service.NewEvaluationService(evaluationRepo, studentRepo, grader, thresholdDefaults{}, testUploader{}, events, validate, logger)

	app := fiber.New()
	evaluationHandler := handler.NewEvaluationHandler(evaluationService, quota, drafts, logger)
	eventsHandler := handler.NewEventsHandler(events, logger)

	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		EventsHandler:     eventsHandler,
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(1))
			return c.Next()
		},
	})

	return evaluationTestEnv{app: app, db: db, grader: grader}
}

func gradedResponse(t *testing.T) string {
	t.Helper()
	payload, err := json.Marshal(grading.ModelResponse{
		Questions: []grading.Question{
			{
				PageNumber:    1,
				Heading:       "Question 1",
				QuestionText:  "Explain photosynthesis.",
				Transcription: "Plants convert light into chemical energy.",
				Evaluation:    "Accurate but brief.",
				Justification: "Covers the key conversion, misses reactants.",
				Marks:         "7/10",
			},
		},
	})
	require.NoError(t, err)
	return string(payload)
}

// pngBytes is a minimal PNG header; enough for MIME sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func evaluationForm(t *testing.T, withPaper bool) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("student_name", "Amina Yusuf"))
	require.NoError(t, writer.WriteField("subject", "Biology"))
	require.NoError(t, writer.WriteField("exam_type", "o-level"))
	require.NoError(t, writer.WriteField("total_marks", "10"))

	if withPaper {
		part, err := writer.CreateFormFile("student_paper", "page-1.png")
		require.NoError(t, err)
		_, err = part.Write(pngBytes)
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postEvaluation(t *testing.T, app *fiber.App, withPaper bool) *http.Response {
	t.Helper()
	body, contentType := evaluationForm(t, withPaper)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/evaluations", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeEvaluation(t *testing.T, resp *http.Response) dto.EvaluationResponse {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    dto.EvaluationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestEvaluationCreate(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	resp := postEvaluation(t, env.app, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	evaluation := decodeEvaluation(t, resp)
	require.NotEmpty(t, evaluation.PublicID)
	require.Equal(t, "graded", evaluation.Status)
	require.Equal(t, 7.0, evaluation.Summary.TotalAwarded)
	require.Equal(t, 70.0, evaluation.Summary.Percentage)
	require.Equal(t, "B", evaluation.Summary.Grade.Grade)
	require.Len(t, evaluation.DocumentURLs, 1)

	var count int64
	require.NoError(t, env.db.Model(&models.Evaluation{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEvaluationCreateWithoutPaper(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	resp := postEvaluation(t, env.app, false)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestEvaluationCreateModelOutageStillStores(t *testing.T) {
	env := setupEvaluationApp(t, 10)
	env.grader.response = "the model returned prose instead of JSON"

	resp := postEvaluation(t, env.app, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	evaluation := decodeEvaluation(t, resp)
	require.Equal(t, "fallback", evaluation.Status)
	require.True(t, evaluation.Pipeline.FallbackUsed)
}

func TestEvaluationQuotaExhausted(t *testing.T) {
	env := setupEvaluationApp(t, 1)

	resp := postEvaluation(t, env.app, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = postEvaluation(t, env.app, true)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestEvaluationRejectedRequestsKeepQuota(t *testing.T) {
	env := setupEvaluationApp(t, 2)

	for i := 0; i < 2; i++ {
		resp := postEvaluation(t, env.app, false)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	}
	require.Equal(t, 2, quotaRemaining(t, env.app), "rejected requests do not burn quota")

	resp := postEvaluation(t, env.app, true)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, 1, quotaRemaining(t, env.app))
}

func quotaRemaining(t *testing.T, app *fiber.App) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/quota", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Remaining int `json:"remaining"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Data.Remaining
}

func TestEvaluationQuotaEndpoint(t *testing.T) {
	env := setupEvaluationApp(t, 5)

	require.Equal(t, 5, quotaRemaining(t, env.app))
}

func TestEvaluationListAndGet(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	created := decodeEvaluation(t, postEvaluation(t, env.app, true))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations?status=graded", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listEnvelope struct {
		Data []dto.EvaluationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listEnvelope))
	require.Len(t, listEnvelope.Data, 1)
	require.Equal(t, created.PublicID, listEnvelope.Data[0].PublicID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/"+created.PublicID, nil)
	getResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, getResp.StatusCode)
	fetched := decodeEvaluation(t, getResp)
	require.Equal(t, created.PublicID, fetched.PublicID)
}

func TestEvaluationGetOtherTeacherHidden(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	foreign := models.Evaluation{
		PublicID:  "f8d2c1",
		TeacherID: 2,
		Subject:   "History",
		ExamType:  string(grading.ExamTypeOLevel),
		Status:    models.EvaluationStatusGraded,
	}
	require.NoError(t, env.db.Create(&foreign).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/"+foreign.PublicID, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode, "another teacher's evaluation is indistinguishable from a missing one")

	override := 3.0
	body, err := json.Marshal(dto.EvaluationUpdateRequest{TotalAwarded: &override})
	require.NoError(t, err)
	patch := httptest.NewRequest(http.MethodPatch, "/api/v1/evaluations/"+foreign.PublicID, bytes.NewReader(body))
	patch.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	patchResp, err := env.app.Test(patch, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, patchResp.StatusCode)
}

func TestEvaluationGetUnknown(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/evaluations/nope", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluationManualOverride(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	created := decodeEvaluation(t, postEvaluation(t, env.app, true))

	payload := bytes.NewBufferString(`{"total_awarded": 9, "feedback": "Re-marked after appeal."}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/evaluations/"+created.PublicID, payload)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	updated := decodeEvaluation(t, resp)
	require.Equal(t, 9.0, updated.Summary.TotalAwarded)
	require.Equal(t, 90.0, updated.Summary.Percentage)
	require.Equal(t, "A*", updated.Summary.Grade.Grade)
	require.Equal(t, "Re-marked after appeal.", updated.Summary.Feedback)
}

func TestEvaluationDraftLifecycle(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	created := decodeEvaluation(t, postEvaluation(t, env.app, true))
	draftPath := "/api/v1/evaluations/" + created.PublicID + "/draft"
	draft := `{"total_awarded": 6.5}`

	req := httptest.NewRequest(http.MethodPut, draftPath, bytes.NewBufferString(draft))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, draftPath, nil)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	loaded, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.JSONEq(t, draft, string(loaded))

	req = httptest.NewRequest(http.MethodDelete, draftPath, nil)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, draftPath, nil)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupEvaluationApp(t, 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Data handler.HealthResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "ok", envelope.Data.Status)
	require.Equal(t, "Test", envelope.Data.Service)
}
