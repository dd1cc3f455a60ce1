package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Evaluation{}, &models.GradingSettings{}))
	return db
}

func TestEvaluationRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)

	older := models.Evaluation{
		PublicID: "pub-1", TeacherID: 1, Subject: "Physics", ExamType: "o-level",
		Status: models.EvaluationStatusGraded, CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	newer := models.Evaluation{
		PublicID: "pub-2", TeacherID: 1, Subject: "Biology", ExamType: "ielts",
		Status: models.EvaluationStatusFallback, CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&older).Error)
	require.NoError(t, db.Create(&newer).Error)

	subject := "Physics"
	evaluations, err := repo.List(context.Background(), EvaluationFilter{Subject: &subject})
	require.NoError(t, err)
	require.Len(t, evaluations, 1)
	require.Equal(t, "pub-1", evaluations[0].PublicID)

	status := models.EvaluationStatusFallback
	evaluations, err = repo.List(context.Background(), EvaluationFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, evaluations, 1)
	require.Equal(t, "pub-2", evaluations[0].PublicID)

	evaluations, err = repo.List(context.Background(), EvaluationFilter{})
	require.NoError(t, err)
	require.Len(t, evaluations, 2)
	require.Equal(t, "pub-2", evaluations[0].PublicID, "expected newest record first")
}

func TestEvaluationRepositoryGetByPublicID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEvaluationRepository(db)

	evaluation := models.Evaluation{PublicID: "pub-9", Subject: "Maths", ExamType: "a-level", Status: models.EvaluationStatusGraded}
	require.NoError(t, repo.Create(context.Background(), &evaluation))

	found, err := repo.GetByPublicID(context.Background(), "pub-9")
	require.NoError(t, err)
	require.Equal(t, evaluation.ID, found.ID)

	_, err = repo.GetByPublicID(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStudentRepositoryFindOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentRepository(db)

	first := models.Student{Name: "Amina Yusuf", ExternalRef: "S-1044"}
	require.NoError(t, repo.FindOrCreate(context.Background(), &first))
	require.NotZero(t, first.ID)

	again := models.Student{Name: "Amina Y.", ExternalRef: "S-1044"}
	require.NoError(t, repo.FindOrCreate(context.Background(), &again))
	require.Equal(t, first.ID, again.ID, "external ref match must not create a duplicate")
}

func TestGradingSettingsRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradingSettingsRepository(db)

	require.NoError(t, db.Create(&models.GradingSettings{
		Profile: "default", MaxIssues: 5, BlankPaperRatio: 0.7, MarksMismatchRatio: 0.4,
	}).Error)

	settings, err := repo.GetByProfile(context.Background(), "default")
	require.NoError(t, err)
	require.Equal(t, 5, settings.MaxIssues)

	_, err = repo.GetByProfile(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
