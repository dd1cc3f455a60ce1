package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/models"
)

// EvaluationFilter allows narrowing evaluation queries.
type EvaluationFilter struct {
	TeacherID *uint
	StudentID *uint
	Subject   *string
	ExamType  *string
	Status    *string
}

// EvaluationRepository defines data operations for stored evaluations.
type EvaluationRepository interface {
	List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error)
	GetByPublicID(ctx context.Context, publicID string) (models.Evaluation, error)
	Create(ctx context.Context, evaluation *models.Evaluation) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Evaluation{}).Preload("Student")
}

func (r *evaluationRepository) List(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error) {
	query := r.baseQuery(ctx)

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Subject != nil {
		query = query.Where("subject = ?", *filter.Subject)
	}
	if filter.ExamType != nil {
		query = query.Where("exam_type = ?", *filter.ExamType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var evaluations []models.Evaluation
	if err := query.Order("created_at DESC").Find(&evaluations).Error; err != nil {
		return nil, err
	}

	return evaluations, nil
}

func (r *evaluationRepository) GetByPublicID(ctx context.Context, publicID string) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.baseQuery(ctx).Where("public_id = ?", publicID).First(&evaluation).Error; err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	return r.db.WithContext(ctx).Save(evaluation).Error
}
