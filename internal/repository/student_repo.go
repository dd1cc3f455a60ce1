package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/models"
)

// StudentRepository defines data operations for students.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	FindOrCreate(ctx context.Context, student *models.Student) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository instantiates the repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

// FindOrCreate matches on the external reference when present, otherwise on
// the exact name, creating a new row when nothing matches.
func (r *studentRepository) FindOrCreate(ctx context.Context, student *models.Student) error {
	query := r.db.WithContext(ctx)
	if student.ExternalRef != "" {
		query = query.Where("external_ref = ?", student.ExternalRef)
	} else {
		query = query.Where("name = ?", student.Name)
	}

	return query.FirstOrCreate(student, models.Student{
		Name:        student.Name,
		ExternalRef: student.ExternalRef,
		Class:       student.Class,
	}).Error
}
