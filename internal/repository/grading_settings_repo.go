package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/markwise-app/markwise-api/internal/models"
)

// GradingSettingsRepository reads operator-tuned grading thresholds.
type GradingSettingsRepository interface {
	GetByProfile(ctx context.Context, profile string) (models.GradingSettings, error)
}

type gradingSettingsRepository struct {
	db *gorm.DB
}

// NewGradingSettingsRepository instantiates the repository.
func NewGradingSettingsRepository(db *gorm.DB) GradingSettingsRepository {
	return &gradingSettingsRepository{db: db}
}

func (r *gradingSettingsRepository) GetByProfile(ctx context.Context, profile string) (models.GradingSettings, error) {
	var settings models.GradingSettings
	if err := r.db.WithContext(ctx).Where("profile = ?", profile).First(&settings).Error; err != nil {
		return models.GradingSettings{}, err
	}

	return settings, nil
}
