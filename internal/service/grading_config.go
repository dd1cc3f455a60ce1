package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/markwise-app/markwise-api/internal/grading"
	"github.com/markwise-app/markwise-api/internal/repository"
)

// ThresholdProvider resolves the grading thresholds the pipeline should use.
// The pipeline never knows which strategy supplied them.
type ThresholdProvider interface {
	Thresholds(ctx context.Context) grading.Thresholds
}

// ThresholdSource is one strategy for obtaining thresholds; sources are
// consulted in order and the first success wins.
type ThresholdSource interface {
	Thresholds(ctx context.Context) (grading.Thresholds, error)
}

type thresholdProvider struct {
	sources  []ThresholdSource
	fallback grading.Thresholds
	logger   zerolog.Logger
}

// NewThresholdProvider builds a provider over an ordered list of sources.
// When every source fails the stock defaults are used.
func NewThresholdProvider(logger zerolog.Logger, sources ...ThresholdSource) ThresholdProvider {
	return &thresholdProvider{
		sources:  sources,
		fallback: grading.DefaultThresholds(),
		logger:   logger.With().Str("component", "threshold_provider").Logger(),
	}
}

func (p *thresholdProvider) Thresholds(ctx context.Context) grading.Thresholds {
	for _, source := range p.sources {
		thresholds, err := source.Thresholds(ctx)
		if err != nil {
			p.logger.Debug().Err(err).Msg("threshold source unavailable, trying next")
			continue
		}
		return thresholds
	}

	return p.fallback
}

type databaseThresholdSource struct {
	repo    repository.GradingSettingsRepository
	profile string
}

// NewDatabaseThresholdSource reads thresholds from the grading settings
// table for the given profile.
func NewDatabaseThresholdSource(repo repository.GradingSettingsRepository, profile string) ThresholdSource {
	return &databaseThresholdSource{repo: repo, profile: profile}
}

func (s *databaseThresholdSource) Thresholds(ctx context.Context) (grading.Thresholds, error) {
	settings, err := s.repo.GetByProfile(ctx, s.profile)
	if err != nil {
		return grading.Thresholds{}, err
	}

	thresholds := grading.DefaultThresholds()
	if settings.MaxIssues > 0 {
		thresholds.MaxIssues = settings.MaxIssues
	}
	if settings.BlankPaperRatio > 0 {
		thresholds.BlankPaperRatio = settings.BlankPaperRatio
	}
	if settings.MarksMismatchRatio > 0 {
		thresholds.MarksMismatchRatio = settings.MarksMismatchRatio
	}

	return thresholds, nil
}

type staticThresholdSource struct {
	thresholds grading.Thresholds
}

// NewStaticThresholdSource always returns the given thresholds; used as the
// terminal strategy, typically fed from environment configuration.
func NewStaticThresholdSource(thresholds grading.Thresholds) ThresholdSource {
	return &staticThresholdSource{thresholds: thresholds}
}

func (s *staticThresholdSource) Thresholds(ctx context.Context) (grading.Thresholds, error) {
	return s.thresholds, nil
}
