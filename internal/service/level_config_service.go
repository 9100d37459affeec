package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type levelConfigRepository interface {
	List(ctx context.Context) ([]models.LevelConfig, error)
	Upsert(ctx context.Context, lc *models.LevelConfig) error
	DeleteByLevel(ctx context.Context, level int) error
}

// UpsertLevelConfigRequest creates or replaces the row for one level.
type UpsertLevelConfigRequest struct {
	Level         int    `json:"level" validate:"required,gte=1"`
	TasksRequired int    `json:"tasks_required" validate:"required,gte=1"`
	Reward        int    `json:"reward" validate:"gte=0"`
	Description   string `json:"description"`
}

// LevelConfigService manages the level progression table.
type LevelConfigService struct {
	repo      levelConfigRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLevelConfigService constructs a LevelConfigService.
func NewLevelConfigService(repo levelConfigRepository, validate *validator.Validate, logger *zap.Logger) *LevelConfigService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LevelConfigService{repo: repo, validator: validate, logger: logger}
}

// List returns all level configurations ordered by level.
func (s *LevelConfigService) List(ctx context.Context) ([]models.LevelConfig, error) {
	levels, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list level configs")
	}
	return levels, nil
}

// Upsert creates or overwrites the configuration for a level.
func (s *LevelConfigService) Upsert(ctx context.Context, req UpsertLevelConfigRequest) (*models.LevelConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid level config payload")
	}

	lc := &models.LevelConfig{
		Level:         req.Level,
		TasksRequired: req.TasksRequired,
		Reward:        req.Reward,
		Description:   req.Description,
	}
	if err := s.repo.Upsert(ctx, lc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save level config")
	}
	return lc, nil
}

// Delete removes the configuration for a level. Students already at that
// level keep progressing only once the row is recreated.
func (s *LevelConfigService) Delete(ctx context.Context, level int) error {
	if err := s.repo.DeleteByLevel(ctx, level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "level config not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete level config")
	}
	return nil
}
