package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// LevelConfigRepository manages level progression rows.
type LevelConfigRepository struct {
	db *sqlx.DB
}

// NewLevelConfigRepository constructs a LevelConfigRepository.
func NewLevelConfigRepository(db *sqlx.DB) *LevelConfigRepository {
	return &LevelConfigRepository{db: db}
}

// List returns all level configurations ordered by level.
func (r *LevelConfigRepository) List(ctx context.Context) ([]models.LevelConfig, error) {
	var levels []models.LevelConfig
	const query = "SELECT id, level, tasks_required, reward, description FROM level_configs ORDER BY level ASC"
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, fmt.Errorf("list level configs: %w", err)
	}
	return levels, nil
}

// MapByLevel loads every configuration keyed by level number; the reward
// engine consumes this to resolve current and next level in one read.
func (r *LevelConfigRepository) MapByLevel(ctx context.Context) (map[int]models.LevelConfig, error) {
	levels, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	byLevel := make(map[int]models.LevelConfig, len(levels))
	for _, lc := range levels {
		byLevel[lc.Level] = lc
	}
	return byLevel, nil
}

// Upsert creates or overwrites the configuration for a level.
func (r *LevelConfigRepository) Upsert(ctx context.Context, lc *models.LevelConfig) error {
	if lc.ID == "" {
		lc.ID = uuid.NewString()
	}
	const query = `INSERT INTO level_configs (id, level, tasks_required, reward, description)
        VALUES (:id, :level, :tasks_required, :reward, :description)
        ON CONFLICT (level)
        DO UPDATE SET tasks_required = EXCLUDED.tasks_required, reward = EXCLUDED.reward, description = EXCLUDED.description`
	if _, err := r.db.NamedExecContext(ctx, query, lc); err != nil {
		return fmt.Errorf("upsert level config: %w", err)
	}
	return nil
}

// DeleteByLevel removes the configuration for a level.
func (r *LevelConfigRepository) DeleteByLevel(ctx context.Context, level int) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM level_configs WHERE level = $1", level)
	if err != nil {
		return fmt.Errorf("delete level config: %w", err)
	}
	return requireRow(res)
}
