package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// SeasonImageRepository manages uploaded background images.
type SeasonImageRepository struct {
	db *sqlx.DB
}

// NewSeasonImageRepository constructs a SeasonImageRepository.
func NewSeasonImageRepository(db *sqlx.DB) *SeasonImageRepository {
	return &SeasonImageRepository{db: db}
}

// Create inserts a new image record.
func (r *SeasonImageRepository) Create(ctx context.Context, image *models.SeasonImage) error {
	if image.ID == "" {
		image.ID = uuid.NewString()
	}
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO season_images (id, file_name, is_background, uploaded_at)
        VALUES (:id, :file_name, :is_background, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, image); err != nil {
		return fmt.Errorf("create season image: %w", err)
	}
	return nil
}

// List returns all images, newest first.
func (r *SeasonImageRepository) List(ctx context.Context) ([]models.SeasonImage, error) {
	var images []models.SeasonImage
	const query = "SELECT id, file_name, is_background, uploaded_at FROM season_images ORDER BY uploaded_at DESC"
	if err := r.db.SelectContext(ctx, &images, query); err != nil {
		return nil, fmt.Errorf("list season images: %w", err)
	}
	return images, nil
}

// FindByID fetches one image record.
func (r *SeasonImageRepository) FindByID(ctx context.Context, id string) (*models.SeasonImage, error) {
	var image models.SeasonImage
	const query = "SELECT id, file_name, is_background, uploaded_at FROM season_images WHERE id = $1"
	if err := r.db.GetContext(ctx, &image, query, id); err != nil {
		return nil, err
	}
	return &image, nil
}

// SetBackground flips the exclusive background flag to the given image.
func (r *SeasonImageRepository) SetBackground(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE season_images SET is_background = false WHERE is_background = true"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear background flag: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE season_images SET is_background = true WHERE id = $1", id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("set background flag: %w", err)
	}
	if err := requireRow(res); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Delete removes an image record.
func (r *SeasonImageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM season_images WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete season image: %w", err)
	}
	return requireRow(res)
}
