package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/moolah-app/moolah-api/internal/models"
)

// ClassRepository manages class rosters. Membership lives on
// students.class_id, so roster changes are single-table transactions instead
// of the source system's dual-sided array bookkeeping.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns all classes.
func (r *ClassRepository) List(ctx context.Context) ([]models.Class, error) {
	var classes []models.Class
	const query = "SELECT id, name, created_at, updated_at FROM classes ORDER BY name ASC"
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID fetches a class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	const query = "SELECT id, name, created_at, updated_at FROM classes WHERE id = $1"
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListStudents returns the members of a class.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT id, name, balance, cow_icon, level, completed_tasks, class_id, created_at, updated_at
        FROM students WHERE class_id = $1 ORDER BY name ASC`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	class.CreatedAt = now
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, created_at, updated_at)
        VALUES (:id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// ReplaceStudents resets the class roster to exactly the given student IDs,
// unlinking everyone else, in one transaction.
func (r *ClassRepository) ReplaceStudents(ctx context.Context, classID string, studentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET class_id = NULL, updated_at = $2 WHERE class_id = $1",
		classID, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("unlink class students: %w", err)
	}

	if len(studentIDs) > 0 {
		if _, err := tx.ExecContext(ctx,
			"UPDATE students SET class_id = $1, updated_at = $2 WHERE id = ANY($3)",
			classID, now, pq.Array(studentIDs)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("link class students: %w", err)
		}
	}

	return tx.Commit()
}

// Delete unlinks all members and removes the class in one transaction.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE students SET class_id = NULL, updated_at = $2 WHERE class_id = $1",
		id, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("unlink class students: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete class: %w", err)
	}
	if err := requireRow(res); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
