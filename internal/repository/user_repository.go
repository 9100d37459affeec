package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// UserRepository looks up login credentials. Student credentials are created
// and deleted through StudentRepository so they stay in step with the
// student row.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername fetches a credential, optionally narrowed to a role.
func (r *UserRepository) FindByUsername(ctx context.Context, username string, role *models.UserRole) (*models.User, error) {
	query := "SELECT id, username, password_hash, role, created_at, updated_at FROM users WHERE username = $1"
	args := []interface{}{username}
	if role != nil {
		query += " AND role = $2"
		args = append(args, *role)
	}
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a credential; used for teacher accounts provisioned outside
// the student flow.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :role, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
