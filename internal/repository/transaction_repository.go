package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// TransactionRepository reads and appends ledger entries. Entries written as
// part of a balance mutation go through the owning repository's transaction
// instead; this repository serves manual entries and history reads.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a standalone ledger entry.
func (r *TransactionRepository) Create(ctx context.Context, entry *models.Transaction) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	const query = `INSERT INTO transactions (id, student_id, type, amount, description, occurred_at)
        VALUES (:id, :student_id, :type, :amount, :description, :occurred_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// ListByStudent returns a student's history, newest first.
func (r *TransactionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Transaction, error) {
	const query = `SELECT id, student_id, type, amount, description, occurred_at
        FROM transactions WHERE student_id = $1 ORDER BY occurred_at DESC`
	var entries []models.Transaction
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}
