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

type transactionRepository interface {
	Create(ctx context.Context, entry *models.Transaction) error
	ListByStudent(ctx context.Context, studentID string) ([]models.Transaction, error)
}

type transactionStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateTransactionRequest records a manual ledger entry. It documents an
// event; it does not move the balance.
type CreateTransactionRequest struct {
	StudentID   string                 `json:"student_id" validate:"required"`
	Type        models.TransactionType `json:"type" validate:"required"`
	Amount      int                    `json:"amount" validate:"required,gte=1"`
	Description string                 `json:"description" validate:"required"`
}

// TransactionService reads and appends ledger entries.
type TransactionService struct {
	repo      transactionRepository
	students  transactionStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(repo transactionRepository, students transactionStudentReader, validate *validator.Validate, logger *zap.Logger) *TransactionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionService{repo: repo, students: students, validator: validate, logger: logger}
}

// Create appends a manual ledger entry for an existing student.
func (s *TransactionService) Create(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transaction payload")
	}
	if !req.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown transaction type")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	entry := &models.Transaction{
		StudentID:   req.StudentID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transaction")
	}
	return entry, nil
}

// ListByStudent returns the student's ledger history, newest first.
func (s *TransactionService) ListByStudent(ctx context.Context, studentID string) ([]models.Transaction, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	entries, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return entries, nil
}
