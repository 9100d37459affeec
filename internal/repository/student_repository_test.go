package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolah-app/moolah-api/internal/models"
)

func TestStudentRepositoryDeductSufficientBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET balance = balance - $2, updated_at = $3 WHERE id = $1 AND balance >= $2 RETURNING balance")).
		WithArgs("s1", 30, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(20))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "s1", string(models.TransactionFine), 30, "Fine", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := repo.Deduct(context.Background(), "s1", 30, &models.Transaction{
		StudentID: "s1", Type: models.TransactionFine, Amount: 30, Description: "Fine",
	})
	require.NoError(t, err)
	assert.Equal(t, 20, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeductInsufficientBalance(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET balance = balance - $2, updated_at = $3 WHERE id = $1 AND balance >= $2 RETURNING balance")).
		WithArgs("s1", 99, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	_, err := repo.Deduct(context.Background(), "s1", 99, &models.Transaction{StudentID: "s1", Type: models.TransactionFine, Amount: 99})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAdjustBalanceWritesLedger(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1 RETURNING balance")).
		WithArgs("s1", -80, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(-30))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "s1", string(models.TransactionSpent), 80, "Manual balance adjustment", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	balance, err := repo.AdjustBalance(context.Background(), "s1", -80, &models.Transaction{
		StudentID: "s1", Type: models.TransactionSpent, Amount: 80, Description: "Manual balance adjustment",
	})
	require.NoError(t, err)
	assert.Equal(t, -30, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteWithUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM students WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET assigned_to = NULL WHERE assigned_to = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM transactions WHERE student_id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE username = $1 AND role = $2")).
		WithArgs("Alice", string(models.RoleStudent)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteWithUser(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
