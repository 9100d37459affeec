package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolah-app/moolah-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTaskRepositoryApproveAppliesRewardAtomically(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = $2, teacher_comment = $3, updated_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("t1", models.TaskStatusApproved, "good", sqlmock.AnyArg(), models.TaskStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, level = level + $3, completed_tasks = $4, updated_at = $5 WHERE id = $1")).
		WithArgs("s1", 30, 1, 0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "s1", string(models.TransactionEarned), 20, "Level 2 completion reward: Bronze badge", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(sqlmock.AnyArg(), "s1", string(models.TransactionEarned), 10, "Completed task: Clean the board", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Approve(context.Background(), ApprovalUpdate{
		TaskID:  "t1",
		Status:  models.TaskStatusApproved,
		Comment: "good",
		Effect:  &StudentEffect{StudentID: "s1", BalanceDelta: 30, LevelDelta: 1, CompletedTasks: 0},
		Ledger: []models.Transaction{
			{StudentID: "s1", Type: models.TransactionEarned, Amount: 20, Description: "Level 2 completion reward: Bronze badge"},
			{StudentID: "s1", Type: models.TransactionEarned, Amount: 10, Description: "Completed task: Clean the board"},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryApproveLosesPendingGate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = $2, teacher_comment = $3, updated_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("t1", models.TaskStatusApproved, "", sqlmock.AnyArg(), models.TaskStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Approve(context.Background(), ApprovalUpdate{
		TaskID: "t1",
		Status: models.TaskStatusApproved,
		Effect: &StudentEffect{StudentID: "s1", BalanceDelta: 10, CompletedTasks: 1},
	})
	require.ErrorIs(t, err, ErrNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryRejectSkipsStudentUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks SET status = $2, teacher_comment = $3, updated_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("t1", models.TaskStatusRejected, "redo", sqlmock.AnyArg(), models.TaskStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Approve(context.Background(), ApprovalUpdate{TaskID: "t1", Status: models.TaskStatusRejected, Comment: "redo"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepositoryListFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTaskRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "reward", "category", "assigned_to", "completed", "status", "teacher_comment", "created_at", "updated_at", "student_name"}).
		AddRow("t1", "Clean the board", 10, "Academic", "s1", true, "pending", "", time.Now(), time.Now(), "Alice")
	mock.ExpectQuery("SELECT t.id, t.name, t.reward").
		WithArgs(string(models.TaskStatusPending)).
		WillReturnRows(rows)

	tasks, err := repo.List(context.Background(), models.TaskFilter{Status: models.TaskStatusPending})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Clean the board", tasks[0].Name)
	require.NotNil(t, tasks[0].StudentName)
	assert.Equal(t, "Alice", *tasks[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
