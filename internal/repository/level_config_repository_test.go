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

func TestLevelConfigRepositoryMapByLevel(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLevelConfigRepository(db)

	rows := sqlmock.NewRows([]string{"id", "level", "tasks_required", "reward", "description"}).
		AddRow("l1", 1, 3, 0, "").
		AddRow("l2", 2, 5, 20, "Bronze badge")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, level, tasks_required, reward, description FROM level_configs ORDER BY level ASC")).
		WillReturnRows(rows)

	byLevel, err := repo.MapByLevel(context.Background())
	require.NoError(t, err)
	require.Len(t, byLevel, 2)
	assert.Equal(t, 3, byLevel[1].TasksRequired)
	assert.Equal(t, 20, byLevel[2].Reward)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLevelConfigRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLevelConfigRepository(db)

	mock.ExpectExec("INSERT INTO level_configs").
		WithArgs(sqlmock.AnyArg(), 2, 5, 20, "Bronze badge").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), &models.LevelConfig{Level: 2, TasksRequired: 5, Reward: 20, Description: "Bronze badge"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLevelConfigRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLevelConfigRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM level_configs WHERE level = $1")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteByLevel(context.Background(), 9)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
