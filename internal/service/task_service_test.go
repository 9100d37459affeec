package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type fakeTaskRepo struct {
	tasks       map[string]*models.Task
	approveErr  error
	lastApprove *repository.ApprovalUpdate
	batch       []models.Task
}

func (f *fakeTaskRepo) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskDetail, error) {
	var out []models.TaskDetail
	for _, task := range f.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		out = append(out, models.TaskDetail{Task: *task})
	}
	return out, nil
}

func (f *fakeTaskRepo) FindByID(ctx context.Context, id string) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) Create(ctx context.Context, task *models.Task) error {
	task.ID = "t-new"
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeTaskRepo) CreateBatch(ctx context.Context, tasks []models.Task) error {
	f.batch = tasks
	return nil
}

func (f *fakeTaskRepo) MarkComplete(ctx context.Context, id string) (*models.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	task.Completed = true
	task.Status = models.TaskStatusPending
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) Approve(ctx context.Context, update repository.ApprovalUpdate) error {
	if f.approveErr != nil {
		return f.approveErr
	}
	f.lastApprove = &update
	if task, ok := f.tasks[update.TaskID]; ok {
		task.Status = update.Status
		task.TeacherComment = update.Comment
	}
	return nil
}

func (f *fakeTaskRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tasks, id)
	return nil
}

type fakeStudentReader struct {
	students map[string]*models.Student
}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *student
	return &copied, nil
}

type fakeLevelReader struct {
	levels map[int]models.LevelConfig
	err    error
}

func (f *fakeLevelReader) MapByLevel(ctx context.Context) (map[int]models.LevelConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.levels, nil
}

func newTaskServiceFixture() (*TaskService, *fakeTaskRepo, *fakeStudentReader, *fakeLevelReader) {
	assignee := "s1"
	repo := &fakeTaskRepo{tasks: map[string]*models.Task{
		"t1": {ID: "t1", Name: "Clean the board", Reward: 10, Category: models.TaskCategoryAcademic, AssignedTo: &assignee, Status: models.TaskStatusPending},
	}}
	students := &fakeStudentReader{students: map[string]*models.Student{
		"s1": {ID: "s1", Name: "Alice", Balance: 100, Level: 1, CompletedTasks: 2},
	}}
	levels := &fakeLevelReader{levels: map[int]models.LevelConfig{
		1: {Level: 1, TasksRequired: 3},
		2: {Level: 2, TasksRequired: 5, Reward: 20, Description: "Bronze badge"},
	}}
	svc := NewTaskService(repo, students, levels, nil, validator.New(), zap.NewNop())
	return svc, repo, students, levels
}

func TestTaskServiceReviewApproveLevelUp(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()

	task, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusApproved, Comment: "nice"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusApproved, task.Status)

	require.NotNil(t, repo.lastApprove)
	effect := repo.lastApprove.Effect
	require.NotNil(t, effect)
	assert.Equal(t, "s1", effect.StudentID)
	assert.Equal(t, 30, effect.BalanceDelta)
	assert.Equal(t, 1, effect.LevelDelta)
	assert.Equal(t, 0, effect.CompletedTasks)

	require.Len(t, repo.lastApprove.Ledger, 2)
	assert.Equal(t, models.TransactionEarned, repo.lastApprove.Ledger[0].Type)
	assert.Equal(t, 20, repo.lastApprove.Ledger[0].Amount)
	assert.Contains(t, repo.lastApprove.Ledger[0].Description, "Level 2")
	assert.Equal(t, 10, repo.lastApprove.Ledger[1].Amount)
	assert.Contains(t, repo.lastApprove.Ledger[1].Description, "Clean the board")
}

func TestTaskServiceReviewReject(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()

	task, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusRejected, Comment: "redo"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRejected, task.Status)
	assert.Equal(t, "redo", task.TeacherComment)

	require.NotNil(t, repo.lastApprove)
	assert.Nil(t, repo.lastApprove.Effect)
	assert.Empty(t, repo.lastApprove.Ledger)
}

func TestTaskServiceReviewAlreadyDecided(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()
	repo.tasks["t1"].Status = models.TaskStatusApproved

	_, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.lastApprove)
}

func TestTaskServiceReviewLosesRace(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()
	repo.approveErr = repository.ErrNotPending

	_, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTaskServiceReviewMissingLevelConfig(t *testing.T) {
	svc, repo, students, levels := newTaskServiceFixture()
	students.students["s1"].Level = 9
	levels.levels = map[int]models.LevelConfig{1: {Level: 1, TasksRequired: 3}}

	_, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusApproved})
	require.Error(t, err)
	assert.Nil(t, repo.lastApprove, "nothing may be persisted when the level table is incomplete")
}

func TestTaskServiceReviewInvalidStatus(t *testing.T) {
	svc, _, _, _ := newTaskServiceFixture()

	_, err := svc.Review(context.Background(), "t1", ReviewTaskRequest{Status: models.TaskStatusPending})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskServiceAssignCopiesPerStudent(t *testing.T) {
	svc, repo, students, _ := newTaskServiceFixture()
	students.students["s2"] = &models.Student{ID: "s2", Name: "Bob", Level: 1}
	template := &models.Task{ID: "tpl", Name: "Homework", Reward: 5, Category: models.TaskCategoryAcademic}
	repo.tasks["tpl"] = template

	copies, err := svc.Assign(context.Background(), "tpl", AssignTaskRequest{StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, "s1", *copies[0].AssignedTo)
	assert.Equal(t, "s2", *copies[1].AssignedTo)
	assert.Equal(t, "Homework", copies[0].Name)
	assert.Len(t, repo.batch, 2)
}

func TestTaskServiceAssignUnknownStudent(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()
	repo.tasks["tpl"] = &models.Task{ID: "tpl", Name: "Homework", Reward: 5}

	_, err := svc.Assign(context.Background(), "tpl", AssignTaskRequest{StudentIDs: []string{"ghost"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.batch)
}

func TestTaskServiceCreateRejectsUnknownCategory(t *testing.T) {
	svc, _, _, _ := newTaskServiceFixture()

	_, err := svc.Create(context.Background(), CreateTaskRequest{Name: "X", Reward: 5, Category: "Chores"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTaskServiceCompleteUnassigned(t *testing.T) {
	svc, repo, _, _ := newTaskServiceFixture()
	repo.tasks["tpl"] = &models.Task{ID: "tpl", Name: "Homework", Reward: 5}

	_, err := svc.Complete(context.Background(), "tpl")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
