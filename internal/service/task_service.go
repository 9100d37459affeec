package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/repository"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
)

type taskRepository interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.TaskDetail, error)
	FindByID(ctx context.Context, id string) (*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	CreateBatch(ctx context.Context, tasks []models.Task) error
	MarkComplete(ctx context.Context, id string) (*models.Task, error)
	Approve(ctx context.Context, update repository.ApprovalUpdate) error
	Delete(ctx context.Context, id string) error
}

type taskStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type levelConfigReader interface {
	MapByLevel(ctx context.Context) (map[int]models.LevelConfig, error)
}

// CreateTaskRequest holds payload for creating a task template.
type CreateTaskRequest struct {
	Name     string              `json:"name" validate:"required"`
	Reward   int                 `json:"reward" validate:"required,gte=1"`
	Category models.TaskCategory `json:"category" validate:"required"`
}

// AssignTaskRequest lists the students a template is copied to.
type AssignTaskRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
}

// ReviewTaskRequest carries the teacher's approve/reject decision.
type ReviewTaskRequest struct {
	Status  models.TaskStatus `json:"status" validate:"required,oneof=approved rejected"`
	Comment string            `json:"comment"`
}

// TaskService handles the task lifecycle, including the reward/level engine
// that runs on approval.
type TaskService struct {
	repo      taskRepository
	students  taskStudentReader
	levels    levelConfigReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(repo taskRepository, students taskStudentReader, levels levelConfigReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TaskService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{repo: repo, students: students, levels: levels, cache: cache, validator: validate, logger: logger}
}

// List returns tasks, optionally filtered by status or assignee.
func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskDetail, error) {
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tasks")
	}
	return tasks, nil
}

// ListPending returns tasks awaiting teacher review.
func (s *TaskService) ListPending(ctx context.Context) ([]models.TaskDetail, error) {
	return s.List(ctx, models.TaskFilter{Status: models.TaskStatusPending})
}

// Create registers a new unassigned task template.
func (s *TaskService) Create(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown task category")
	}
	task := &models.Task{
		Name:     req.Name,
		Reward:   req.Reward,
		Category: req.Category,
		Status:   models.TaskStatusNan,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create task")
	}
	return task, nil
}

// Assign copies the template task to each listed student, one row apiece.
func (s *TaskService) Assign(ctx context.Context, taskID string, req AssignTaskRequest) ([]models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	template, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}

	copies := make([]models.Task, 0, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if _, err := s.students.FindByID(ctx, studentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", studentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		assignee := studentID
		copies = append(copies, models.Task{
			Name:       template.Name,
			Reward:     template.Reward,
			Category:   template.Category,
			AssignedTo: &assignee,
			Status:     models.TaskStatusNan,
		})
	}

	if err := s.repo.CreateBatch(ctx, copies); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign task")
	}

	s.invalidateDashboards(ctx, req.StudentIDs...)
	return copies, nil
}

// Complete marks an assigned task as done by the student, moving it into the
// pending-review state.
func (s *TaskService) Complete(ctx context.Context, taskID string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task.AssignedTo == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "task is not assigned to a student")
	}

	updated, err := s.repo.MarkComplete(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete task")
	}

	s.invalidateDashboards(ctx, *task.AssignedTo)
	return updated, nil
}

// Review applies the teacher's decision. Rejection only stores the status and
// comment. Approval runs the reward engine and persists the task, student,
// and ledger changes atomically; a decision that races another one returns a
// conflict instead of paying twice.
func (s *TaskService) Review(ctx context.Context, taskID string, req ReviewTaskRequest) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load task")
	}
	if task.AssignedTo == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "task is not assigned to a student")
	}
	if task.Status != models.TaskStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "task is not awaiting review")
	}

	update := repository.ApprovalUpdate{
		TaskID:  taskID,
		Status:  req.Status,
		Comment: req.Comment,
	}

	if req.Status == models.TaskStatusApproved {
		student, err := s.students.FindByID(ctx, *task.AssignedTo)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "assigned student not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		levels, err := s.levels.MapByLevel(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load level configuration")
		}

		outcome, err := computeReward(*student, task.Reward, levels)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "level configuration not found")
		}

		update.Effect = &repository.StudentEffect{
			StudentID:      student.ID,
			BalanceDelta:   outcome.BalanceDelta,
			LevelDelta:     outcome.LevelDelta,
			CompletedTasks: outcome.CompletedTasks,
		}

		if outcome.LeveledUp && outcome.Bonus > 0 {
			update.Ledger = append(update.Ledger, models.Transaction{
				StudentID:   student.ID,
				Type:        models.TransactionEarned,
				Amount:      outcome.Bonus,
				Description: fmt.Sprintf("Level %d completion reward: %s", outcome.NewLevel, outcome.BonusDetail),
			})
		}
		update.Ledger = append(update.Ledger, models.Transaction{
			StudentID:   student.ID,
			Type:        models.TransactionEarned,
			Amount:      task.Reward,
			Description: fmt.Sprintf("Completed task: %s", task.Name),
		})
	}

	if err := s.repo.Approve(ctx, update); err != nil {
		if errors.Is(err, repository.ErrNotPending) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "task is not awaiting review")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assigned student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update task status")
	}

	s.invalidateDashboards(ctx, *task.AssignedTo)

	updated, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload task")
	}
	return updated, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, taskID string) error {
	if err := s.repo.Delete(ctx, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "task not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete task")
	}
	return nil
}

func (s *TaskService) invalidateDashboards(ctx context.Context, studentIDs ...string) {
	if s.cache == nil {
		return
	}
	for _, id := range studentIDs {
		if err := s.cache.Invalidate(ctx, dashboardCacheKey(id)); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.String("student_id", id), zap.Error(err))
		}
	}
}
