package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// ErrNotPending signals that a review decision raced another one: the task
// left the pending state before this update could claim it.
var ErrNotPending = errors.New("task is not awaiting review")

// StudentEffect captures how an approval changes the assigned student.
// Balance and level are applied as relative increments so concurrent
// approvals of different tasks cannot lose updates; the completed-task
// counter is absolute because a level-up resets it to zero.
type StudentEffect struct {
	StudentID      string
	BalanceDelta   int
	LevelDelta     int
	CompletedTasks int
}

// ApprovalUpdate is the full persistence payload for one review decision.
type ApprovalUpdate struct {
	TaskID  string
	Status  models.TaskStatus
	Comment string
	Effect  *StudentEffect
	Ledger  []models.Transaction
}

// TaskRepository manages task persistence, including the transactional
// approval flow.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository constructs a TaskRepository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// List returns tasks with the assigned student's name joined in.
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.TaskDetail, error) {
	query := `SELECT t.id, t.name, t.reward, t.category, t.assigned_to, t.completed, t.status, t.teacher_comment,
        t.created_at, t.updated_at, s.name AS student_name
        FROM tasks t
        LEFT JOIN students s ON s.id = t.assigned_to
        WHERE 1=1`
	var args []interface{}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND t.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		query += fmt.Sprintf(" AND t.assigned_to = $%d", len(args)+1)
		args = append(args, filter.AssignedTo)
	}
	query += " ORDER BY t.created_at DESC"

	var tasks []models.TaskDetail
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindByID fetches a single task.
func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	const query = `SELECT id, name, reward, category, assigned_to, completed, status, teacher_comment, created_at, updated_at
        FROM tasks WHERE id = $1`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id); err != nil {
		return nil, err
	}
	return &task, nil
}

// Create inserts a new task template.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	prepareTask(task)
	const query = `INSERT INTO tasks (id, name, reward, category, assigned_to, completed, status, teacher_comment, created_at, updated_at)
        VALUES (:id, :name, :reward, :category, :assigned_to, :completed, :status, :teacher_comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateBatch inserts one task copy per assigned student atomically, so a
// multi-student assignment either fully lands or not at all.
func (r *TaskRepository) CreateBatch(ctx context.Context, tasks []models.Task) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO tasks (id, name, reward, category, assigned_to, completed, status, teacher_comment, created_at, updated_at)
        VALUES (:id, :name, :reward, :category, :assigned_to, :completed, :status, :teacher_comment, :created_at, :updated_at)`
	for i := range tasks {
		prepareTask(&tasks[i])
		if _, err := tx.NamedExecContext(ctx, query, &tasks[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("create assigned task: %w", err)
		}
	}
	return tx.Commit()
}

// MarkComplete flips a task into the pending-review state.
func (r *TaskRepository) MarkComplete(ctx context.Context, id string) (*models.Task, error) {
	const query = `UPDATE tasks SET completed = true, status = $2, updated_at = $3 WHERE id = $1
        RETURNING id, name, reward, category, assigned_to, completed, status, teacher_comment, created_at, updated_at`
	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, id, models.TaskStatusPending, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &task, nil
}

// Approve applies one review decision in a single transaction. The status
// update is conditional on the task still being pending, which makes the
// whole operation idempotent under races: the loser matches zero rows and
// gets ErrNotPending, and the student mutation plus ledger entries roll back
// with it.
func (r *TaskRepository) Approve(ctx context.Context, update ApprovalUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status = $2, teacher_comment = $3, updated_at = $4 WHERE id = $1 AND status = $5",
		update.TaskID, update.Status, update.Comment, time.Now().UTC(), models.TaskStatusPending)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrNotPending
	}

	if effect := update.Effect; effect != nil {
		res, err := tx.ExecContext(ctx,
			"UPDATE students SET balance = balance + $2, level = level + $3, completed_tasks = $4, updated_at = $5 WHERE id = $1",
			effect.StudentID, effect.BalanceDelta, effect.LevelDelta, effect.CompletedTasks, time.Now().UTC())
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply reward: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if affected == 0 {
			_ = tx.Rollback()
			return sql.ErrNoRows
		}
	}

	for i := range update.Ledger {
		if err := insertTransaction(ctx, tx, &update.Ledger[i]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a task.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res)
}

func prepareTask(task *models.Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusNan
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
}
