package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/moolah-app/moolah-api/internal/models"
)

// ErrInsufficientBalance signals that a conditional deduction found less
// balance than the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// StudentRepository manages persistence for student records and the balance
// mutations that must stay in lockstep with the transaction ledger.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(s.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.name, s.balance, s.cow_icon, s.level, s.completed_tasks, s.class_id, s.created_at, s.updated_at
        %s ORDER BY s.name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, name, balance, cow_icon, level, completed_tasks, class_id, created_at, updated_at
        FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByName fetches a student by their unique name.
func (r *StudentRepository) FindByName(ctx context.Context, name string) (*models.Student, error) {
	const query = `SELECT id, name, balance, cow_icon, level, completed_tasks, class_id, created_at, updated_at
        FROM students WHERE name = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, name); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByName checks whether a student name is already taken.
func (r *StudentRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE name = $1 LIMIT 1", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student name: %w", err)
	}
	return true, nil
}

// CreateWithUser inserts the student row and its login credential atomically.
func (r *StudentRepository) CreateWithUser(ctx context.Context, student *models.Student, user *models.User) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	user.CreatedAt = now
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const studentQuery = `INSERT INTO students (id, name, balance, cow_icon, level, completed_tasks, class_id, created_at, updated_at)
        VALUES (:id, :name, :balance, :cow_icon, :level, :completed_tasks, :class_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, studentQuery, student); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create student: %w", err)
	}

	const userQuery = `INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
        VALUES (:id, :username, :password_hash, :role, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create student credential: %w", err)
	}

	return tx.Commit()
}

// DeleteWithUser removes a student, their credential, and detaches any tasks
// still assigned to them, in one transaction.
func (r *StudentRepository) DeleteWithUser(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	var name string
	if err := tx.GetContext(ctx, &name, "SELECT name FROM students WHERE id = $1", id); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE tasks SET assigned_to = NULL WHERE assigned_to = $1", id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("detach tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE student_id = $1", id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete student: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE username = $1 AND role = $2", name, models.RoleStudent); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete student credential: %w", err)
	}

	return tx.Commit()
}

// UpdateIcon sets the student's cosmetic icon.
func (r *StudentRepository) UpdateIcon(ctx context.Context, id, icon string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE students SET cow_icon = $2, updated_at = $3 WHERE id = $1", id, icon, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update icon: %w", err)
	}
	return requireRow(res)
}

// UpdateLevel sets the student's level directly.
func (r *StudentRepository) UpdateLevel(ctx context.Context, id string, level int) error {
	res, err := r.db.ExecContext(ctx, "UPDATE students SET level = $2, updated_at = $3 WHERE id = $1", id, level, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return requireRow(res)
}

// UpdateClass reassigns the student's class; a nil classID detaches them.
func (r *StudentRepository) UpdateClass(ctx context.Context, id string, classID *string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE students SET class_id = $2, updated_at = $3 WHERE id = $1", id, classID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return requireRow(res)
}

// AdjustBalance applies a signed delta and appends the matching ledger entry
// in one transaction. Negative results are permitted here; only fines are
// sufficiency-checked (see Deduct).
func (r *StudentRepository) AdjustBalance(ctx context.Context, id string, delta int, entry *models.Transaction) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var balance int
	err = tx.GetContext(ctx, &balance,
		"UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1 RETURNING balance",
		id, delta, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := insertTransaction(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// Deduct subtracts amount only when the balance covers it, appending the
// ledger entry in the same transaction. ErrInsufficientBalance is returned
// when the conditional update matches no row for an existing student.
func (r *StudentRepository) Deduct(ctx context.Context, id string, amount int, entry *models.Transaction) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	var balance int
	err = tx.GetContext(ctx, &balance,
		"UPDATE students SET balance = balance - $2, updated_at = $3 WHERE id = $1 AND balance >= $2 RETURNING balance",
		id, amount, time.Now().UTC())
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			var exists int
			if getErr := r.db.GetContext(ctx, &exists, "SELECT 1 FROM students WHERE id = $1", id); getErr != nil {
				return 0, getErr
			}
			return 0, ErrInsufficientBalance
		}
		return 0, err
	}

	if err := insertTransaction(ctx, tx, entry); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// BalanceReport aggregates per-student balances with lifetime earned/spent
// totals from the ledger.
func (r *StudentRepository) BalanceReport(ctx context.Context) ([]models.BalanceReportRow, error) {
	const query = `SELECT s.id AS student_id, s.name, s.balance, s.level,
        COALESCE(SUM(t.amount) FILTER (WHERE t.type = 'Earned'), 0) AS earned,
        COALESCE(SUM(t.amount) FILTER (WHERE t.type IN ('Spent', 'Fine')), 0) AS spent
        FROM students s
        LEFT JOIN transactions t ON t.student_id = s.id
        GROUP BY s.id, s.name, s.balance, s.level
        ORDER BY s.name ASC`
	var rows []models.BalanceReportRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("balance report: %w", err)
	}
	return rows, nil
}

func insertTransaction(ctx context.Context, tx *sqlx.Tx, entry *models.Transaction) error {
	if entry == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	const query = `INSERT INTO transactions (id, student_id, type, amount, description, occurred_at)
        VALUES (:id, :student_id, :type, :amount, :description, :occurred_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
