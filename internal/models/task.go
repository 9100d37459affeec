package models

import "time"

// TaskStatus tracks a task through the review workflow.
// Fresh tasks start at "nan" (the source system's sentinel for unassigned).
type TaskStatus string

const (
	TaskStatusNan       TaskStatus = "nan"
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusApproved  TaskStatus = "approved"
	TaskStatusRejected  TaskStatus = "rejected"
)

// TaskCategory groups tasks for display.
type TaskCategory string

const (
	TaskCategoryAcademic  TaskCategory = "Academic"
	TaskCategoryBehavior  TaskCategory = "Behavior"
	TaskCategoryCommunity TaskCategory = "Community"
)

// Valid reports whether the category is one of the known values.
func (c TaskCategory) Valid() bool {
	switch c {
	case TaskCategoryAcademic, TaskCategoryBehavior, TaskCategoryCommunity:
		return true
	}
	return false
}

// Task represents a rewarded activity, one row per assigned student.
type Task struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Reward         int          `db:"reward" json:"reward"`
	Category       TaskCategory `db:"category" json:"category"`
	AssignedTo     *string      `db:"assigned_to" json:"assigned_to,omitempty"`
	Completed      bool         `db:"completed" json:"completed"`
	Status         TaskStatus   `db:"status" json:"status"`
	TeacherComment string       `db:"teacher_comment" json:"teacher_comment"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// TaskDetail joins the assigned student's name for list views.
type TaskDetail struct {
	Task
	StudentName *string `db:"student_name" json:"student_name,omitempty"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status     TaskStatus
	AssignedTo string
}
