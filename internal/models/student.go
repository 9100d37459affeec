package models

import "time"

// Student represents a learner participating in the classroom economy.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Balance        int       `db:"balance" json:"balance"`
	CowIcon        *string   `db:"cow_icon" json:"cow_icon,omitempty"`
	Level          int       `db:"level" json:"level"`
	CompletedTasks int       `db:"completed_tasks" json:"completed_tasks"`
	ClassID        *string   `db:"class_id" json:"class_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	ClassID  string
	Page     int
	PageSize int
}

// StudentDashboard aggregates everything a student's home page needs.
type StudentDashboard struct {
	Balance      int               `json:"balance"`
	CowIcon      *string           `json:"cow_icon,omitempty"`
	Level        int               `json:"level"`
	Tasks        []TaskDetail      `json:"tasks"`
	Transactions []Transaction     `json:"transactions"`
	Marketplace  []MarketplaceItem `json:"marketplace_items"`
}

// BalanceReportRow is a single line of the teacher's balance report.
type BalanceReportRow struct {
	StudentID string `db:"student_id" json:"student_id"`
	Name      string `db:"name" json:"name"`
	Balance   int    `db:"balance" json:"balance"`
	Level     int    `db:"level" json:"level"`
	Earned    int    `db:"earned" json:"earned"`
	Spent     int    `db:"spent" json:"spent"`
}
