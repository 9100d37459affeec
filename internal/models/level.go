package models

// LevelConfig defines, per level, how many approved tasks unlock the next
// level and what bonus is paid on advancing. Every level a student can reach
// must have a row; the reward engine treats a missing current-level row as a
// hard failure.
type LevelConfig struct {
	ID            string `db:"id" json:"id"`
	Level         int    `db:"level" json:"level"`
	TasksRequired int    `db:"tasks_required" json:"tasks_required"`
	Reward        int    `db:"reward" json:"reward"`
	Description   string `db:"description" json:"description"`
}
