package service

import (
	"fmt"

	"github.com/moolah-app/moolah-api/internal/models"
)

// RewardOutcome describes every effect of approving one task: the balance
// delta (task reward plus any level bonus), the level transition, and the new
// completed-task counter. It is computed before any write so the whole
// outcome can be persisted in a single transaction.
type RewardOutcome struct {
	BalanceDelta   int
	LevelDelta     int
	CompletedTasks int
	LeveledUp      bool
	NewLevel       int
	Bonus          int
	BonusDetail    string
}

// computeReward resolves the approval of a task worth taskReward for the
// given student against the level table.
//
// The student's current level must be configured; a missing row fails the
// whole approval with no partial effect. Reaching the tasks-required
// threshold advances the level and resets the counter. The new level's
// configured reward is paid as a bonus when present; an unconfigured next
// level still advances but pays nothing, matching how the progression has
// always behaved.
func computeReward(student models.Student, taskReward int, levels map[int]models.LevelConfig) (RewardOutcome, error) {
	current, ok := levels[student.Level]
	if !ok {
		return RewardOutcome{}, fmt.Errorf("no level configuration for level %d", student.Level)
	}

	outcome := RewardOutcome{
		BalanceDelta:   taskReward,
		CompletedTasks: student.CompletedTasks + 1,
		NewLevel:       student.Level,
	}

	if outcome.CompletedTasks >= current.TasksRequired {
		outcome.LeveledUp = true
		outcome.LevelDelta = 1
		outcome.NewLevel = student.Level + 1
		outcome.CompletedTasks = 0

		if next, ok := levels[outcome.NewLevel]; ok {
			outcome.Bonus = next.Reward
			outcome.BalanceDelta += next.Reward
			outcome.BonusDetail = next.Description
		}
	}

	return outcome, nil
}
