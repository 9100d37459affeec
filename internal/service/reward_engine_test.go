package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolah-app/moolah-api/internal/models"
)

func levelTable() map[int]models.LevelConfig {
	return map[int]models.LevelConfig{
		1: {Level: 1, TasksRequired: 3, Reward: 0},
		2: {Level: 2, TasksRequired: 5, Reward: 20, Description: "Bronze badge"},
	}
}

func TestComputeRewardBelowThreshold(t *testing.T) {
	student := models.Student{Level: 1, CompletedTasks: 0, Balance: 100}

	outcome, err := computeReward(student, 10, levelTable())
	require.NoError(t, err)

	assert.Equal(t, 10, outcome.BalanceDelta)
	assert.Equal(t, 0, outcome.LevelDelta)
	assert.Equal(t, 1, outcome.CompletedTasks)
	assert.False(t, outcome.LeveledUp)
	assert.Equal(t, 0, outcome.Bonus)
}

func TestComputeRewardLevelUpWithBonus(t *testing.T) {
	// Student at level 1 with 2/3 tasks done: this approval crosses the
	// threshold, advances to level 2, and pays the level 2 reward on top.
	student := models.Student{Level: 1, CompletedTasks: 2, Balance: 100}

	outcome, err := computeReward(student, 10, levelTable())
	require.NoError(t, err)

	assert.True(t, outcome.LeveledUp)
	assert.Equal(t, 1, outcome.LevelDelta)
	assert.Equal(t, 2, outcome.NewLevel)
	assert.Equal(t, 0, outcome.CompletedTasks)
	assert.Equal(t, 20, outcome.Bonus)
	assert.Equal(t, 30, outcome.BalanceDelta)
	assert.Equal(t, "Bronze badge", outcome.BonusDetail)
	assert.Equal(t, 130, student.Balance+outcome.BalanceDelta)
}

func TestComputeRewardLevelUpWithoutNextConfig(t *testing.T) {
	levels := map[int]models.LevelConfig{
		3: {Level: 3, TasksRequired: 2},
	}
	student := models.Student{Level: 3, CompletedTasks: 1}

	outcome, err := computeReward(student, 15, levels)
	require.NoError(t, err)

	assert.True(t, outcome.LeveledUp)
	assert.Equal(t, 4, outcome.NewLevel)
	assert.Equal(t, 0, outcome.Bonus)
	assert.Equal(t, 15, outcome.BalanceDelta)
	assert.Equal(t, 0, outcome.CompletedTasks)
}

func TestComputeRewardMissingCurrentLevelConfig(t *testing.T) {
	student := models.Student{Level: 7, CompletedTasks: 1}

	_, err := computeReward(student, 10, levelTable())
	require.Error(t, err)
}

func TestComputeRewardCounterPastThreshold(t *testing.T) {
	// A counter already at or above the threshold still levels up exactly once.
	student := models.Student{Level: 1, CompletedTasks: 5}

	outcome, err := computeReward(student, 10, levelTable())
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.LevelDelta)
	assert.Equal(t, 0, outcome.CompletedTasks)
}
