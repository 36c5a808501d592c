package services

import (
	"testing"
	"time"

	"wellness-platform/models"

	"github.com/stretchr/testify/assert"
)

func snapshotOf(entries ...RankingEntry) *RankingSnapshot {
	return &RankingSnapshot{
		ChallengeID: "ch-1",
		AsOf:        time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Entries:     entries,
	}
}

func TestDetermineOutcomeArithmetic(t *testing.T) {
	// 50 raw, collective 120 meets the goal of 40, but 70 holds the top spot:
	// 50 + 20 goal bonus + 0 win bonus = 70.
	snapshot := snapshotOf(
		RankingEntry{UserID: "u2", PointsEarned: 70, Rank: 1},
		RankingEntry{UserID: "u1", PointsEarned: 50, Rank: 2},
	)
	cfg := RewardConfig{
		RequiredGoalPoints:   40,
		AwardedGoalPoints:    20,
		AwardedWinningPoints: 100,
	}

	out := DetermineOutcome("u1", snapshot, cfg)
	assert.Equal(t, models.UserChallengeCompleted, out.Status)
	assert.Equal(t, 2, out.Rank)
	assert.Equal(t, int64(50), out.RawPointsEarned)
	assert.Equal(t, int64(20), out.GoalBonusPoints)
	assert.Zero(t, out.WinningBonusPoints)
	assert.Equal(t, int64(70), out.TotalRewardPoints)
	assert.True(t, out.IsGoalCompleted)
	assert.False(t, out.IsWinner)
}

func TestDetermineOutcomeTopScorerWins(t *testing.T) {
	snapshot := snapshotOf(
		RankingEntry{UserID: "u2", PointsEarned: 70, Rank: 1},
		RankingEntry{UserID: "u1", PointsEarned: 50, Rank: 2},
	)
	cfg := RewardConfig{
		RequiredGoalPoints:   40,
		AwardedGoalPoints:    20,
		AwardedWinningPoints: 100,
	}

	out := DetermineOutcome("u2", snapshot, cfg)
	assert.Equal(t, models.UserChallengeWinner, out.Status)
	assert.True(t, out.IsWinner)
	assert.Equal(t, int64(100), out.WinningBonusPoints)
	assert.Equal(t, int64(70+20+100), out.TotalRewardPoints)
}

func TestDetermineOutcomeTiedTopScorersBothWin(t *testing.T) {
	snapshot := snapshotOf(
		RankingEntry{UserID: "a", PointsEarned: 100, Rank: 1},
		RankingEntry{UserID: "b", PointsEarned: 100, Rank: 2},
		RankingEntry{UserID: "c", PointsEarned: 50, Rank: 3},
	)
	cfg := RewardConfig{AwardedWinningPoints: 30}

	for _, userID := range []string{"a", "b"} {
		out := DetermineOutcome(userID, snapshot, cfg)
		assert.True(t, out.IsWinner, "tied top scorer %s must win", userID)
		assert.Equal(t, models.UserChallengeWinner, out.Status)
		assert.Equal(t, int64(30), out.WinningBonusPoints)
	}
	loser := DetermineOutcome("c", snapshot, cfg)
	assert.False(t, loser.IsWinner)
	assert.Equal(t, models.UserChallengeCompleted, loser.Status)
}

func TestDetermineOutcomeGoalThresholdBoundary(t *testing.T) {
	snapshot := snapshotOf(
		RankingEntry{UserID: "u1", PointsEarned: 25, Rank: 1},
		RankingEntry{UserID: "u2", PointsEarned: 15, Rank: 2},
	)

	met := DetermineOutcome("u1", snapshot, RewardConfig{RequiredGoalPoints: 40, AwardedGoalPoints: 10})
	assert.True(t, met.IsGoalCompleted, "exact threshold counts as met")
	assert.Equal(t, int64(10), met.GoalBonusPoints)

	missed := DetermineOutcome("u1", snapshot, RewardConfig{RequiredGoalPoints: 41, AwardedGoalPoints: 10})
	assert.False(t, missed.IsGoalCompleted)
	assert.Zero(t, missed.GoalBonusPoints)
}

func TestDetermineOutcomeEmptySnapshot(t *testing.T) {
	// Nobody logged anything: the user's 0 matches the snapshot max of 0, so
	// they win by the >= comparison; the collective goal stays unmet as long
	// as it is positive.
	out := DetermineOutcome("u1", snapshotOf(), RewardConfig{
		RequiredGoalPoints:   40,
		AwardedGoalPoints:    20,
		AwardedWinningPoints: 100,
	})
	assert.True(t, out.IsWinner)
	assert.False(t, out.IsGoalCompleted)
	assert.Zero(t, out.RawPointsEarned)
	assert.Zero(t, out.Rank)
	assert.Equal(t, int64(100), out.TotalRewardPoints)
}

func TestDetermineOutcomeUserAbsentFromSnapshot(t *testing.T) {
	snapshot := snapshotOf(RankingEntry{UserID: "u2", PointsEarned: 60, Rank: 1})
	out := DetermineOutcome("ghost", snapshot, RewardConfig{RequiredGoalPoints: 50, AwardedGoalPoints: 20})
	assert.False(t, out.IsWinner)
	assert.Zero(t, out.RawPointsEarned)
	assert.Zero(t, out.Rank)
	assert.True(t, out.IsGoalCompleted, "the goal is collective, not personal")
	assert.Equal(t, int64(20), out.TotalRewardPoints)
}
