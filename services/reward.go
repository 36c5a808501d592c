package services

import (
	"wellness-platform/models"
)

// RewardConfig is a challenge's reward-point configuration, detached from the
// persisted row so outcome computation stays free of I/O.
type RewardConfig struct {
	RequiredGoalPoints    int64
	RequiredWinningPoints int64
	AwardedGoalPoints     int64
	AwardedWinningPoints  int64
}

func RewardConfigFromChallenge(ch *models.Challenge) RewardConfig {
	return RewardConfig{
		RequiredGoalPoints:    ch.RequiredGoalPoints,
		RequiredWinningPoints: ch.RequiredWinningPoints,
		AwardedGoalPoints:     ch.AwardedGoalPoints,
		AwardedWinningPoints:  ch.AwardedWinningPoints,
	}
}

// Outcome is one participant's final challenge result.
type Outcome struct {
	UserID             string                     `json:"user_id"`
	Status             models.UserChallengeStatus `json:"status"`
	Rank               int                        `json:"rank"` // 0 when the user never scored
	RawPointsEarned    int64                      `json:"raw_points_earned"`
	GoalBonusPoints    int64                      `json:"goal_bonus_points"`
	WinningBonusPoints int64                      `json:"winning_bonus_points"`
	TotalRewardPoints  int64                      `json:"total_reward_points"`
	IsWinner           bool                       `json:"is_winner"`
	IsGoalCompleted    bool                       `json:"is_goal_completed"`
}

// DetermineOutcome turns a ranking snapshot and a reward configuration into
// one participant's outcome. Deterministic, no side effects.
//
// The goal is collective: the summed points of every participant must reach
// the goal threshold. Winning compares the user against the snapshot maximum
// with >=, so every participant tied at the top wins.
func DetermineOutcome(userID string, snapshot *RankingSnapshot, cfg RewardConfig) Outcome {
	var totalPoints, maxPoints, userPoints int64
	rank := 0
	for _, entry := range snapshot.Entries {
		totalPoints += entry.PointsEarned
		if entry.PointsEarned > maxPoints {
			maxPoints = entry.PointsEarned
		}
		if entry.UserID == userID {
			userPoints = entry.PointsEarned
			rank = entry.Rank
		}
	}

	isGoalCompleted := totalPoints >= cfg.RequiredGoalPoints
	isWinner := userPoints >= maxPoints

	outcome := Outcome{
		UserID:          userID,
		Status:          models.UserChallengeCompleted,
		Rank:            rank,
		RawPointsEarned: userPoints,
		IsWinner:        isWinner,
		IsGoalCompleted: isGoalCompleted,
	}
	if isWinner {
		outcome.Status = models.UserChallengeWinner
		outcome.WinningBonusPoints = cfg.AwardedWinningPoints
	}
	if isGoalCompleted {
		outcome.GoalBonusPoints = cfg.AwardedGoalPoints
	}
	outcome.TotalRewardPoints = outcome.RawPointsEarned + outcome.GoalBonusPoints + outcome.WinningBonusPoints
	return outcome
}
