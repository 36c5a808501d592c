package services

import (
	"context"
	"log"
	"time"
)

// Lifecycle event names. The version suffix belongs to the name so consumers
// can subscribe to a payload shape, not just a topic.
const (
	EventChallengeEnded         = "challenge.ended.v1"
	EventChallengeWon           = "challenge.won.v1"
	EventChallengeGoalCompleted = "challenge.goal_completed.v1"
)

// EventPublisher decouples reward computation from its consumers
// (achievement and gamification pipelines). Delivery is fire-and-forget,
// at-least-once; consumers must tolerate duplicates.
type EventPublisher interface {
	Publish(ctx context.Context, name string, payload interface{}) error
}

type ChallengeEndedPayload struct {
	SchemaVersion int       `json:"schema_version"`
	ChallengeID   string    `json:"challenge_id"`
	ToolkitID     string    `json:"toolkit_id"`
	EndedAt       time.Time `json:"ended_at"`
}

type ChallengeWonPayload struct {
	SchemaVersion      int    `json:"schema_version"`
	ChallengeID        string `json:"challenge_id"`
	UserID             string `json:"user_id"`
	Rank               int    `json:"rank"`
	RawPointsEarned    int64  `json:"raw_points_earned"`
	WinningBonusPoints int64  `json:"winning_bonus_points"`
	TotalRewardPoints  int64  `json:"total_reward_points"`
}

type ChallengeGoalCompletedPayload struct {
	SchemaVersion     int    `json:"schema_version"`
	ChallengeID       string `json:"challenge_id"`
	UserID            string `json:"user_id"`
	GoalBonusPoints   int64  `json:"goal_bonus_points"`
	TotalRewardPoints int64  `json:"total_reward_points"`
}

// LogPublisher writes events to the process log. Useful as a fallback when
// no downstream consumer is wired.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, name string, payload interface{}) error {
	log.Printf("📣 [EVENT] %s %+v", name, payload)
	return nil
}
