package models

import (
	"time"
)

// Challenge is a time-boxed group competition tied to one toolkit.
// It is created by an admin, may have its end date shifted by an update,
// and its completion flag flips exactly once at termination. The partial
// unique index keeps at most one open challenge per toolkit at the
// database level.
type Challenge struct {
	ID                    string    `json:"id" gorm:"primaryKey"`
	ToolkitID             string    `json:"toolkit_id" gorm:"not null;index;index:idx_one_active_challenge,unique,where:is_completed = false"`
	StartDate             time.Time `json:"start_date" gorm:"not null"`
	EndDate               time.Time `json:"end_date" gorm:"not null"`
	TotalDays             int       `json:"total_days" gorm:"default:0"`
	RequiredGoalPoints    int64     `json:"required_goal_points" gorm:"default:0"`
	RequiredWinningPoints int64     `json:"required_winning_points" gorm:"default:0"`
	AwardedGoalPoints     int64     `json:"awarded_goal_points" gorm:"default:0"`
	AwardedWinningPoints  int64     `json:"awarded_winning_points" gorm:"default:0"`
	IsCompleted           bool      `json:"is_completed" gorm:"default:false;index"`
	CoverPhotoURL         string    `json:"cover_photo_url"`

	Timestamps

	// Relationship
	Toolkit Toolkit `json:"toolkit,omitempty" gorm:"foreignKey:ToolkitID"`
}

// UserChallengeStatus is monotonic: IN_PROGRESS → {COMPLETED, WINNER},
// never reversed.
type UserChallengeStatus string

const (
	UserChallengeInProgress UserChallengeStatus = "IN_PROGRESS"
	UserChallengeCompleted  UserChallengeStatus = "COMPLETED"
	UserChallengeWinner     UserChallengeStatus = "WINNER"
)

// UserChallenge is a participant's settled outcome for one challenge.
// The row is created lazily at settlement time and written exactly once
// per (challenge, user) pair.
type UserChallenge struct {
	ID                 string              `json:"id" gorm:"primaryKey"`
	ChallengeID        string              `json:"challenge_id" gorm:"not null;uniqueIndex:idx_user_challenge"`
	UserID             string              `json:"user_id" gorm:"not null;uniqueIndex:idx_user_challenge"`
	Status             UserChallengeStatus `json:"status" gorm:"type:varchar(16);default:'IN_PROGRESS'"`
	GoalBonusPoints    int64               `json:"goal_bonus_points" gorm:"default:0"`
	WinningBonusPoints int64               `json:"winning_bonus_points" gorm:"default:0"`
	RawPointsEarned    int64               `json:"raw_points_earned" gorm:"default:0"`
	TotalRewardPoints  int64               `json:"total_reward_points" gorm:"default:0"`
	IsWinner           bool                `json:"is_winner" gorm:"default:false"`
	IsGoalCompleted    bool                `json:"is_goal_completed" gorm:"default:false"`
	SettledAt          *time.Time          `json:"settled_at,omitempty"`

	Timestamps
}
