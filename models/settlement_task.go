package models

import "time"

type SettlementTaskStatus string

const (
	SettlementPending    SettlementTaskStatus = "pending"
	SettlementProcessing SettlementTaskStatus = "processing"
	SettlementDone       SettlementTaskStatus = "done"
	SettlementFailed     SettlementTaskStatus = "failed"
)

// SettlementTask is one queued asynchronous settlement request. Workers claim
// tasks with a conditional pending→processing update, so two workers can
// never process the same row. Failed tasks keep their last error for
// operator visibility; re-enqueueing is an operational action, not an
// internal retry loop.
type SettlementTask struct {
	ID          string               `json:"id" gorm:"primaryKey"`
	ChallengeID string               `json:"challenge_id" gorm:"not null;uniqueIndex:idx_settlement_task"`
	UserID      string               `json:"user_id" gorm:"not null;uniqueIndex:idx_settlement_task"`
	Status      SettlementTaskStatus `json:"status" gorm:"type:varchar(16);default:'pending';index"`
	Attempts    int                  `json:"attempts" gorm:"default:0"`
	LastError   string               `json:"last_error,omitempty" gorm:"type:text"`
	ProcessedAt *time.Time           `json:"processed_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time            `json:"updated_at" gorm:"autoUpdateTime"`
}
