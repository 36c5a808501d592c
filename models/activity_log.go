package models

import "time"

// Each toolkit variant stores raw participant progress in its own table.
// The shapes match so the ranking engine can aggregate any of them with the
// same grouped SUM, but the tables stay separate on purpose: they are fed by
// unrelated tracking modules.

// HabitLog — one completed habit check-in (variant HABIT).
type HabitLog struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ToolkitID    string    `json:"toolkit_id" gorm:"not null;index"`
	UserID       string    `json:"user_id" gorm:"not null;index"`
	PointsEarned int64     `json:"points_earned" gorm:"default:0"`
	PerformedAt  time.Time `json:"performed_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// RoutineLog — one finished routine session (variant ROUTINE).
type RoutineLog struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ToolkitID    string    `json:"toolkit_id" gorm:"not null;index"`
	UserID       string    `json:"user_id" gorm:"not null;index"`
	PointsEarned int64     `json:"points_earned" gorm:"default:0"`
	PerformedAt  time.Time `json:"performed_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// SleepLog — one recorded sleep entry (variant SLEEP).
type SleepLog struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	ToolkitID    string    `json:"toolkit_id" gorm:"not null;index"`
	UserID       string    `json:"user_id" gorm:"not null;index"`
	PointsEarned int64     `json:"points_earned" gorm:"default:0"`
	PerformedAt  time.Time `json:"performed_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}
