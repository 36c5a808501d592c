package models

import (
	"time"

	"gorm.io/gorm"
)

// ToolkitVariant selects the backing table used to aggregate a participant's
// points. The set is closed: the ranking engine rejects anything else.
type ToolkitVariant string

const (
	ToolkitVariantHabit   ToolkitVariant = "HABIT"
	ToolkitVariantRoutine ToolkitVariant = "ROUTINE"
	ToolkitVariantSleep   ToolkitVariant = "SLEEP"
)

// Toolkit is a configurable wellness activity module. A challenge is always
// tied to exactly one toolkit.
type Toolkit struct {
	ID       string         `json:"id" gorm:"primaryKey"`
	Title    string         `json:"title" gorm:"not null"`
	Slug     string         `json:"slug" gorm:"uniqueIndex;not null"`
	Variant  ToolkitVariant `json:"variant" gorm:"type:varchar(16);not null"`
	IsActive bool           `json:"is_active" gorm:"default:true"`

	Timestamps
}

// ToolkitSchedule is a recurring activity reminder tied to a toolkit.
// All schedules of a toolkit are disabled when its challenge ends.
type ToolkitSchedule struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ToolkitID string `json:"toolkit_id" gorm:"not null;index"`
	UserID    string `json:"user_id" gorm:"not null;index"`
	Frequency string `json:"frequency" gorm:"type:varchar(32)"` // e.g., "daily", "weekdays"
	IsActive  bool   `json:"is_active" gorm:"default:true"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
