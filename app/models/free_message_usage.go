package models

import "time"

// FreeMessageUsage counts free-tier messages consumed by a user. Whether the
// count resets (rolling window) or not (lifetime cap) is a policy decision in
// QuotaSettings, not hardcoded here.
type FreeMessageUsage struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	UsedCount       int       `gorm:"not null;default:0" json:"used_count"`
	WindowStartedAt time.Time `gorm:"not null" json:"window_started_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
