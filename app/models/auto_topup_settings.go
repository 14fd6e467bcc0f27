package models

import "time"

// AutoTopupSettings configures threshold-triggered automatic purchases for a
// user. The monitor sweeps enabled rows out-of-band.
type AutoTopupSettings struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Enabled         bool      `gorm:"default:false;index" json:"enabled"`
	ThresholdTokens int64     `gorm:"not null;default:0" json:"threshold_tokens" validate:"gte=0"`
	PackageID       string    `gorm:"type:varchar(50);not null" json:"package_id" validate:"required"`
	PaymentMethodID string    `gorm:"type:varchar(191);not null" json:"-" validate:"required"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
