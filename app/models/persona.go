package models

import (
	"time"

	"gorm.io/gorm"
)

// Persona is a chat character users talk to. Lock economics live here: each
// assistant message rolls against LockProbability and, when locked, costs
// UnlockPrice tokens to reveal.
type Persona struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=1,max=150"`
	Greeting        string         `gorm:"type:text" json:"greeting"`
	LockProbability float64        `gorm:"not null;default:0" json:"lock_probability" validate:"gte=0,lte=1"`
	UnlockPrice     int64          `gorm:"not null;default:0" json:"unlock_price" validate:"gte=0"`
	IsExclusive     bool           `gorm:"default:false;index" json:"is_exclusive"`
	Status          string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}
