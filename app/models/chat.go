package models

import (
	"time"

	"gorm.io/gorm"
)

type Chat struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	PersonaID uint           `gorm:"not null;index" json:"persona_id"`
	Title     string         `gorm:"type:varchar(200)" json:"title"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Persona  Persona       `gorm:"foreignKey:PersonaID" json:"persona,omitempty"`
	Messages []ChatMessage `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
}
