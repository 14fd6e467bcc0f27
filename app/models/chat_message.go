package models

import (
	"strings"
	"time"
)

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// lockedPreviewLength is how much of a locked message is shown as teaser.
const lockedPreviewLength = 48

// ChatMessage is a single turn in a chat. Assistant messages may be created
// locked; IsLocked only ever transitions true -> false via a paid unlock.
type ChatMessage struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ChatID      uint       `gorm:"not null;index" json:"chat_id"`
	Role        string     `gorm:"type:varchar(20);not null" json:"role"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	IsLocked    bool       `gorm:"not null;default:false;index" json:"is_locked"`
	UnlockPrice int64      `gorm:"not null;default:0" json:"unlock_price"`
	UnlockedAt  *time.Time `gorm:"type:timestamp;default:null" json:"unlocked_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Preview returns the redacted teaser for a locked message.
func (m *ChatMessage) Preview() string {
	content := strings.TrimSpace(m.Content)
	if len(content) <= lockedPreviewLength {
		return content
	}
	return content[:lockedPreviewLength] + "..."
}
