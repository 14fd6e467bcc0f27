package models

import "time"

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusPending   = "pending"
)

// Subscription records a purchased tier period. Rows are historical and are
// never physically deleted; cancel/renew only mutate status fields.
type Subscription struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	UserID             uint       `gorm:"not null;index" json:"user_id"`
	Tier               string     `gorm:"type:varchar(50);not null;index" json:"tier"`
	PriceCents         int64      `gorm:"not null;default:0" json:"price_cents"`
	Status             string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	StartDate          *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	EndDate            *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	AutoRenew          bool       `gorm:"default:false" json:"auto_renew"`
	DurationDays       int        `gorm:"not null;default:30" json:"duration_days"`
	BonusTokensGranted int64      `gorm:"not null;default:0" json:"bonus_tokens_granted"`
	DiscountMultiplier float64    `gorm:"not null;default:1" json:"discount_multiplier"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsActive reports whether the subscription entitles the user right now.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate != nil && s.EndDate.After(now)
}
