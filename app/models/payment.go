package models

import "time"

const (
	PaymentTypeCreditPurchase = "credit_purchase"
	PaymentTypeSubscription   = "subscription"
	PaymentTypeTip            = "tip"
	PaymentTypeMessageUnlock  = "message_unlock"
)

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
)

// Payment tracks one external charge from initiation to settlement. Status is
// append-only: once completed it never regresses, which is what makes the
// reconciler's duplicate handling a cheap no-op.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	AmountCents       int64      `gorm:"not null" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Tokens            int64      `gorm:"not null;default:0" json:"tokens"`
	Type              string     `gorm:"type:varchar(32);not null;index" json:"type"`
	Status            string     `gorm:"type:varchar(32);not null;default:'pending';index:idx_payments_user_status,priority:2;index" json:"status"`
	ExternalPaymentID string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"external_payment_id"`
	Provider          string     `gorm:"type:varchar(20);not null;default:'stripe'" json:"provider"`
	PackageID         string     `gorm:"type:varchar(50)" json:"package_id,omitempty"`
	SubscriptionID    *uint      `gorm:"index" json:"subscription_id,omitempty"`
	PaymentMethodID   string     `gorm:"type:varchar(191)" json:"-"`
	AutoTopup         bool       `gorm:"default:false;index" json:"auto_topup"`
	CompletedAt       *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	RawPayloadJSON    string     `gorm:"type:longtext" json:"-"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index:idx_payments_user_status,priority:1" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsOpen reports whether the payment is still waiting for a terminal status.
func (p *Payment) IsOpen() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusProcessing
}

// ValidPaymentStatus reports whether s is one of the known payment states.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	default:
		return false
	}
}
