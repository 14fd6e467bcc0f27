package payment

import "time"

// CheckoutRequest is what the service asks a provider to charge.
type CheckoutRequest struct {
	UserID          uint
	AmountCents     int64
	Currency        string
	PaymentMethodID string
	Description     string
	OffSession      bool
}

// Checkout is the provider-issued data the caller needs to finish payment.
type Checkout struct {
	ExternalPaymentID string `json:"external_payment_id"`
	ClientSecret      string `json:"client_secret,omitempty"`
	CheckoutURL       string `json:"checkout_url,omitempty"`
	Provider          string `json:"provider"`
}

// WebhookEvent is the provider-agnostic shape of a payment status event
// delivered on the push path.
type WebhookEvent struct {
	ExternalPaymentID string
	Status            string
	AmountCents       int64
	Currency          string
	EventType         string
	RawPayloadJSON    string
}

// PurchaseInput describes a token purchase to initiate. Exactly one of
// PackageID or CustomAmount must be set.
type PurchaseInput struct {
	UserID          uint
	PackageID       string
	CustomAmount    int64
	PaymentMethodID string
	AutoTopup       bool
}

// ReconcileResult reports what a reconciliation did.
type ReconcileResult struct {
	PaymentID         uint       `json:"payment_id"`
	ExternalPaymentID string     `json:"external_payment_id"`
	Status            string     `json:"status"`
	Applied           bool       `json:"applied"`
	TokensCredited    int64      `json:"tokens_credited"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}
