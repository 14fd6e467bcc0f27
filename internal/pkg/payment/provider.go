package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/google/uuid"
)

// Provider is the contract a payment-provider adapter must satisfy. The
// reconciler itself is provider-neutral; adapters only translate checkout
// creation, status polling and webhook payloads.
type Provider interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	PaymentStatus(ctx context.Context, externalPaymentID string) (*WebhookEvent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// MockProvider is an in-process provider for tests and local development.
// Checkouts settle only when the test drives them via SetStatus.
type MockProvider struct {
	// SkipSignatureCheck bypasses webhook verification. Only ever enabled
	// in explicit test/mock mode.
	SkipSignatureCheck bool
	WebhookSecret      string

	mu       sync.Mutex
	payments map[string]*WebhookEvent
}

// NewMockProvider creates a mock provider with the given webhook secret.
func NewMockProvider(webhookSecret string) *MockProvider {
	return &MockProvider{
		WebhookSecret: webhookSecret,
		payments:      make(map[string]*WebhookEvent),
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	externalID := "mock_pi_" + uuid.NewString()

	m.mu.Lock()
	m.payments[externalID] = &WebhookEvent{
		ExternalPaymentID: externalID,
		Status:            models.PaymentStatusPending,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
	}
	m.mu.Unlock()

	return &Checkout{
		ExternalPaymentID: externalID,
		ClientSecret:      "mock_secret_" + uuid.NewString(),
		Provider:          m.Name(),
	}, nil
}

func (m *MockProvider) PaymentStatus(_ context.Context, externalPaymentID string) (*WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.payments[externalPaymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *ev
	return &copied, nil
}

// SetStatus moves a mock payment into the given status, as if the provider
// had settled it.
func (m *MockProvider) SetStatus(externalPaymentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev, ok := m.payments[externalPaymentID]; ok {
		ev.Status = status
	}
}

type mockWebhookPayload struct {
	ExternalPaymentID string `json:"external_payment_id"`
	Status            string `json:"status"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	EventType         string `json:"event_type"`
}

func (m *MockProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if !m.SkipSignatureCheck && !VerifyWebhookSignature(payload, signature, m.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	var body mockWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return &WebhookEvent{
		ExternalPaymentID: body.ExternalPaymentID,
		Status:            body.Status,
		AmountCents:       body.AmountCents,
		Currency:          body.Currency,
		EventType:         body.EventType,
		RawPayloadJSON:    string(payload),
	}, nil
}
