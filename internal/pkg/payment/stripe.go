package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/env"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeProvider charges via Stripe PaymentIntents.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProviderFromEnv configures the global stripe client from env.
func NewStripeProviderFromEnv() *StripeProvider {
	stripe.Key = strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", ""))
	return &StripeProvider{
		webhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
	}
	params.Context = ctx
	if req.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(req.PaymentMethodID)
	}
	if req.OffSession {
		// Auto-topup charges run without the user present.
		params.OffSession = stripe.Bool(true)
		params.Confirm = stripe.Bool(true)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.AddMetadata("user_id", strconv.FormatUint(uint64(req.UserID), 10))

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	return &Checkout{
		ExternalPaymentID: pi.ID,
		ClientSecret:      pi.ClientSecret,
		Provider:          p.Name(),
	}, nil
}

func (p *StripeProvider) PaymentStatus(ctx context.Context, externalPaymentID string) (*WebhookEvent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(externalPaymentID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent lookup: %w", err)
	}
	return &WebhookEvent{
		ExternalPaymentID: pi.ID,
		Status:            intentStatusToPaymentStatus(pi.Status),
		AmountCents:       pi.Amount,
		Currency:          string(pi.Currency),
	}, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	return &WebhookEvent{
		ExternalPaymentID: pi.ID,
		Status:            intentStatusToPaymentStatus(pi.Status),
		AmountCents:       pi.Amount,
		Currency:          string(pi.Currency),
		EventType:         string(event.Type),
		RawPayloadJSON:    string(payload),
	}, nil
}

func intentStatusToPaymentStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return models.PaymentStatusFailed
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return models.PaymentStatusProcessing
	default:
		return models.PaymentStatusPending
	}
}
