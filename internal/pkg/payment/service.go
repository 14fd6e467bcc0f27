package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidStatus        = errors.New("invalid payment status")
	ErrInvalidPurchase      = errors.New("invalid purchase request")
	ErrNotSubscriptionOwner = errors.New("subscription belongs to another user")
)

const defaultCurrency = "usd"

// Service is the payment reconciler: it initiates purchases and folds
// external payment events into the ledger exactly once. Both delivery paths
// (push webhook and pull poll) converge on Reconcile.
type Service struct {
	repo     Repository
	cat      *catalog.Catalog
	provider Provider
}

// NewService creates a payment service from injected collaborators.
func NewService(repo Repository, cat *catalog.Catalog, provider Provider) *Service {
	return &Service{repo: repo, cat: cat, provider: provider}
}

// NewServiceFromDB creates a payment service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cat *catalog.Catalog, provider Provider) *Service {
	return NewService(NewRepository(db), cat, provider)
}

// Provider exposes the configured provider adapter.
func (s *Service) Provider() Provider {
	return s.provider
}

// InitiatePurchase prices a token purchase (fixed package or custom amount),
// opens a provider checkout and records the pending payment.
func (s *Service) InitiatePurchase(ctx context.Context, in PurchaseInput) (*models.Payment, *Checkout, error) {
	if in.UserID == 0 {
		return nil, nil, ErrInvalidPurchase
	}
	if (in.PackageID == "") == (in.CustomAmount == 0) {
		return nil, nil, fmt.Errorf("%w: exactly one of package_id or custom_amount is required", ErrInvalidPurchase)
	}

	var (
		priceCents int64
		tokens     int64
		desc       string
	)
	if in.PackageID != "" {
		pkg, err := s.cat.Package(in.PackageID)
		if err != nil {
			return nil, nil, err
		}
		priceCents = pkg.PriceCents
		tokens = pkg.BaseTokens + pkg.BonusTokens
		desc = fmt.Sprintf("Token package %s", pkg.Name)
	} else {
		quote, err := s.cat.PriceForCustomAmount(in.CustomAmount)
		if err != nil {
			return nil, nil, err
		}
		priceCents = quote.PriceCents
		tokens = quote.TotalTokens
		desc = fmt.Sprintf("Custom purchase of %d tokens", quote.Tokens)
	}

	checkout, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		UserID:          in.UserID,
		AmountCents:     priceCents,
		Currency:        defaultCurrency,
		PaymentMethodID: in.PaymentMethodID,
		Description:     desc,
		OffSession:      in.AutoTopup,
	})
	if err != nil {
		return nil, nil, err
	}

	p := &models.Payment{
		UserID:            in.UserID,
		AmountCents:       priceCents,
		Currency:          defaultCurrency,
		Tokens:            tokens,
		Type:              models.PaymentTypeCreditPurchase,
		Status:            models.PaymentStatusPending,
		ExternalPaymentID: checkout.ExternalPaymentID,
		Provider:          s.provider.Name(),
		PackageID:         in.PackageID,
		PaymentMethodID:   in.PaymentMethodID,
		AutoTopup:         in.AutoTopup,
	}
	if err := s.repo.CreatePayment(p); err != nil {
		return nil, nil, err
	}

	log.Infof("[Payment] purchase initiated user=%d external=%s tokens=%d price=%d",
		in.UserID, p.ExternalPaymentID, tokens, priceCents)
	return p, checkout, nil
}

// InitiateSubscription opens a checkout for a tier and records both the
// pending subscription and its payment. Bonus tokens are granted on
// activation, keyed by the subscription id.
func (s *Service) InitiateSubscription(ctx context.Context, userID uint, tierID, paymentMethodID string) (*models.Payment, *models.Subscription, *Checkout, error) {
	if userID == 0 {
		return nil, nil, nil, ErrInvalidPurchase
	}
	tier, err := s.cat.Tier(tierID)
	if err != nil {
		return nil, nil, nil, err
	}
	if tier.PriceCents == 0 {
		return nil, nil, nil, fmt.Errorf("%w: tier %s is not purchasable", ErrInvalidPurchase, tierID)
	}

	sub := &models.Subscription{
		UserID:             userID,
		Tier:               tier.ID,
		PriceCents:         tier.PriceCents,
		Status:             models.SubscriptionStatusPending,
		AutoRenew:          true,
		DurationDays:       tier.DurationDays,
		BonusTokensGranted: tier.BonusTokensOnActivate,
		DiscountMultiplier: tier.TokenDiscountMultiplier,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return nil, nil, nil, err
	}

	checkout, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		UserID:          userID,
		AmountCents:     tier.PriceCents,
		Currency:        defaultCurrency,
		PaymentMethodID: paymentMethodID,
		Description:     fmt.Sprintf("Subscription %s", tier.Name),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	p := &models.Payment{
		UserID:            userID,
		AmountCents:       tier.PriceCents,
		Currency:          defaultCurrency,
		Tokens:            tier.BonusTokensOnActivate,
		Type:              models.PaymentTypeSubscription,
		Status:            models.PaymentStatusPending,
		ExternalPaymentID: checkout.ExternalPaymentID,
		Provider:          s.provider.Name(),
		SubscriptionID:    &sub.ID,
		PaymentMethodID:   paymentMethodID,
	}
	if err := s.repo.CreatePayment(p); err != nil {
		return nil, nil, nil, err
	}

	log.Infof("[Payment] subscription initiated user=%d tier=%s external=%s", userID, tier.ID, p.ExternalPaymentID)
	return p, sub, checkout, nil
}

// Reconcile folds one external payment status report into local state. It is
// idempotent: reconciling an already-completed payment is a successful no-op,
// which is the defense against double-crediting when webhook and poll both
// report the same success.
func (s *Service) Reconcile(ctx context.Context, externalPaymentID, newStatus string, amountCents int64, currency string) (*ReconcileResult, error) {
	_ = ctx
	if !models.ValidPaymentStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	p, err := s.repo.GetPaymentByExternalID(externalPaymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PaymentStatusCompleted {
		return &ReconcileResult{
			PaymentID:         p.ID,
			ExternalPaymentID: p.ExternalPaymentID,
			Status:            p.Status,
			Applied:           false,
			CompletedAt:       p.CompletedAt,
		}, nil
	}

	if amountCents > 0 && amountCents != p.AmountCents {
		log.Warnf("[Payment] amount mismatch external=%s reported=%d stored=%d",
			externalPaymentID, amountCents, p.AmountCents)
	}
	if currency != "" && currency != p.Currency {
		log.Warnf("[Payment] currency mismatch external=%s reported=%s stored=%s",
			externalPaymentID, currency, p.Currency)
	}

	settled, applied, err := s.repo.SettlePayment(externalPaymentID, newStatus)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race against a concurrent reconciliation; resolve as the
		// same idempotent no-op.
		p, err = s.repo.GetPaymentByExternalID(externalPaymentID)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{
			PaymentID:         p.ID,
			ExternalPaymentID: p.ExternalPaymentID,
			Status:            p.Status,
			Applied:           false,
			CompletedAt:       p.CompletedAt,
		}, nil
	}

	result := &ReconcileResult{
		PaymentID:         settled.ID,
		ExternalPaymentID: settled.ExternalPaymentID,
		Status:            settled.Status,
		Applied:           true,
		CompletedAt:       settled.CompletedAt,
	}
	if settled.Status == models.PaymentStatusCompleted {
		result.TokensCredited = settled.Tokens
		log.Infof("[Payment] completed external=%s user=%d tokens=%d", settled.ExternalPaymentID, settled.UserID, settled.Tokens)
	}
	return result, nil
}

// HandleWebhook is the push path: verify, parse and reconcile a provider
// webhook delivery.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, event.ExternalPaymentID, event.Status, event.AmountCents, event.Currency)
}

// CompletePurchase is the pull path: poll the provider for the payment's
// status and reconcile whatever it reports.
func (s *Service) CompletePurchase(ctx context.Context, paymentID uint) (*ReconcileResult, error) {
	p, err := s.repo.GetPaymentByID(paymentID)
	if err != nil {
		return nil, err
	}

	event, err := s.provider.PaymentStatus(ctx, p.ExternalPaymentID)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, p.ExternalPaymentID, event.Status, event.AmountCents, event.Currency)
}

// GetPayment loads a payment by its internal id.
func (s *Service) GetPayment(ctx context.Context, paymentID uint) (*models.Payment, error) {
	_ = ctx
	return s.repo.GetPaymentByID(paymentID)
}

// CancelSubscription cancels a user's subscription record. Entitlements run
// until the already-paid period ends; resolution downgrades lazily.
func (s *Service) CancelSubscription(ctx context.Context, userID, subscriptionID uint) (*models.Subscription, error) {
	_ = ctx
	sub, err := s.repo.GetSubscriptionByID(subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrNotSubscriptionOwner
	}
	return s.repo.CancelSubscription(subscriptionID)
}

// HasOpenAutoTopup reports whether an auto-topup purchase is still in flight
// for the user. The topup monitor uses this as its double-charge guard.
func (s *Service) HasOpenAutoTopup(ctx context.Context, userID uint) (bool, error) {
	_ = ctx
	return s.repo.HasOpenAutoTopup(userID)
}
