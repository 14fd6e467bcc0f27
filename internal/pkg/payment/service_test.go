package payment

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
)

// fakeRepository replicates the storage layer's settle semantics in memory:
// the status transition and the ledger credit happen under one lock, and a
// completed payment can never be settled again.
type fakeRepository struct {
	mu         sync.Mutex
	byExternal map[string]*models.Payment
	byID       map[uint]*models.Payment
	subs       map[uint]*models.Subscription
	users      map[uint]*models.User
	nextID     uint
}

func newFakeRepository(users map[uint]*models.User) *fakeRepository {
	return &fakeRepository{
		byExternal: make(map[string]*models.Payment),
		byID:       make(map[uint]*models.Payment),
		subs:       make(map[uint]*models.Subscription),
		users:      users,
	}
}

func (f *fakeRepository) CreatePayment(p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.byExternal[p.ExternalPaymentID] = p
	f.byID[p.ID] = p
	return nil
}

func (f *fakeRepository) GetPaymentByID(id uint) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepository) GetPaymentByExternalID(externalID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byExternal[externalID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeRepository) SettlePayment(externalID, newStatus string) (*models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byExternal[externalID]
	if !ok {
		return nil, false, nil
	}
	if p.Status == models.PaymentStatusCompleted {
		return nil, false, nil
	}

	p.Status = newStatus
	if newStatus == models.PaymentStatusCompleted {
		now := time.Now()
		p.CompletedAt = &now
		switch p.Type {
		case models.PaymentTypeCreditPurchase:
			f.users[p.UserID].TokenBalance += p.Tokens
		case models.PaymentTypeSubscription:
			sub := f.subs[*p.SubscriptionID]
			sub.Status = models.SubscriptionStatusActive
			end := now.AddDate(0, 0, sub.DurationDays)
			sub.StartDate = &now
			sub.EndDate = &end
			f.users[sub.UserID].SubscriptionStatus = sub.Tier
			f.users[sub.UserID].SubscriptionExpiry = &end
			f.users[sub.UserID].TokenBalance += sub.BonusTokensGranted
		}
	}
	copied := *p
	return &copied, true, nil
}

func (f *fakeRepository) HasOpenAutoTopup(userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byExternal {
		if p.UserID == userID && p.AutoTopup && p.Type == models.PaymentTypeCreditPurchase && p.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub.ID = f.nextID
	f.subs[sub.ID] = sub
	return nil
}

func (f *fakeRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeRepository) CancelSubscription(id uint) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	sub.Status = models.SubscriptionStatusCancelled
	sub.AutoRenew = false
	copied := *sub
	return &copied, nil
}

func newTestService(users map[uint]*models.User) (*Service, *fakeRepository, *MockProvider) {
	repo := newFakeRepository(users)
	provider := NewMockProvider("whsec_test")
	return NewService(repo, catalog.Default(), provider), repo, provider
}

func TestReconcileIdempotentDoubleCompletion(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, TokenBalance: 0}}
	svc, _, _ := newTestService(users)
	ctx := context.Background()

	p, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, PackageID: "starter", PaymentMethodID: "pm_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Webhook reports completed.
	res, err := svc.Reconcile(ctx, p.ExternalPaymentID, models.PaymentStatusCompleted, p.AmountCents, p.Currency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied || res.TokensCredited != 110 {
		t.Fatalf("first reconcile = %+v, want applied with 110 tokens", res)
	}

	// A poll reports the same completion.
	res, err = svc.Reconcile(ctx, p.ExternalPaymentID, models.PaymentStatusCompleted, p.AmountCents, p.Currency)
	if err != nil {
		t.Fatalf("duplicate reconcile must not error: %v", err)
	}
	if res.Applied {
		t.Fatalf("duplicate reconcile must be a no-op")
	}

	if users[1].TokenBalance != 110 {
		t.Fatalf("balance = %d, want exactly 110 (credited once)", users[1].TokenBalance)
	}
}

func TestReconcileViaWebhookAndPoll(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1}}
	svc, _, provider := newTestService(users)
	ctx := context.Background()

	p, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, CustomAmount: 500, PaymentMethodID: "pm_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 500 tokens in the 10% band credit 550 total.
	if p.Tokens != 550 {
		t.Fatalf("payment tokens = %d, want 550", p.Tokens)
	}

	// Push path: signed webhook delivery.
	payload, _ := json.Marshal(mockWebhookPayload{
		ExternalPaymentID: p.ExternalPaymentID,
		Status:            models.PaymentStatusCompleted,
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		EventType:         "payment.completed",
	})
	sig := SignWebhookPayload(payload, provider.WebhookSecret)
	if _, err := svc.HandleWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	// Pull path afterwards: provider still says completed.
	provider.SetStatus(p.ExternalPaymentID, models.PaymentStatusCompleted)
	res, err := svc.CompletePurchase(ctx, p.ID)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if res.Applied {
		t.Fatalf("poll after webhook must be a no-op")
	}

	if users[1].TokenBalance != 550 {
		t.Fatalf("balance = %d, want 550 (not doubled)", users[1].TokenBalance)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc, _, _ := newTestService(map[uint]*models.User{1: {ID: 1}})

	payload := []byte(`{"external_payment_id":"mock_pi_x","status":"completed"}`)
	if _, err := svc.HandleWebhook(context.Background(), payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestReconcileUnknownPayment(t *testing.T) {
	svc, _, _ := newTestService(map[uint]*models.User{})

	_, err := svc.Reconcile(context.Background(), "pi_missing", models.PaymentStatusCompleted, 0, "")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestReconcileRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(map[uint]*models.User{})

	if _, err := svc.Reconcile(context.Background(), "pi_x", "settled", 0, ""); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSubscriptionActivationGrantsBonus(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1, SubscriptionStatus: models.SubscriptionFree}}
	svc, _, _ := newTestService(users)
	ctx := context.Background()

	p, sub, _, err := svc.InitiateSubscription(ctx, 1, models.SubscriptionPremium, "pm_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Status != models.SubscriptionStatusPending {
		t.Fatalf("new subscription status = %q, want pending", sub.Status)
	}

	res, err := svc.Reconcile(ctx, p.ExternalPaymentID, models.PaymentStatusCompleted, p.AmountCents, p.Currency)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected reconcile to apply")
	}

	if users[1].SubscriptionStatus != models.SubscriptionPremium {
		t.Fatalf("user tier = %q, want premium", users[1].SubscriptionStatus)
	}
	if users[1].SubscriptionExpiry == nil || !users[1].SubscriptionExpiry.After(time.Now()) {
		t.Fatalf("expected future subscription expiry, got %v", users[1].SubscriptionExpiry)
	}
	// Premium grants 300 bonus tokens on activation.
	if users[1].TokenBalance != 300 {
		t.Fatalf("balance = %d, want 300 bonus tokens", users[1].TokenBalance)
	}
}

func TestInitiateSubscriptionRejectsFreeTier(t *testing.T) {
	svc, _, _ := newTestService(map[uint]*models.User{1: {ID: 1}})

	_, _, _, err := svc.InitiateSubscription(context.Background(), 1, models.SubscriptionFree, "pm_1")
	if !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase, got %v", err)
	}
}

func TestInitiatePurchaseValidation(t *testing.T) {
	svc, _, _ := newTestService(map[uint]*models.User{1: {ID: 1}})
	ctx := context.Background()

	if _, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1}); !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase for empty input, got %v", err)
	}
	if _, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, PackageID: "starter", CustomAmount: 100}); !errors.Is(err, ErrInvalidPurchase) {
		t.Fatalf("expected ErrInvalidPurchase for ambiguous input, got %v", err)
	}
	if _, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, PackageID: "nope"}); !errors.Is(err, catalog.ErrUnknownPackage) {
		t.Fatalf("expected ErrUnknownPackage, got %v", err)
	}
	if _, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, CustomAmount: 5}); !errors.Is(err, catalog.ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
}

func TestHasOpenAutoTopup(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1}}
	svc, _, _ := newTestService(users)
	ctx := context.Background()

	open, err := svc.HasOpenAutoTopup(ctx, 1)
	if err != nil || open {
		t.Fatalf("expected no open topup, got open=%v err=%v", open, err)
	}

	p, _, err := svc.InitiatePurchase(ctx, PurchaseInput{UserID: 1, PackageID: "starter", PaymentMethodID: "pm_1", AutoTopup: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	open, _ = svc.HasOpenAutoTopup(ctx, 1)
	if !open {
		t.Fatalf("expected open topup while payment pending")
	}

	if _, err := svc.Reconcile(ctx, p.ExternalPaymentID, models.PaymentStatusCompleted, 0, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	open, _ = svc.HasOpenAutoTopup(ctx, 1)
	if open {
		t.Fatalf("expected no open topup after completion")
	}
}

func TestCancelSubscriptionOwnership(t *testing.T) {
	users := map[uint]*models.User{1: {ID: 1}, 2: {ID: 2}}
	svc, _, _ := newTestService(users)
	ctx := context.Background()

	_, sub, _, err := svc.InitiateSubscription(ctx, 1, models.SubscriptionBasic, "pm_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.CancelSubscription(ctx, 2, sub.ID); !errors.Is(err, ErrNotSubscriptionOwner) {
		t.Fatalf("expected ErrNotSubscriptionOwner, got %v", err)
	}

	cancelled, err := svc.CancelSubscription(ctx, 1, sub.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != models.SubscriptionStatusCancelled || cancelled.AutoRenew {
		t.Fatalf("cancelled = %+v, want cancelled with auto_renew off", cancelled)
	}
}
