package topup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
)

type fakeStore struct {
	configs  []models.AutoTopupSettings
	balances map[uint]int64
}

func (f *fakeStore) ListEnabled() ([]models.AutoTopupSettings, error) {
	var enabled []models.AutoTopupSettings
	for _, c := range f.configs {
		if c.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}

func (f *fakeStore) GetBalance(userID uint) (int64, error) {
	b, ok := f.balances[userID]
	if !ok {
		return 0, errors.New("no such user")
	}
	return b, nil
}

type fakePurchaser struct {
	open      map[uint]bool
	initiated []payment.PurchaseInput
	failFor   uint
}

func (f *fakePurchaser) InitiatePurchase(_ context.Context, in payment.PurchaseInput) (*models.Payment, *payment.Checkout, error) {
	if f.failFor != 0 && in.UserID == f.failFor {
		return nil, nil, errors.New("provider unavailable")
	}
	f.initiated = append(f.initiated, in)
	return &models.Payment{ID: uint(len(f.initiated)), UserID: in.UserID}, &payment.Checkout{}, nil
}

func (f *fakePurchaser) HasOpenAutoTopup(_ context.Context, userID uint) (bool, error) {
	return f.open[userID], nil
}

type fakeGuard struct {
	held map[uint]bool
}

func (f *fakeGuard) TryAcquire(userID uint, _ time.Duration) bool {
	if f.held[userID] {
		return false
	}
	f.held[userID] = true
	return true
}

func newMonitorFixture(configs []models.AutoTopupSettings, balances map[uint]int64) (*Monitor, *fakePurchaser, *fakeGuard) {
	store := &fakeStore{configs: configs, balances: balances}
	purchaser := &fakePurchaser{open: make(map[uint]bool)}
	guard := &fakeGuard{held: make(map[uint]bool)}
	m := NewMonitor(store, purchaser, guard, time.Minute).
		WithSettings(func() *models.QuotaSettings { return models.DefaultQuotaSettings() })
	return m, purchaser, guard
}

func TestSweepTriggersBelowThreshold(t *testing.T) {
	configs := []models.AutoTopupSettings{
		{UserID: 1, Enabled: true, ThresholdTokens: 50, PackageID: "starter", PaymentMethodID: "pm_1"},
		{UserID: 2, Enabled: true, ThresholdTokens: 50, PackageID: "plus", PaymentMethodID: "pm_2"},
	}
	m, purchaser, _ := newMonitorFixture(configs, map[uint]int64{1: 20, 2: 50})

	if err := m.SweepOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// User 1 sits below the threshold, user 2 sits exactly on it.
	if len(purchaser.initiated) != 1 {
		t.Fatalf("initiated %d purchases, want 1", len(purchaser.initiated))
	}
	in := purchaser.initiated[0]
	if in.UserID != 1 || in.PackageID != "starter" || !in.AutoTopup {
		t.Fatalf("unexpected purchase input: %+v", in)
	}
	if in.PaymentMethodID != "pm_1" {
		t.Fatalf("purchase must reuse the stored payment method, got %q", in.PaymentMethodID)
	}
}

func TestSweepSkipsDisabledConfigs(t *testing.T) {
	configs := []models.AutoTopupSettings{
		{UserID: 1, Enabled: false, ThresholdTokens: 50, PackageID: "starter", PaymentMethodID: "pm_1"},
	}
	m, purchaser, _ := newMonitorFixture(configs, map[uint]int64{1: 0})

	if err := m.SweepOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(purchaser.initiated) != 0 {
		t.Fatalf("disabled config must not purchase")
	}
}

func TestSweepSkipsOpenTopup(t *testing.T) {
	configs := []models.AutoTopupSettings{
		{UserID: 1, Enabled: true, ThresholdTokens: 50, PackageID: "starter", PaymentMethodID: "pm_1"},
	}
	m, purchaser, _ := newMonitorFixture(configs, map[uint]int64{1: 10})
	purchaser.open[1] = true

	if err := m.SweepOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(purchaser.initiated) != 0 {
		t.Fatalf("open top-up must suppress a new purchase")
	}
}

func TestSweepCooldownPreventsRepeatCharge(t *testing.T) {
	configs := []models.AutoTopupSettings{
		{UserID: 1, Enabled: true, ThresholdTokens: 50, PackageID: "starter", PaymentMethodID: "pm_1"},
	}
	m, purchaser, _ := newMonitorFixture(configs, map[uint]int64{1: 10})
	ctx := context.Background()

	if err := m.SweepOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Second sweep before the balance recovered: the guard still holds.
	if err := m.SweepOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(purchaser.initiated) != 1 {
		t.Fatalf("initiated %d purchases, want exactly 1", len(purchaser.initiated))
	}
}

func TestSweepContinuesAfterUserFailure(t *testing.T) {
	configs := []models.AutoTopupSettings{
		{UserID: 1, Enabled: true, ThresholdTokens: 50, PackageID: "starter", PaymentMethodID: "pm_1"},
		{UserID: 2, Enabled: true, ThresholdTokens: 50, PackageID: "plus", PaymentMethodID: "pm_2"},
	}
	m, purchaser, _ := newMonitorFixture(configs, map[uint]int64{1: 10, 2: 10})
	purchaser.failFor = 1

	if err := m.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep must not abort on a per-user failure: %v", err)
	}
	if len(purchaser.initiated) != 1 || purchaser.initiated[0].UserID != 2 {
		t.Fatalf("expected user 2 to still be topped up, got %+v", purchaser.initiated)
	}
}

func TestMonitorStartStop(t *testing.T) {
	m, _, _ := newMonitorFixture(nil, nil)

	m.Start()
	if !m.IsRunning() {
		t.Fatalf("monitor should report running after Start")
	}
	m.Start() // idempotent
	m.Stop()
	if m.IsRunning() {
		t.Fatalf("monitor should report stopped after Stop")
	}
	m.Stop() // idempotent

	// Restart works after a full stop.
	m.Start()
	if !m.IsRunning() {
		t.Fatalf("monitor should restart cleanly")
	}
	m.Stop()
}
