package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
)

type fakeUsers struct {
	users map[uint]*models.User
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

type fakeChats struct {
	counts map[uint]int64
}

func (f *fakeChats) CountByUserID(userID uint) (int64, error) {
	return f.counts[userID], nil
}

func TestResolveLazyDowngrade(t *testing.T) {
	cat := catalog.Default()
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		user     models.User
		wantTier string
	}{
		{
			name:     "active premium",
			user:     models.User{SubscriptionStatus: models.SubscriptionPremium, SubscriptionExpiry: &future},
			wantTier: models.SubscriptionPremium,
		},
		{
			name:     "expired premium falls back to free",
			user:     models.User{SubscriptionStatus: models.SubscriptionPremium, SubscriptionExpiry: &past},
			wantTier: models.SubscriptionFree,
		},
		{
			name:     "no expiry keeps stored status",
			user:     models.User{SubscriptionStatus: models.SubscriptionVIP},
			wantTier: models.SubscriptionVIP,
		},
		{
			name:     "unknown stored status resolves to free",
			user:     models.User{SubscriptionStatus: "gold"},
			wantTier: models.SubscriptionFree,
		},
	}

	for _, tt := range tests {
		ent := Resolve(&tt.user, cat, now)
		if ent.Tier != tt.wantTier {
			t.Fatalf("%s: tier = %q, want %q", tt.name, ent.Tier, tt.wantTier)
		}
	}
}

func TestResolveCarriesTierLimits(t *testing.T) {
	cat := catalog.Default()
	user := models.User{SubscriptionStatus: models.SubscriptionVIP}

	ent := Resolve(&user, cat, time.Now())
	if ent.ChatLimit != catalog.ChatLimitUnlimited {
		t.Fatalf("vip chat limit = %d, want unlimited", ent.ChatLimit)
	}
	if !ent.ExclusivePersonaAccess {
		t.Fatalf("expected vip exclusive persona access")
	}
	if ent.DiscountMultiplier >= 1 {
		t.Fatalf("vip discount = %v, want < 1", ent.DiscountMultiplier)
	}
}

func newResolver(users map[uint]*models.User, counts map[uint]int64) *Resolver {
	return NewResolver(catalog.Default(), &fakeUsers{users: users}, &fakeChats{counts: counts})
}

func TestCanUserCreateChatBoundary(t *testing.T) {
	// Free tier has chatLimit=1.
	users := map[uint]*models.User{
		1: {ID: 1, SubscriptionStatus: models.SubscriptionFree},
	}

	// currentCount = limit-1 allows creation.
	r := newResolver(users, map[uint]int64{1: 0})
	quota, err := r.CanUserCreateChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quota.CanCreate {
		t.Fatalf("expected creation allowed at count=0 limit=1")
	}

	// currentCount = limit blocks creation.
	r = newResolver(users, map[uint]int64{1: 1})
	quota, err = r.CanUserCreateChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quota.CanCreate {
		t.Fatalf("expected creation blocked at count=1 limit=1")
	}
	if quota.CurrentCount != 1 || quota.Limit != 1 {
		t.Fatalf("quota = %+v, want count=1 limit=1", quota)
	}
	if quota.SuggestedTier != models.SubscriptionBasic {
		t.Fatalf("suggested tier = %q, want basic", quota.SuggestedTier)
	}
}

func TestCanUserCreateChatUnlimited(t *testing.T) {
	users := map[uint]*models.User{
		1: {ID: 1, SubscriptionStatus: models.SubscriptionVIP},
	}
	r := newResolver(users, map[uint]int64{1: 5000})

	quota, err := r.CanUserCreateChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !quota.CanCreate {
		t.Fatalf("unlimited tier must always allow chat creation")
	}
}
