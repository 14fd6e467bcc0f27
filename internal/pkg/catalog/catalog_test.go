package catalog

import (
	"errors"
	"testing"

	"github.com/ManuelReschke/VelvetChat/app/models"
)

func TestResolveCustomBandBoundaries(t *testing.T) {
	c := Default()

	tests := []struct {
		amount  int64
		wantMin int64
	}{
		{amount: 50, wantMin: 50},
		{amount: 499, wantMin: 50},
		{amount: 500, wantMin: 500},
		{amount: 1999, wantMin: 500},
		{amount: 2000, wantMin: 2000},
		{amount: 9999, wantMin: 2000},
		{amount: 10000, wantMin: 10000},
	}

	for _, tt := range tests {
		band, err := c.ResolveCustomBand(tt.amount)
		if err != nil {
			t.Fatalf("ResolveCustomBand(%d) returned error: %v", tt.amount, err)
		}
		if band.MinTokens != tt.wantMin {
			t.Fatalf("ResolveCustomBand(%d) picked band starting at %d, want %d", tt.amount, band.MinTokens, tt.wantMin)
		}
	}
}

func TestResolveCustomBandBelowMinimum(t *testing.T) {
	c := Default()
	for _, amount := range []int64{0, 1, 49} {
		if _, err := c.ResolveCustomBand(amount); !errors.Is(err, ErrAmountBelowMinimum) {
			t.Fatalf("ResolveCustomBand(%d) = %v, want ErrAmountBelowMinimum", amount, err)
		}
	}
}

func TestPriceForCustomAmount(t *testing.T) {
	c := Default()

	// 500 tokens land in the 10% bonus band at 3 cents per token.
	quote, err := c.PriceForCustomAmount(500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.BonusTokens != 50 {
		t.Fatalf("bonus = %d, want 50", quote.BonusTokens)
	}
	if quote.TotalTokens != 550 {
		t.Fatalf("total = %d, want 550", quote.TotalTokens)
	}
	if quote.PriceCents != 500*3 {
		t.Fatalf("price = %d, want %d", quote.PriceCents, 500*3)
	}
}

func TestPriceMonotonicWithinBand(t *testing.T) {
	c := Default()

	var lastPrice, lastTotal int64
	for amount := int64(500); amount <= 1999; amount += 7 {
		quote, err := c.PriceForCustomAmount(amount)
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", amount, err)
		}
		if quote.PriceCents < lastPrice {
			t.Fatalf("price decreased at amount %d: %d < %d", amount, quote.PriceCents, lastPrice)
		}
		if quote.TotalTokens < lastTotal {
			t.Fatalf("total decreased at amount %d: %d < %d", amount, quote.TotalTokens, lastTotal)
		}
		lastPrice = quote.PriceCents
		lastTotal = quote.TotalTokens
	}
}

func TestTotalForPackage(t *testing.T) {
	c := Default()

	total, err := c.TotalForPackage("plus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 575 {
		t.Fatalf("TotalForPackage(plus) = %d, want 575", total)
	}

	if _, err := c.TotalForPackage("nope"); !errors.Is(err, ErrUnknownPackage) {
		t.Fatalf("expected ErrUnknownPackage, got %v", err)
	}
}

func TestTierLookup(t *testing.T) {
	c := Default()

	tier, err := c.Tier(models.SubscriptionVIP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tier.ChatLimit != ChatLimitUnlimited {
		t.Fatalf("vip chat limit = %d, want unlimited", tier.ChatLimit)
	}
	if !tier.ExclusivePersonaAccess {
		t.Fatalf("expected vip to have exclusive persona access")
	}

	if _, err := c.Tier("gold"); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestNextTier(t *testing.T) {
	c := Default()

	tests := []struct {
		in   string
		want string
	}{
		{in: models.SubscriptionFree, want: models.SubscriptionBasic},
		{in: models.SubscriptionBasic, want: models.SubscriptionPremium},
		{in: models.SubscriptionPremium, want: models.SubscriptionVIP},
		{in: models.SubscriptionVIP, want: ""},
		{in: "bogus", want: ""},
	}

	for _, tt := range tests {
		if got := c.NextTier(tt.in); got != tt.want {
			t.Fatalf("NextTier(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewRejectsGappedBands(t *testing.T) {
	_, err := New("test", nil, nil, []CustomTokenBand{
		{MinTokens: 1, MaxTokens: 100, PricePerTokenCents: 2},
		{MinTokens: 102, MaxTokens: 200, PricePerTokenCents: 1},
	})
	if err == nil {
		t.Fatalf("expected gapped bands to be rejected")
	}
}

func TestNewRejectsOverlappingBands(t *testing.T) {
	_, err := New("test", nil, nil, []CustomTokenBand{
		{MinTokens: 1, MaxTokens: 100, PricePerTokenCents: 2},
		{MinTokens: 100, MaxTokens: 200, PricePerTokenCents: 1},
	})
	if err == nil {
		t.Fatalf("expected overlapping bands to be rejected")
	}
}
