package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ManuelReschke/VelvetChat/app/models"
)

var (
	ErrUnknownTier        = errors.New("unknown subscription tier")
	ErrUnknownPackage     = errors.New("unknown token package")
	ErrAmountBelowMinimum = errors.New("amount below minimum purchasable tokens")
)

// ChatLimitUnlimited marks tiers without a chat cap.
const ChatLimitUnlimited = -1

// SubscriptionTier is one purchasable subscription level. Tiers are immutable
// per catalog version.
type SubscriptionTier struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	PriceCents              int64  `json:"price_cents"`
	BonusTokensOnActivate   int64  `json:"bonus_tokens_on_activate"`
	TokenDiscountMultiplier float64 `json:"token_discount_multiplier"`
	ChatLimit               int  `json:"chat_limit"`
	ExclusivePersonaAccess  bool `json:"exclusive_persona_access"`
	DurationDays            int  `json:"duration_days"`
}

// TokenPackage is a fixed-size credit bundle.
type TokenPackage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	BaseTokens  int64  `json:"base_tokens"`
	BonusTokens int64  `json:"bonus_tokens"`
	PriceCents  int64  `json:"price_cents"`
}

// CustomTokenBand prices arbitrary token amounts. Bands are ordered,
// non-overlapping and inclusive on both ends.
type CustomTokenBand struct {
	MinTokens          int64 `json:"min_tokens"`
	MaxTokens          int64 `json:"max_tokens"`
	PricePerTokenCents int64 `json:"price_per_token_cents"`
	BonusPercentage    int64 `json:"bonus_percentage"`
}

// CustomQuote is the result of pricing a custom token amount.
type CustomQuote struct {
	Tokens      int64 `json:"tokens"`
	BonusTokens int64 `json:"bonus_tokens"`
	TotalTokens int64 `json:"total_tokens"`
	PriceCents  int64 `json:"price_cents"`
}

// Catalog is the static, versioned pricing data set.
type Catalog struct {
	Version  string
	tiers    map[string]SubscriptionTier
	order    []string
	packages map[string]TokenPackage
	bands    []CustomTokenBand
}

// New builds a catalog and validates its band table. Tier order doubles as
// the upgrade-suggestion ranking.
func New(version string, tiers []SubscriptionTier, packages []TokenPackage, bands []CustomTokenBand) (*Catalog, error) {
	c := &Catalog{
		Version:  version,
		tiers:    make(map[string]SubscriptionTier, len(tiers)),
		packages: make(map[string]TokenPackage, len(packages)),
		bands:    append([]CustomTokenBand(nil), bands...),
	}
	for _, t := range tiers {
		c.tiers[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	for _, p := range packages {
		c.packages[p.ID] = p
	}
	sort.Slice(c.bands, func(i, j int) bool { return c.bands[i].MinTokens < c.bands[j].MinTokens })
	if err := validateBands(c.bands); err != nil {
		return nil, err
	}
	return c, nil
}

func validateBands(bands []CustomTokenBand) error {
	if len(bands) == 0 {
		return errors.New("catalog needs at least one custom token band")
	}
	for i, b := range bands {
		if b.MinTokens <= 0 || b.MaxTokens < b.MinTokens {
			return fmt.Errorf("invalid band range %d-%d", b.MinTokens, b.MaxTokens)
		}
		if b.PricePerTokenCents <= 0 {
			return fmt.Errorf("band %d-%d has non-positive price", b.MinTokens, b.MaxTokens)
		}
		if b.BonusPercentage < 0 {
			return fmt.Errorf("band %d-%d has negative bonus", b.MinTokens, b.MaxTokens)
		}
		if i > 0 && b.MinTokens != bands[i-1].MaxTokens+1 {
			return fmt.Errorf("band %d-%d does not adjoin previous band ending at %d",
				b.MinTokens, b.MaxTokens, bands[i-1].MaxTokens)
		}
	}
	return nil
}

// Tier looks up a subscription tier by id.
func (c *Catalog) Tier(id string) (*SubscriptionTier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return nil, ErrUnknownTier
	}
	return &t, nil
}

// Tiers returns all tiers in ranking order.
func (c *Catalog) Tiers() []SubscriptionTier {
	out := make([]SubscriptionTier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tiers[id])
	}
	return out
}

// Package looks up a token package by id.
func (c *Catalog) Package(id string) (*TokenPackage, error) {
	p, ok := c.packages[id]
	if !ok {
		return nil, ErrUnknownPackage
	}
	return &p, nil
}

// Packages returns all fixed packages sorted by price.
func (c *Catalog) Packages() []TokenPackage {
	out := make([]TokenPackage, 0, len(c.packages))
	for _, p := range c.packages {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out
}

// TotalForPackage returns base + bonus tokens credited for a package.
func (c *Catalog) TotalForPackage(id string) (int64, error) {
	p, err := c.Package(id)
	if err != nil {
		return 0, err
	}
	return p.BaseTokens + p.BonusTokens, nil
}

// ResolveCustomBand returns the unique band covering amount.
func (c *Catalog) ResolveCustomBand(amount int64) (*CustomTokenBand, error) {
	if amount < c.bands[0].MinTokens {
		return nil, ErrAmountBelowMinimum
	}
	for _, b := range c.bands {
		if amount >= b.MinTokens && amount <= b.MaxTokens {
			return &b, nil
		}
	}
	// Amounts above the last band price at its rate.
	last := c.bands[len(c.bands)-1]
	return &last, nil
}

// PriceForCustomAmount quotes an arbitrary token amount:
// bonus = floor(amount * bonusPct / 100), total = amount + bonus,
// price = amount * pricePerToken.
func (c *Catalog) PriceForCustomAmount(amount int64) (*CustomQuote, error) {
	band, err := c.ResolveCustomBand(amount)
	if err != nil {
		return nil, err
	}
	bonus := amount * band.BonusPercentage / 100
	return &CustomQuote{
		Tokens:      amount,
		BonusTokens: bonus,
		TotalTokens: amount + bonus,
		PriceCents:  amount * band.PricePerTokenCents,
	}, nil
}

// NextTier returns the tier to suggest after id, or "" when already at the top
// or unknown.
func (c *Catalog) NextTier(id string) string {
	for i, tid := range c.order {
		if tid == id && i+1 < len(c.order) {
			return c.order[i+1]
		}
	}
	return ""
}

// TierRank returns the position of a tier in the upgrade ordering; unknown
// tiers rank below free.
func (c *Catalog) TierRank(id string) int {
	for i, tid := range c.order {
		if tid == id {
			return i
		}
	}
	return -1
}

// Default returns the built-in catalog. Panics on an invalid band table since
// that is a programming error, not runtime input.
func Default() *Catalog {
	c, err := New("2025-08",
		[]SubscriptionTier{
			{ID: models.SubscriptionFree, Name: "Free", PriceCents: 0, BonusTokensOnActivate: 0, TokenDiscountMultiplier: 1.0, ChatLimit: 1, ExclusivePersonaAccess: false, DurationDays: 0},
			{ID: models.SubscriptionBasic, Name: "Basic", PriceCents: 999, BonusTokensOnActivate: 100, TokenDiscountMultiplier: 0.9, ChatLimit: 10, ExclusivePersonaAccess: false, DurationDays: 30},
			{ID: models.SubscriptionPremium, Name: "Premium", PriceCents: 1999, BonusTokensOnActivate: 300, TokenDiscountMultiplier: 0.8, ChatLimit: 50, ExclusivePersonaAccess: true, DurationDays: 30},
			{ID: models.SubscriptionVIP, Name: "VIP", PriceCents: 4999, BonusTokensOnActivate: 1000, TokenDiscountMultiplier: 0.7, ChatLimit: ChatLimitUnlimited, ExclusivePersonaAccess: true, DurationDays: 30},
		},
		[]TokenPackage{
			{ID: "starter", Name: "Starter", BaseTokens: 100, BonusTokens: 10, PriceCents: 499},
			{ID: "plus", Name: "Plus", BaseTokens: 500, BonusTokens: 75, PriceCents: 1999},
			{ID: "pro", Name: "Pro", BaseTokens: 1200, BonusTokens: 240, PriceCents: 3999},
			{ID: "max", Name: "Max", BaseTokens: 3000, BonusTokens: 750, PriceCents: 7999},
		},
		[]CustomTokenBand{
			{MinTokens: 50, MaxTokens: 499, PricePerTokenCents: 4, BonusPercentage: 0},
			{MinTokens: 500, MaxTokens: 1999, PricePerTokenCents: 3, BonusPercentage: 10},
			{MinTokens: 2000, MaxTokens: 9999, PricePerTokenCents: 2, BonusPercentage: 15},
			{MinTokens: 10000, MaxTokens: 1000000, PricePerTokenCents: 1, BonusPercentage: 20},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}
