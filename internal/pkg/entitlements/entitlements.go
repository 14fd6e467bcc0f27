package entitlements

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
)

var ErrUserNotFound = errors.New("user not found")

// Entitlement is the resolved set of limits and benefits a user currently has.
type Entitlement struct {
	Tier                   string  `json:"tier"`
	ChatLimit              int     `json:"chat_limit"`
	DiscountMultiplier     float64 `json:"discount_multiplier"`
	ExclusivePersonaAccess bool    `json:"exclusive_persona_access"`
	ExpiresAt              *time.Time
}

// ChatQuota is the answer to "may this user create another chat".
type ChatQuota struct {
	CanCreate     bool   `json:"can_create"`
	CurrentCount  int    `json:"current_count"`
	Limit         int    `json:"limit"`
	Tier          string `json:"tier"`
	SuggestedTier string `json:"suggested_tier,omitempty"`
}

// UserSource loads users for resolution.
type UserSource interface {
	GetByID(id uint) (*models.User, error)
}

// ChatCounter counts a user's existing chats.
type ChatCounter interface {
	CountByUserID(userID uint) (int64, error)
}

// Resolve derives the effective tier and its limits from the user record and
// the catalog. An expiry in the past downgrades to free at read time; no
// background job flips the stored field.
func Resolve(user *models.User, cat *catalog.Catalog, now time.Time) Entitlement {
	tierID := normalizeTier(user.SubscriptionStatus)
	if user.SubscriptionExpired(now) {
		tierID = models.SubscriptionFree
	}

	tier, err := cat.Tier(tierID)
	if err != nil {
		tier, _ = cat.Tier(models.SubscriptionFree)
	}

	return Entitlement{
		Tier:                   tier.ID,
		ChatLimit:              tier.ChatLimit,
		DiscountMultiplier:     tier.TokenDiscountMultiplier,
		ExclusivePersonaAccess: tier.ExclusivePersonaAccess,
		ExpiresAt:              user.SubscriptionExpiry,
	}
}

// Resolver answers entitlement questions against live user and chat data.
type Resolver struct {
	cat   *catalog.Catalog
	users UserSource
	chats ChatCounter
	now   func() time.Time
}

// NewResolver creates a resolver. The clock is injectable for tests.
func NewResolver(cat *catalog.Catalog, users UserSource, chats ChatCounter) *Resolver {
	return &Resolver{cat: cat, users: users, chats: chats, now: time.Now}
}

// WithClock overrides the resolver's time source.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// ResolveUser resolves the effective entitlement for a user id.
func (r *Resolver) ResolveUser(ctx context.Context, userID uint) (*Entitlement, error) {
	_ = ctx
	user, err := r.users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	e := Resolve(user, r.cat, r.now())
	return &e, nil
}

// CanUserCreateChat counts existing chats against the resolved chat limit.
// The comparison is strict: reaching the limit blocks the next creation.
func (r *Resolver) CanUserCreateChat(ctx context.Context, userID uint) (*ChatQuota, error) {
	ent, err := r.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := r.chats.CountByUserID(userID)
	if err != nil {
		return nil, err
	}

	quota := &ChatQuota{
		CurrentCount:  int(count),
		Limit:         ent.ChatLimit,
		Tier:          ent.Tier,
		SuggestedTier: r.cat.NextTier(ent.Tier),
	}
	if ent.ChatLimit == catalog.ChatLimitUnlimited {
		quota.CanCreate = true
		return quota, nil
	}
	quota.CanCreate = quota.CurrentCount < quota.Limit
	return quota, nil
}

func normalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.SubscriptionBasic:
		return models.SubscriptionBasic
	case models.SubscriptionPremium:
		return models.SubscriptionPremium
	case models.SubscriptionVIP:
		return models.SubscriptionVIP
	default:
		return models.SubscriptionFree
	}
}
