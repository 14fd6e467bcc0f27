package quota

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/entitlements"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

var (
	ErrChatLimitReached = errors.New("chat limit reached")
	ErrAlreadyUnlocked  = errors.New("message is already unlocked")
	ErrMessageNotFound  = errors.New("message not found")
	ErrPersonaExclusive = errors.New("persona requires a higher tier")
)

// ChargeResult reports how a message was paid for.
type ChargeResult struct {
	UsedFreeMessage bool  `json:"used_free_message"`
	FreeUsedCount   int   `json:"free_used_count"`
	FreeCap         int   `json:"free_cap"`
	TokensCharged   int64 `json:"tokens_charged"`
	Balance         int64 `json:"balance"`
}

// UnlockResult is the outcome of a successful paid unlock.
type UnlockResult struct {
	Content       string     `json:"content"`
	TokensCharged int64      `json:"tokens_charged"`
	Balance       int64      `json:"balance"`
	UnlockedAt    *time.Time `json:"unlocked_at,omitempty"`
}

// Gate enforces the chat quota, the free-message allowance and the
// message-lock economy. It never touches balances directly; all money moves
// through the ledger or the unlock transaction.
type Gate struct {
	repo     Repository
	resolver *entitlements.Resolver
	ledger   *ledger.Service
	roller   LockRoller
	settings func() *models.QuotaSettings
	now      func() time.Time
}

// NewGate creates a quota gate from injected collaborators.
func NewGate(repo Repository, resolver *entitlements.Resolver, ledgerSvc *ledger.Service, roller LockRoller) *Gate {
	return &Gate{
		repo:     repo,
		resolver: resolver,
		ledger:   ledgerSvc,
		roller:   roller,
		settings: models.GetQuotaSettings,
		now:      time.Now,
	}
}

// NewGateFromDB creates a quota gate from a GORM DB handle.
func NewGateFromDB(db *gorm.DB, resolver *entitlements.Resolver, roller LockRoller) *Gate {
	return NewGate(NewRepository(db), resolver, ledger.NewServiceFromDB(db), roller)
}

// WithSettings overrides the settings source (tests).
func (g *Gate) WithSettings(src func() *models.QuotaSettings) *Gate {
	g.settings = src
	return g
}

// WithClock overrides the gate's time source (tests).
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// CheckChatCreation asks the resolver whether the user may open another
// chat. On denial the quota is still returned so callers can render the
// upgrade prompt.
func (g *Gate) CheckChatCreation(ctx context.Context, userID uint) (*entitlements.ChatQuota, error) {
	quota, err := g.resolver.CanUserCreateChat(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !quota.CanCreate {
		return quota, ErrChatLimitReached
	}
	return quota, nil
}

// CheckPersonaAccess verifies exclusive personas against the entitlement.
func (g *Gate) CheckPersonaAccess(ctx context.Context, userID uint, persona *models.Persona) error {
	if !persona.IsExclusive {
		return nil
	}
	ent, err := g.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return err
	}
	if !ent.ExclusivePersonaAccess {
		return ErrPersonaExclusive
	}
	return nil
}

// ChargeMessage pays for one outgoing message: free allowance first, then a
// discounted token debit. The free increment is a conditional update so the
// cap cannot be overshot under concurrency.
func (g *Gate) ChargeMessage(ctx context.Context, userID uint) (*ChargeResult, error) {
	qs := g.settings()

	usage, err := g.repo.GetOrCreateFreeUsage(userID)
	if err != nil {
		return nil, err
	}

	if qs.FreeMessagePolicy == models.FreeMessagePolicyWindow {
		cutoff := g.now().Add(-qs.FreeMessageWindow())
		if usage.WindowStartedAt.Before(cutoff) || usage.WindowStartedAt.Equal(cutoff) {
			if err := g.repo.ResetFreeUsageWindow(userID, cutoff.Add(time.Nanosecond)); err != nil {
				return nil, err
			}
			usage, err = g.repo.GetOrCreateFreeUsage(userID)
			if err != nil {
				return nil, err
			}
		}
	}

	if qs.FreeMessageCap > 0 {
		consumed, err := g.repo.ConsumeFreeMessage(userID, qs.FreeMessageCap)
		if err != nil {
			return nil, err
		}
		if consumed {
			return &ChargeResult{
				UsedFreeMessage: true,
				FreeUsedCount:   usage.UsedCount + 1,
				FreeCap:         qs.FreeMessageCap,
			}, nil
		}
	}

	ent, err := g.resolver.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cost := DiscountedCost(qs.MessageCostTokens, ent.DiscountMultiplier)
	if cost == 0 {
		balance, err := g.ledger.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &ChargeResult{FreeUsedCount: usage.UsedCount, FreeCap: qs.FreeMessageCap, Balance: balance}, nil
	}

	balance, err := g.ledger.Debit(ctx, userID, cost)
	if err != nil {
		return nil, err
	}
	return &ChargeResult{
		FreeUsedCount: usage.UsedCount,
		FreeCap:       qs.FreeMessageCap,
		TokensCharged: cost,
		Balance:       balance,
	}, nil
}

// RollMessageLock draws against the persona's lock probability and returns
// the lock state plus the price a reader must pay. The persona price wins;
// the site default only fills in when a persona carries none.
func (g *Gate) RollMessageLock(persona *models.Persona) (bool, int64) {
	if !g.roller.ShouldLock(persona.LockProbability) {
		return false, 0
	}
	price := persona.UnlockPrice
	if price <= 0 {
		price = g.settings().DefaultUnlockPrice
	}
	if price <= 0 {
		return false, 0
	}
	return true, price
}

// UnlockMessage performs the paid unlock: it verifies ownership, then flips
// the lock and debits the price atomically. Repeat calls fail with
// ErrAlreadyUnlocked and never debit twice.
func (g *Gate) UnlockMessage(ctx context.Context, userID, chatID, messageID uint) (*UnlockResult, error) {
	_ = ctx
	chat, err := g.repo.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrMessageNotFound
	}

	msg, err := g.repo.GetMessage(chatID, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsLocked {
		return nil, ErrAlreadyUnlocked
	}

	unlocked, balance, err := g.repo.UnlockMessage(userID, messageID, msg.UnlockPrice)
	if err != nil {
		return nil, err
	}

	log.Infof("[Quota] unlock user=%d message=%d price=%d balance=%d", userID, messageID, msg.UnlockPrice, balance)
	return &UnlockResult{
		Content:       unlocked.Content,
		TokensCharged: msg.UnlockPrice,
		Balance:       balance,
		UnlockedAt:    unlocked.UnlockedAt,
	}, nil
}

// DiscountedCost applies a tier discount to a token cost. Rounding is up so
// a non-zero cost never discounts to free.
func DiscountedCost(base int64, multiplier float64) int64 {
	if base <= 0 {
		return 0
	}
	if multiplier <= 0 || multiplier >= 1 {
		return base
	}
	return int64(math.Ceil(float64(base) * multiplier))
}
