package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/VelvetChat/app/repository"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/database"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/entitlements"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/usercontext"
)

// resolveTargetUserID reads the :id route param and checks the caller may
// access that user's data. Users only see themselves; admins see everyone.
func resolveTargetUserID(c *fiber.Ctx) (uint, error) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return 0, writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, writeError(c, fiber.StatusBadRequest, "INVALID_USER_ID", "Invalid user id")
	}

	targetID := uint(id)
	if targetID != userCtx.UserID && !userCtx.IsAdmin {
		return 0, writeError(c, fiber.StatusForbidden, "FORBIDDEN", "Access denied")
	}
	return targetID, nil
}

func newResolver() *entitlements.Resolver {
	repos := repository.GetGlobalRepositories()
	return entitlements.NewResolver(catalog.Default(), repos.User, repos.Chat)
}

// HandleGetUserBalance returns the user's current token balance.
func HandleGetUserBalance(c *fiber.Ctx) error {
	userID, err := resolveTargetUserID(c)
	if err != nil {
		return err
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	balance, lerr := svc.GetBalance(context.Background(), userID)
	if lerr != nil {
		return writeDomainError(c, lerr)
	}

	return c.JSON(fiber.Map{
		"user_id":       userID,
		"token_balance": balance,
	})
}

// HandleGetUserSubscription returns the user's effective entitlement plus the
// chat quota derived from it.
func HandleGetUserSubscription(c *fiber.Ctx) error {
	userID, err := resolveTargetUserID(c)
	if err != nil {
		return err
	}

	resolver := newResolver()
	ent, rerr := resolver.ResolveUser(context.Background(), userID)
	if rerr != nil {
		return writeDomainError(c, rerr)
	}
	chatQuota, rerr := resolver.CanUserCreateChat(context.Background(), userID)
	if rerr != nil {
		return writeDomainError(c, rerr)
	}

	return c.JSON(fiber.Map{
		"user_id":                  userID,
		"tier":                     ent.Tier,
		"chat_limit":               ent.ChatLimit,
		"discount_multiplier":      ent.DiscountMultiplier,
		"exclusive_persona_access": ent.ExclusivePersonaAccess,
		"expires_at":               formatTimePtr(ent.ExpiresAt),
		"chat_quota": fiber.Map{
			"current_count":  chatQuota.CurrentCount,
			"limit":          chatQuota.Limit,
			"can_create":     chatQuota.CanCreate,
			"suggested_tier": chatQuota.SuggestedTier,
		},
	})
}
