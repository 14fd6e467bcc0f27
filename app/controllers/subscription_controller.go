package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/VelvetChat/internal/pkg/usercontext"
)

type subscribeRequest struct {
	Tier            string `json:"tier"`
	PaymentMethodID string `json:"payment_method_id"`
}

// HandleCreateSubscription starts a subscription purchase. The subscription
// stays pending until the payment completes; activation happens in the
// reconciler.
func HandleCreateSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := newPaymentService()
	p, sub, checkout, err := svc.InitiateSubscription(ctx, userCtx.UserID, req.Tier, req.PaymentMethodID)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"subscription_id": sub.ID,
		"tier":            sub.Tier,
		"status":          sub.Status,
		"payment_id":      p.ID,
		"amount_cents":    p.AmountCents,
		"currency":        p.Currency,
		"checkout":        checkout,
	})
}

// HandleCancelSubscription cancels the subscription. The record is kept and
// entitlements run until the paid period ends.
func HandleCancelSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_SUBSCRIPTION_ID", "Invalid subscription id")
	}

	svc := newPaymentService()
	sub, serr := svc.CancelSubscription(context.Background(), userCtx.UserID, uint(id))
	if serr != nil {
		return writeDomainError(c, serr)
	}

	return c.JSON(fiber.Map{
		"subscription_id": sub.ID,
		"tier":            sub.Tier,
		"status":          sub.Status,
		"ends_at":         formatTimePtr(sub.EndDate),
	})
}
