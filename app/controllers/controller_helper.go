package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/entitlements"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/quota"
)

// writeDomainError translates typed service errors into the API error
// envelope. Unknown errors become a generic 500 so internals never leak.
func writeDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, entitlements.ErrUserNotFound):
		return writeError(c, fiber.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, ledger.ErrUserNotFound):
		return writeError(c, fiber.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return writeError(c, fiber.StatusPaymentRequired, "INSUFFICIENT_TOKENS", "Token balance too low")
	case errors.Is(err, ledger.ErrNonPositiveAmount):
		return writeError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive")
	case errors.Is(err, quota.ErrChatLimitReached):
		return writeError(c, fiber.StatusForbidden, "CHAT_LIMIT_REACHED", "Chat limit for the current tier reached")
	case errors.Is(err, quota.ErrAlreadyUnlocked):
		return writeError(c, fiber.StatusConflict, "ALREADY_UNLOCKED", "Message is already unlocked")
	case errors.Is(err, quota.ErrMessageNotFound):
		return writeError(c, fiber.StatusNotFound, "MESSAGE_NOT_FOUND", "Message not found")
	case errors.Is(err, quota.ErrPersonaExclusive):
		return writeError(c, fiber.StatusForbidden, "PERSONA_EXCLUSIVE", "Persona requires a higher subscription tier")
	case errors.Is(err, payment.ErrPaymentNotFound):
		return writeError(c, fiber.StatusNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	case errors.Is(err, payment.ErrSubscriptionNotFound):
		return writeError(c, fiber.StatusNotFound, "SUBSCRIPTION_NOT_FOUND", "Subscription not found")
	case errors.Is(err, payment.ErrInvalidSignature):
		return writeError(c, fiber.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature verification failed")
	case errors.Is(err, payment.ErrNotSubscriptionOwner):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "Subscription belongs to another user")
	case errors.Is(err, payment.ErrInvalidStatus):
		return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "Unknown payment status")
	case errors.Is(err, payment.ErrInvalidPurchase):
		return writeError(c, fiber.StatusBadRequest, "INVALID_PURCHASE", err.Error())
	case errors.Is(err, catalog.ErrUnknownTier):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_TIER", "Unknown subscription tier")
	case errors.Is(err, catalog.ErrUnknownPackage):
		return writeError(c, fiber.StatusBadRequest, "UNKNOWN_PACKAGE", "Unknown token package")
	case errors.Is(err, catalog.ErrAmountBelowMinimum):
		return writeError(c, fiber.StatusBadRequest, "AMOUNT_BELOW_MINIMUM", "Amount below minimum purchasable tokens")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Resource not found")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
