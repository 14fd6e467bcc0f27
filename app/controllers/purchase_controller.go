package controllers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/database"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/env"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/usercontext"
)

var (
	paymentProvider     payment.Provider
	paymentProviderOnce sync.Once
)

// getPaymentProvider selects the configured payment provider. Anything but
// "stripe" falls back to the mock provider, which is what tests and local
// development run against.
func getPaymentProvider() payment.Provider {
	paymentProviderOnce.Do(func() {
		switch strings.ToLower(env.GetEnv("PAYMENT_PROVIDER", "mock")) {
		case "stripe":
			paymentProvider = payment.NewStripeProviderFromEnv()
		default:
			paymentProvider = payment.NewMockProvider(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "whsec_dev"))
		}
	})
	return paymentProvider
}

func newPaymentService() *payment.Service {
	return payment.NewServiceFromDB(database.GetDB(), catalog.Default(), getPaymentProvider())
}

type purchaseRequest struct {
	PackageID       string `json:"package_id"`
	CustomAmount    int64  `json:"custom_amount"`
	PaymentMethodID string `json:"payment_method_id"`
	AutoTopup       bool   `json:"auto_topup"`
}

// HandleInitiatePurchase starts a token purchase for the authenticated user.
// Exactly one of package_id or custom_amount must be set.
func HandleInitiatePurchase(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	var req purchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := newPaymentService()
	p, checkout, err := svc.InitiatePurchase(ctx, payment.PurchaseInput{
		UserID:          userCtx.UserID,
		PackageID:       req.PackageID,
		CustomAmount:    req.CustomAmount,
		PaymentMethodID: req.PaymentMethodID,
		AutoTopup:       req.AutoTopup,
	})
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"payment_id":   p.ID,
		"status":       p.Status,
		"tokens":       p.Tokens,
		"amount_cents": p.AmountCents,
		"currency":     p.Currency,
		"checkout":     checkout,
	})
}

// HandleCompletePurchase is the pull path: it polls the provider for the
// payment's status and reconciles. Safe to call repeatedly.
func HandleCompletePurchase(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_PAYMENT_ID", "Invalid payment id")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	svc := newPaymentService()

	p, perr := svc.GetPayment(ctx, uint(id))
	if perr != nil {
		return writeDomainError(c, perr)
	}
	if p.UserID != userCtx.UserID && !userCtx.IsAdmin {
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "Payment belongs to another user")
	}

	result, rerr := svc.CompletePurchase(ctx, uint(id))
	if rerr != nil {
		return writeDomainError(c, rerr)
	}
	return c.JSON(result)
}

// HandlePaymentWebhook is the push path. It is unauthenticated; trust comes
// from the signature over the raw body. Persistence failures return 5xx so
// the provider retries.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := firstHeaderValue(c, "Stripe-Signature", "X-Webhook-Signature")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc := newPaymentService()
	result, err := svc.HandleWebhook(ctx, rawBody, signature)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(result)
}

func firstHeaderValue(c *fiber.Ctx, keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(c.Get(k))
		if v != "" {
			return v
		}
	}
	return ""
}
