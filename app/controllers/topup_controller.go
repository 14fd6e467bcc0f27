package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/app/repository"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/usercontext"
)

// HandleGetAutoTopup returns the user's auto-topup configuration. Users
// without one get a disabled default.
func HandleGetAutoTopup(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	settings, err := repository.GetGlobalRepositories().AutoTopup.GetByUserID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(&models.AutoTopupSettings{UserID: userCtx.UserID, Enabled: false})
		}
		return writeDomainError(c, err)
	}
	return c.JSON(settings)
}

type autoTopupRequest struct {
	Enabled         bool   `json:"enabled"`
	ThresholdTokens int64  `json:"threshold_tokens"`
	PackageID       string `json:"package_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

// HandlePutAutoTopup creates or replaces the user's auto-topup configuration.
func HandlePutAutoTopup(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication")
	}

	var req autoTopupRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}

	if req.Enabled {
		if req.ThresholdTokens < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_THRESHOLD", "threshold_tokens must be non-negative")
		}
		if _, err := catalog.Default().Package(req.PackageID); err != nil {
			return writeDomainError(c, err)
		}
		if req.PaymentMethodID == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAYMENT_METHOD", "payment_method_id is required")
		}
	}

	settings := &models.AutoTopupSettings{
		UserID:          userCtx.UserID,
		Enabled:         req.Enabled,
		ThresholdTokens: req.ThresholdTokens,
		PackageID:       req.PackageID,
		PaymentMethodID: req.PaymentMethodID,
	}
	if err := repository.GetGlobalRepositories().AutoTopup.Upsert(settings); err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(settings)
}
