package controllers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/app/repository"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/database"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
)

// HandleAdminGetSettings returns the live quota and pricing settings.
func HandleAdminGetSettings(c *fiber.Ctx) error {
	settings, err := repository.GetGlobalRepositories().Setting.GetQuota()
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(settings)
}

// HandleAdminUpdateSettings validates and persists new quota settings, then
// swaps the in-memory snapshot all services read.
func HandleAdminUpdateSettings(c *fiber.Ctx) error {
	var settings models.QuotaSettings
	if err := c.BodyParser(&settings); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}

	if err := repository.GetGlobalRepositories().Setting.SaveQuota(&settings); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_SETTINGS", err.Error())
	}
	return c.JSON(&settings)
}

// HandleAdminCreatePersona creates a persona, including its lock economics.
func HandleAdminCreatePersona(c *fiber.Ctx) error {
	var persona models.Persona
	if err := c.BodyParser(&persona); err != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}
	if persona.Status == "" {
		persona.Status = models.STATUS_ACTIVE
	}
	if persona.LockProbability < 0 || persona.LockProbability > 1 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_LOCK_PROBABILITY", "lock_probability must be within [0,1]")
	}

	if err := repository.GetGlobalRepositories().Persona.Create(&persona); err != nil {
		return writeDomainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(&persona)
}

// HandleAdminUpdatePersona updates an existing persona.
func HandleAdminUpdatePersona(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_PERSONA_ID", "Invalid persona id")
	}

	repos := repository.GetGlobalRepositories()
	persona, perr := repos.Persona.GetByID(uint(id))
	if perr != nil {
		if errors.Is(perr, gorm.ErrRecordNotFound) {
			return writeError(c, fiber.StatusNotFound, "PERSONA_NOT_FOUND", "Persona not found")
		}
		return writeDomainError(c, perr)
	}

	if berr := c.BodyParser(persona); berr != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}
	persona.ID = uint(id)
	if persona.LockProbability < 0 || persona.LockProbability > 1 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_LOCK_PROBABILITY", "lock_probability must be within [0,1]")
	}

	if uerr := repos.Persona.Update(persona); uerr != nil {
		return writeDomainError(c, uerr)
	}
	return c.JSON(persona)
}

type balanceAdjustmentRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// HandleAdminAdjustBalance credits (positive amount) or debits (negative
// amount) a user's token balance. Debits observe the non-negative invariant.
func HandleAdminAdjustBalance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_USER_ID", "Invalid user id")
	}

	var req balanceAdjustmentRequest
	if berr := c.BodyParser(&req); berr != nil {
		return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "Malformed request body")
	}
	if req.Amount == 0 {
		return writeError(c, fiber.StatusBadRequest, "INVALID_AMOUNT", "amount must be non-zero")
	}

	svc := ledger.NewServiceFromDB(database.GetDB())
	var (
		balance int64
		lerr    error
	)
	reason := req.Reason
	if reason == "" {
		reason = "admin_adjustment"
	}
	if req.Amount > 0 {
		balance, lerr = svc.Credit(context.Background(), uint(id), req.Amount, reason)
	} else {
		balance, lerr = svc.Debit(context.Background(), uint(id), -req.Amount)
	}
	if lerr != nil {
		return writeDomainError(c, lerr)
	}

	return c.JSON(fiber.Map{
		"user_id":       uint(id),
		"token_balance": balance,
		"adjustment":    req.Amount,
		"reason":        req.Reason,
	})
}
