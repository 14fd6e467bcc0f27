package controllers

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/VelvetChat/internal/pkg/ledger"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/quota"
)

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestWriteDomainErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"insufficient balance", ledger.ErrInsufficientBalance, fiber.StatusPaymentRequired},
		{"chat limit", quota.ErrChatLimitReached, fiber.StatusForbidden},
		{"already unlocked", quota.ErrAlreadyUnlocked, fiber.StatusConflict},
		{"message missing", quota.ErrMessageNotFound, fiber.StatusNotFound},
		{"payment missing", payment.ErrPaymentNotFound, fiber.StatusNotFound},
		{"bad signature", payment.ErrInvalidSignature, fiber.StatusUnauthorized},
		{"unknown", assert.AnError, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return writeDomainError(c, tt.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
