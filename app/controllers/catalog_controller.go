package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
)

// HandleGetCatalogTiers lists all subscription tiers in upgrade order.
func HandleGetCatalogTiers(c *fiber.Ctx) error {
	cat := catalog.Default()
	return c.JSON(fiber.Map{
		"version": cat.Version,
		"tiers":   cat.Tiers(),
	})
}

// HandleGetCatalogPackages lists fixed token packages plus the custom-amount
// quote for an optional ?amount= query.
func HandleGetCatalogPackages(c *fiber.Ctx) error {
	cat := catalog.Default()

	response := fiber.Map{
		"version":  cat.Version,
		"packages": cat.Packages(),
	}

	if amount := c.QueryInt("amount"); amount > 0 {
		quote, err := cat.PriceForCustomAmount(int64(amount))
		if err != nil {
			return writeDomainError(c, err)
		}
		response["custom_quote"] = quote
	}

	return c.JSON(response)
}
