package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/VelvetChat/app/controllers"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Provider webhooks authenticate via signature, not user identity.
	v1.Post("/payments/webhook", controllers.HandlePaymentWebhook)

	// Everything else requires the gateway-injected user identity.
	authed := v1.Group("", middleware.UserAuthMiddleware())

	authed.Get("/users/:id/balance", controllers.HandleGetUserBalance)
	authed.Get("/users/:id/subscription", controllers.HandleGetUserSubscription)

	authed.Get("/catalog/tiers", controllers.HandleGetCatalogTiers)
	authed.Get("/catalog/packages", controllers.HandleGetCatalogPackages)

	authed.Post("/purchases", controllers.HandleInitiatePurchase)
	authed.Post("/purchases/:id/complete", controllers.HandleCompletePurchase)

	authed.Post("/subscriptions", controllers.HandleCreateSubscription)
	authed.Delete("/subscriptions/:id", controllers.HandleCancelSubscription)

	authed.Post("/chats", controllers.HandleCreateChat)
	authed.Get("/chats", controllers.HandleListChats)
	authed.Get("/chats/:id/messages", controllers.HandleGetChatMessages)
	authed.Post("/chats/:id/messages", controllers.HandleSendMessage)
	authed.Post("/chats/:id/messages/:messageId/unlock", controllers.HandleUnlockMessage)

	authed.Get("/topup/settings", controllers.HandleGetAutoTopup)
	authed.Put("/topup/settings", controllers.HandlePutAutoTopup)

	admin := authed.Group("/admin", middleware.RequireAdminMiddleware())
	admin.Get("/settings", controllers.HandleAdminGetSettings)
	admin.Put("/settings", controllers.HandleAdminUpdateSettings)
	admin.Post("/personas", controllers.HandleAdminCreatePersona)
	admin.Put("/personas/:id", controllers.HandleAdminUpdatePersona)
	admin.Post("/users/:id/balance-adjustments", controllers.HandleAdminAdjustBalance)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
