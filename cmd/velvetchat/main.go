package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/VelvetChat/app/models"
	"github.com/ManuelReschke/VelvetChat/app/repository"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/cache"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/catalog"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/database"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/env"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/payment"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/router"
	"github.com/ManuelReschke/VelvetChat/internal/pkg/topup"
)

func main() {
	app, mon := NewApplication()

	// Stop the sweep loop before the HTTP server goes away.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		mon.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *topup.Monitor) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	if err := models.LoadSettings(db); err != nil {
		log.Printf("Warning: could not load settings, using defaults: %v", err)
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "VelvetChat",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	// auto-topup background sweep
	provider := paymentProviderFromEnv()
	paySvc := payment.NewServiceFromDB(db, catalog.Default(), provider)
	mon := topup.NewMonitor(topup.NewStore(db), paySvc, topup.NewRedisGuard(), time.Minute)
	mon.Start()

	return app, mon
}

func paymentProviderFromEnv() payment.Provider {
	if env.GetEnv("PAYMENT_PROVIDER", "mock") == "stripe" {
		return payment.NewStripeProviderFromEnv()
	}
	return payment.NewMockProvider(env.GetEnv("PAYMENT_WEBHOOK_SECRET", "whsec_dev"))
}
