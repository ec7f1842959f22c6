package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"condogate/internal/adapters/http/middleware"
	"condogate/internal/adapters/http/routes"
	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/config"
	"condogate/internal/core/services"
	"condogate/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Failed to auto migrate: %v", err)
	}
	log.Println("✅ Database migration completed")

	// Seed development data
	if err := config.NewSeeder(db).Run(); err != nil {
		log.Printf("⚠️ Warning: Failed to seed data: %v", err)
	}

	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		log.Fatalf("❌ Failed to load timezone: %v", err)
	}

	// Daily gate digest (07:00). Reporting only; it never mutates token
	// or code state.
	digestAccess := services.NewAccessService(
		db,
		repositories.NewAccessRepository(db),
		nil,
		repositories.NewOccupancyRepository(db),
		nil,
		clk,
	)
	digest := services.NewDigestService(digestAccess, clk, cfg.Access.DigestCronSpec)
	if err := digest.Start(); err != nil {
		log.Fatalf("❌ Failed to start digest scheduler: %v", err)
	}
	defer digest.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CondoGate API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes (pass db and cfg for dependency injection)
	if err := routes.Setup(app, db, cfg); err != nil {
		log.Fatalf("❌ Failed to set up routes: %v", err)
	}

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
