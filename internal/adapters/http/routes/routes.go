package routes

import (
	"fmt"

	"condogate/internal/adapters/gateway"
	"condogate/internal/adapters/http/handlers"
	"condogate/internal/adapters/http/middleware"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/config"
	"condogate/internal/core/services"
	"condogate/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) error {
	// Clock: every validity comparison runs on the complex's local zone
	clk, err := clock.New(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("clock setup failed: %w", err)
	}

	// Initialize repositories
	occupancyRepo := repositories.NewOccupancyRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	tokenRepo := repositories.NewTokenRepository(db)
	accessRepo := repositories.NewAccessRepository(db)
	authCodeRepo := repositories.NewAuthCodeRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Outbound adapters. A nil concrete client must stay nil through the
	// interface, otherwise the nil checks downstream never fire.
	var pushGateway services.PushGateway
	if g := gateway.NewHTTPPushGateway(cfg.Gateway.PushURL, cfg.Gateway.PushKey); g != nil {
		pushGateway = g
	}
	var replica services.DocumentReplica
	if r := gateway.NewHTTPDocumentReplica(cfg.Gateway.ReplicaURL); r != nil {
		replica = r
	}

	// Initialize services
	notifyService := services.NewNotificationService(auditRepo, accountRepo, occupancyRepo, pushGateway, replica, clk)
	occupancyService := services.NewOccupancyService(db, occupancyRepo, auditRepo, clk)
	accountService := services.NewAccountService(db, accountRepo, occupancyRepo, clk, cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	tokenService := services.NewTokenService(db, tokenRepo, accountRepo, occupancyRepo, notifyService, clk, cfg.Access.TokenLength)
	accessService := services.NewAccessService(db, accessRepo, tokenService, occupancyRepo, notifyService, clk)
	authCodeService := services.NewAuthCodeService(db, authCodeRepo, occupancyRepo, clk)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	occupancyHandler := handlers.NewOccupancyHandler(occupancyService)
	accountHandler := handlers.NewAccountHandler(accountService)
	tokenHandler := handlers.NewTokenHandler(tokenService)
	accessHandler := handlers.NewAccessHandler(accessService, authCodeService)
	notificationHandler := handlers.NewNotificationHandler(notifyService)

	// API v1 routes
	api := app.Group("/api/v1")

	// Public routes
	api.Get("/health", healthHandler.Check)
	api.Post("/auth/login", accountHandler.Login)

	// Gate terminal routes. The booth authenticates with its own account,
	// but validation stays reachable without a session so a dead tablet
	// login never blocks the barrier.
	api.Get("/tokens/validate/:value", tokenHandler.Validate)
	api.Post("/access", accessHandler.Record)
	api.Post("/codes/redeem", accessHandler.RedeemCode)

	// Authenticated routes
	auth := api.Group("", middleware.AuthMiddleware(cfg))

	auth.Post("/auth/change-password", accountHandler.ChangePassword)
	auth.Get("/auth/profile", accountHandler.Profile)

	// Occupancy registry
	auth.Post("/units", occupancyHandler.CreateUnit)
	auth.Get("/units", occupancyHandler.ListUnits)
	auth.Get("/units/:id", occupancyHandler.GetUnit)
	auth.Get("/units/:id/household", occupancyHandler.GetHousehold)
	auth.Get("/units/:id/tokens", tokenHandler.ListByUnit)
	auth.Get("/audit/:entity/:id", occupancyHandler.ChangeLog)
	auth.Post("/owners", occupancyHandler.RegisterOwner)
	auth.Post("/owners/consort", occupancyHandler.RegisterConsort)
	auth.Post("/owners/retire", occupancyHandler.RetireOwner)
	auth.Post("/owners/transfer", occupancyHandler.TransferOwnership)
	auth.Post("/residents", occupancyHandler.RegisterResident)
	auth.Patch("/residents/:id/deactivate", occupancyHandler.DeactivateResidency)
	auth.Patch("/residents/:id/reactivate", occupancyHandler.ReactivateResidency)
	auth.Post("/members", occupancyHandler.AddFamilyMember)
	auth.Patch("/members/:id/deactivate", occupancyHandler.DeactivateMembership)
	auth.Patch("/members/:id/reactivate", occupancyHandler.ReactivateMembership)
	auth.Put("/persons/:id", occupancyHandler.UpdatePerson)
	auth.Post("/vehicles", occupancyHandler.RegisterVehicle)
	auth.Post("/guards", occupancyHandler.RegisterGuard)

	// Credential accounts
	auth.Post("/accounts", accountHandler.Create)
	auth.Get("/accounts/:id", accountHandler.Get)
	auth.Patch("/accounts/:id/status", accountHandler.SetStatus)
	auth.Delete("/accounts/:id", accountHandler.Delete)
	auth.Get("/accounts/:id/events", accountHandler.ListEvents)

	// Access tokens
	auth.Post("/tokens/self", tokenHandler.IssueSelf)
	auth.Post("/tokens/visitor", tokenHandler.IssueVisitor)
	auth.Patch("/tokens/:id/void", tokenHandler.Void)
	auth.Get("/tokens", tokenHandler.List)

	// Access events and reporting
	auth.Get("/access/statistics", accessHandler.Statistics)
	auth.Get("/access/:id", accessHandler.Get)
	auth.Get("/access", accessHandler.List)
	auth.Post("/access/:id/correct", accessHandler.Correct)
	auth.Post("/access/phone", accessHandler.RecordPhoneAuthorization)
	auth.Post("/codes", accessHandler.IssueCode)

	// Household notifications
	auth.Get("/notifications", notificationHandler.List)
	auth.Post("/notifications", notificationHandler.Send)

	return nil
}
