package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"restricted-backend/internal/auth"
	"restricted-backend/internal/config"
	"restricted-backend/internal/engine"
	"restricted-backend/internal/membership"
	"restricted-backend/internal/notify"
	"restricted-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Membership gateway and grant notifier
	lookup := membership.NewStoreLookup(db.Pool)
	notifier := notify.NewNotifier(
		buildSink(cfg.Mail),
		func(ctx context.Context, username string) (string, string, error) {
			return store.ContactForUser(ctx, db.Pool, username)
		},
		notify.SiteInfo{
			Title:      cfg.Mail.SiteTitle,
			URL:        cfg.Mail.SiteURL,
			AdminEmail: cfg.Mail.AdminEmail,
		})

	// 5. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New())
	app.Use(auth.IdentityMiddleware(cfg.JWTSecret))

	// 6. Routes
	authHandler := auth.NewAuthHandler(db, cfg.JWTSecret)
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/register", authHandler.Register)
	app.Post("/api/auth/refresh", authHandler.Refresh)
	app.Get("/api/admin/users", auth.RequireSysadmin(), authHandler.ListUsers)

	handler := engine.NewHandler(db, lookup, lookup, notifier)
	engine.RegisterRoutes(app, handler)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 7. Listen
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildSink(cfg config.MailConfig) notify.Sink {
	if cfg.Sink == "webhook" && cfg.WebhookURL != "" {
		return notify.NewWebhookSink(cfg.WebhookURL)
	}
	return notify.NewSMTPSink(cfg.SMTPAddr, cfg.From)
}

// errorHandler maps AppErrors to their status and payload; anything else is
// a 500 with a generic message.
func errorHandler(c *fiber.Ctx, err error) error {
	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(500).JSON(engine.ErrorResponse{
		Error: engine.NewAppError("INTERNAL", 500, "Internal server error"),
	})
}
