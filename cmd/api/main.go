package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/db"
	"github.com/judicature/backend/internal/events"
	apphttp "github.com/judicature/backend/internal/http"
	"github.com/judicature/backend/internal/http/handlers"
	"github.com/judicature/backend/internal/payments"
	"github.com/judicature/backend/internal/repositories"
	"github.com/judicature/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	requestRepo := repositories.NewRequestRepo(pool)
	webhookRepo := repositories.NewWebhookRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Payment gateway
	var gateway payments.Gateway
	if cfg.GatewaySecretKey == "" {
		log.Warn("no gateway secret configured, using stub gateway")
		gateway = payments.NewStubGateway()
	} else {
		gateway = payments.NewStripeGateway(cfg.GatewayAPIBase, cfg.GatewaySecretKey, log)
	}

	// Services
	authService := services.NewAuthService(userRepo, cfg, log)
	userService := services.NewUserService(userRepo, auditRepo, log)
	orderService := services.NewOrderService(orderRepo, userRepo, auditRepo, gateway, publisher, cfg, log)
	requestService := services.NewRequestService(requestRepo, orderService, userRepo, auditRepo, publisher, cfg, log)
	webhookService := services.NewWebhookService(webhookRepo, orderRepo, auditRepo, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService, log)
	userHandler := handlers.NewUserHandler(userService, log)
	requestHandler := handlers.NewRequestHandler(requestService, log)
	orderHandler := handlers.NewOrderHandler(orderService, auditRepo, log)
	webhookHandler := handlers.NewWebhookHandler(webhookService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, requestHandler, orderHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
