package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/http/handlers"
	"github.com/judicature/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	requestHandler *handlers.RequestHandler,
	orderHandler *handlers.OrderHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Gateway webhooks: signature-authenticated, never rate limited — a
	// throttled redelivery would delay reconciliation for no gain.
	api.Post("/webhooks/gateway", webhookHandler.HandleGatewayWebhook)

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Get("/me/payout-account", userHandler.GetPayoutAccount)
	protected.Put("/me/payout-account", userHandler.SetPayoutAccount)
	protected.Delete("/me/payout-account", userHandler.ClearPayoutAccount)

	// Payment requests
	protected.Post("/requests", requestHandler.CreateRequest)
	protected.Get("/requests", requestHandler.ListRequests)
	protected.Get("/requests/:id", requestHandler.GetRequest)
	protected.Post("/requests/:id/respond", requestHandler.Respond)
	protected.Post("/requests/:id/pay", requestHandler.ProceedWithPayment)
	protected.Post("/requests/:id/cancel", requestHandler.CancelRequest)

	// Orders
	protected.Get("/orders", orderHandler.ListOrders)
	protected.Get("/orders/:id", orderHandler.GetOrder)
	protected.Get("/orders/:id/events", orderHandler.GetOrderEvents)
	protected.Post("/orders/:id/capture", orderHandler.CapturePayment)
	protected.Post("/orders/:id/deliverables", orderHandler.SubmitDeliverable)
	protected.Get("/orders/:id/deliverables", orderHandler.ListDeliverables)
	protected.Post("/deliverables/:deliverableId/review", orderHandler.ReviewDeliverable)
	protected.Delete("/deliverables/:deliverableId", orderHandler.WithdrawDeliverable)
	protected.Post("/orders/:id/release", orderHandler.ReleaseFunds)
	protected.Post("/orders/:id/dispute", orderHandler.RaiseDispute)

	// Admin-only financial operations
	admin := protected.Group("", middleware.AdminMiddleware())
	admin.Post("/orders/:id/resolve", orderHandler.ResolveDispute)
	admin.Post("/orders/:id/refund", orderHandler.RefundOrder)
	admin.Post("/orders/:id/cancel", orderHandler.CancelOrder)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
