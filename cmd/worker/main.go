package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/db"
	"github.com/judicature/backend/internal/events"
	"github.com/judicature/backend/internal/payments"
	"github.com/judicature/backend/internal/repositories"
	"github.com/judicature/backend/internal/services"
)

// Worker runs the periodic housekeeping jobs: auto-cancelling stale pending
// orders (no money has moved on them) and purging webhook dedup records
// past the retention window.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	webhookRepo := repositories.NewWebhookRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	var gateway payments.Gateway
	if cfg.GatewaySecretKey == "" {
		gateway = payments.NewStubGateway()
	} else {
		gateway = payments.NewStripeGateway(cfg.GatewayAPIBase, cfg.GatewaySecretKey, log)
	}
	orderService := services.NewOrderService(orderRepo, userRepo, auditRepo, gateway, publisher, cfg, log)

	log.Info("worker started")

	staleTicker := time.NewTicker(5 * time.Minute)
	purgeTicker := time.NewTicker(6 * time.Hour)
	defer staleTicker.Stop()
	defer purgeTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-staleTicker.C:
			runStaleCancel(ctx, orderService, log)
		case <-purgeTicker.C:
			runWebhookPurge(ctx, webhookRepo, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		}
	}
}

func runStaleCancel(ctx context.Context, orderService *services.OrderService, log *zap.Logger) {
	n, err := orderService.CancelStalePending(ctx)
	if err != nil {
		log.Error("stale order sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("cancelled stale pending orders", zap.Int("count", n))
	}
}

func runWebhookPurge(ctx context.Context, webhookRepo *repositories.WebhookRepo, cfg *config.Config, log *zap.Logger) {
	n, err := webhookRepo.PurgeOlderThan(ctx, cfg.WebhookRetention)
	if err != nil {
		log.Error("webhook purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("purged webhook dedup records", zap.Int64("count", n))
	}
}
