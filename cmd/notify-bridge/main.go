package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/judicature/backend/internal/config"
	"github.com/judicature/backend/internal/db"
	"github.com/judicature/backend/internal/events"
	"github.com/judicature/backend/internal/services"
)

// Notify Bridge — small service that subscribes to Redis lifecycle events
// and forwards user notifications to the internal notification sink
// (email/push delivery lives behind it).

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	notifier := services.NewNotifierClient(cfg.NotifyInternalURL, log)

	log.Info("notify-bridge started")

	forward := func(event events.Event) {
		log.Info("forwarding event", zap.String("type", event.Type))
		// An order event concerns both sides; a request event likewise.
		for _, key := range []string{"payer_id", "payee_id", "proposer_id", "counterparty_id"} {
			userID, ok := event.Payload[key].(string)
			if !ok || userID == "" {
				continue
			}
			_ = notifier.Send(ctx, services.Notification{
				UserID:  userID,
				Kind:    event.Type,
				Payload: event.Payload,
			})
		}
	}

	_ = subscriber.Subscribe(ctx, events.StreamOrders, forward)
	_ = subscriber.Subscribe(ctx, events.StreamRequests, forward)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
