// notifier consumes reservation notifications from RabbitMQ and mails them
// to administrators. It pairs with NOTIFY_TRANSPORT=amqp on the API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/notification"
	"github.com/kc-reserve/hut-api/internal/repository"
	"github.com/kc-reserve/hut-api/pkg/broker"
	"github.com/kc-reserve/hut-api/pkg/config"
	"github.com/kc-reserve/hut-api/pkg/database"
	"github.com/kc-reserve/hut-api/pkg/logger"
	"github.com/kc-reserve/hut-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	deliverer := notification.NewDeliverer(
		mailer.NewSender(cfg.Mail, logr),
		repository.NewReservationRepository(db),
		nil,
		cfg.Notification.AppName,
		logr,
	)

	consumer := broker.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.Notification.Workers, logr)
	logr.Sugar().Infow("notifier starting", "queue", cfg.AMQP.Queue)
	if err := consumer.Run(ctx, handleDelivery(deliverer, logr)); err != nil && ctx.Err() == nil {
		logr.Fatal("consumer stopped", zap.Error(err))
	}
	logr.Info("notifier stopped")
}

func handleDelivery(deliverer *notification.Deliverer, logr *zap.Logger) broker.HandlerFunc {
	return func(ctx context.Context, d broker.Delivery) error {
		var msg notification.Message
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			return fmt.Errorf("decode %s: %w", d.Type, err)
		}
		if err := deliverer.Deliver(ctx, msg); err != nil {
			// Failed deliveries are logged and acked.
			logr.Error("notification delivery failed",
				zap.String("kind", string(msg.Kind)),
				zap.String("reservation_id", msg.ReservationID),
				zap.Error(err),
			)
		}
		return nil
	}
}
