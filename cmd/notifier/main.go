// The notifier consumes portal events from Kafka and logs the admin
// notifications for new submissions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/staffing/internal/portal/config"
	"github.com/gartstein/staffing/internal/portal/events"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(config.Path())
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.Topic, logger)
	defer consumer.Close()
	consumer.RegisterHandler(events.NotifyHandler(logger))

	logger.Info("Notifier started",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.ConsumerGroup),
	)
	consumer.Run(ctx)
	logger.Info("Notifier stopped")
}
