package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/staffing/internal/portal/accesscode"
	"github.com/gartstein/staffing/internal/portal/auth"
	"github.com/gartstein/staffing/internal/portal/config"
	"github.com/gartstein/staffing/internal/portal/controller"
	"github.com/gartstein/staffing/internal/portal/db"
	"github.com/gartstein/staffing/internal/portal/events"
	"github.com/gartstein/staffing/internal/portal/handlers"
	"github.com/gartstein/staffing/internal/portal/middleware"
	"github.com/gartstein/staffing/internal/portal/redisstore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// publisher is satisfied by both the Kafka producer and the stub.
type publisher interface {
	controller.EventProducer
	Close()
}

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger := initLogger(cfg)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	producer := initPublisher(cfg, logger)
	defer producer.Close()

	var (
		revocations auth.RevocationStore = repo
		limiter     middleware.RateLimitStore
	)
	if redisCfg, ok := cfg.Redis(); ok {
		rdb, err := redisstore.NewClient(ctx, redisCfg, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
		revocations = redisstore.NewRevocationStore(rdb, "")
		if cfg.RateLimitRequests > 0 {
			limiter = redisstore.NewSlidingWindow(rdb, "portal:ratelimit", cfg.RateLimitRequests, cfg.RateLimitWindow)
		}
	} else {
		logger.Warn("REDIS_ADDR not set, using database token revocation and no rate limiting")
		go purgeRevokedTokens(ctx, repo, cfg.RevocationPurgeInterval, logger)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, revocations)

	verifier := controller.NewVerificationService(repo, producer, logger)
	handler := handlers.NewHandler(
		verifier,
		controller.NewIntakeService(repo, producer, logger),
		controller.NewAdminService(repo, accesscode.NewGenerator(), tokens, producer, logger),
		controller.NewClientService(repo, verifier, tokens, producer, logger),
		logger,
	)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:        handler,
		Tokens:         tokens,
		RateLimit:      limiter,
		Metrics:        metrics,
		MetricsHandler: promhttp.Handler(),
		Health:         repo.Ping,
		Logger:         logger,
	})

	server := handlers.NewServer(cfg.HTTPPort, router, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
		server.Stop(cfg.ShutdownTimeout)
	}
	logger.Info("Portal stopped properly")
}

// initLogger builds a Zap production logger at the configured level.
func initLogger(cfg *config.Config) *zap.Logger {
	level, _ := cfg.ZapLevel()
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("portal")
}

// initDatabase connects with exponential backoff so the API can start
// before the database is ready.
func initDatabase(cfg *config.Config, logger *zap.Logger) (*db.Repository, error) {
	var repo *db.Repository
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		r, err := db.NewRepository(cfg.Database())
		if err != nil {
			logger.Warn("Database not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		repo = r
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.DBConnectRetries)))
	return repo, err
}

// initPublisher returns a Kafka producer, or a logging stub when no brokers
// are configured or Kafka is unreachable.
func initPublisher(cfg *config.Config, logger *zap.Logger) publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, events will only be logged")
		return events.NewStubPublisher(logger)
	}
	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Error("Failed to initialize Kafka producer, events will only be logged", zap.Error(err))
		return events.NewStubPublisher(logger)
	}
	return producer
}

// purgeRevokedTokens periodically deletes database revocations whose tokens
// have expired anyway.
func purgeRevokedTokens(ctx context.Context, repo *db.Repository, every time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := repo.PurgeRevokedTokens(ctx, now.UTC())
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Failed to purge revoked tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Purged revoked tokens", zap.Int64("count", n))
			}
		}
	}
}
