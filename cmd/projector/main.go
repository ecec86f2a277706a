package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/catalog"
	"github.com/shopcore/order-inventory/internal/config"
	kafkax "github.com/shopcore/order-inventory/internal/kafka"
	"github.com/shopcore/order-inventory/internal/postgres"
	"github.com/shopcore/order-inventory/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	projector := catalog.NewProjector(
		&catalog.Repo{DB: db},
		&redisx.Dedup{Client: rdb, Consumer: cfg.ProjectorGroup},
		logger,
	)

	consumer := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup,
		catalog.TopicProductChanged, cfg.ProjectorWorkers, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("projector consuming",
		zap.String("topic", catalog.TopicProductChanged),
		zap.String("group", cfg.ProjectorGroup),
		zap.Int("workers", cfg.ProjectorWorkers))
	if err := consumer.Start(ctx, projector.HandleMessage); err != nil {
		logger.Fatal("consumer", zap.Error(err))
	}
}
