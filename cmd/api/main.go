package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/shopcore/order-inventory/internal/catalog"
	"github.com/shopcore/order-inventory/internal/config"
	"github.com/shopcore/order-inventory/internal/httpx"
	"github.com/shopcore/order-inventory/internal/inventory"
	kafkax "github.com/shopcore/order-inventory/internal/kafka"
	"github.com/shopcore/order-inventory/internal/orders"
	"github.com/shopcore/order-inventory/internal/postgres"
	"github.com/shopcore/order-inventory/internal/redisx"
	"github.com/shopcore/order-inventory/internal/users"
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

	orderProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, logger)
	orderProd.Start(ctx)
	catalogProd := kafkax.NewProducer(cfg.KafkaBrokers, catalog.TopicProductChanged, 1024, logger)
	catalogProd.Start(ctx)

	orderRepo := &orders.Repo{DB: db}
	orderSvc := orders.NewService(
		orderRepo,
		&users.StatsRepo{DB: db},
		orders.NewNumberGenerator(orderRepo),
		orderProd,
		logger,
		cfg.ServiceName,
	)
	inventorySvc := inventory.NewService(&inventory.Repo{DB: db}, logger)
	catalogSvc := catalog.NewService(&catalog.Repo{DB: db}, catalogProd, logger, cfg.ServiceName)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: orderSvc, Redis: rdb}).Register(router)
	(&httpx.InventoryHandler{Service: inventorySvc}).Register(router)
	(&httpx.CatalogHandler{Service: catalogSvc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)

	orderProd.Close()
	catalogProd.Close()
	cancel()
	orderProd.WaitClosed()
	catalogProd.WaitClosed()
}
