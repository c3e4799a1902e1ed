package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/kv"
	"storefront-service/internal/ledger"
	"storefront-service/internal/orderstore"
	"storefront-service/internal/service"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()
	log.Printf("Durable store ready: backend=%s", cfg.Store.Backend)

	ctx := context.Background()

	stockLedger := ledger.New(store)
	if err := stockLedger.Load(ctx); err != nil {
		log.Fatalf("Failed to load stock ledger: %v", err)
	}
	log.Printf("Stock ledger loaded: products=%v", stockLedger.ProductIDs())

	orders := orderstore.New(store)
	if err := orders.Load(ctx); err != nil {
		log.Fatalf("Failed to load order store: %v", err)
	}
	log.Printf("Order store loaded: orders=%d", orders.Len())

	var publisher service.Publisher
	var auditWorker *worker.AuditWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		auditWorker = worker.NewAuditWorker(consumer)
	}

	compensator := worker.NewCompensator(stockLedger,
		time.Duration(cfg.Worker.CompensationRetrySeconds)*time.Second)

	checkoutService := service.NewCheckoutService(stockLedger, orders, publisher, compensator)
	adminService := service.NewAdminService(stockLedger, publisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		if err := compensator.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Compensation worker error: %v", err)
		}
	}()

	if auditWorker != nil {
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
				log.Printf("Audit worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(checkoutService, adminService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if auditWorker != nil {
		auditWorker.Stop()
	}

	log.Println("Server exited")
}

func newStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		return kv.NewRedis(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
	case "postgres":
		return kv.NewPostgres(cfg.Store.DatabaseURL)
	case "memory":
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
