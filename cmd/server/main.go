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

	"github.com/MetroMindsErie/rnbvslive/config"
	"github.com/MetroMindsErie/rnbvslive/internal/api"
	"github.com/MetroMindsErie/rnbvslive/internal/broker"
	"github.com/MetroMindsErie/rnbvslive/internal/notify"
	"github.com/MetroMindsErie/rnbvslive/internal/payment"
	"github.com/MetroMindsErie/rnbvslive/internal/qr"
	"github.com/MetroMindsErie/rnbvslive/internal/redisclient"
	"github.com/MetroMindsErie/rnbvslive/internal/service"
	"github.com/MetroMindsErie/rnbvslive/internal/store"
	"github.com/MetroMindsErie/rnbvslive/internal/util"
	"github.com/MetroMindsErie/rnbvslive/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting ticketing service")

	tp, err := util.InitTracer("ticketing-service", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	encoder := qr.NewEncoder(cfg.Ticketing.BaseURL, cfg.Ticketing.QRSecret)

	provider, err := payment.NewProvider(cfg.Ticketing)
	if err != nil {
		log.Fatalf("Failed to configure payment provider: %v", err)
	}
	log.Printf("Payment provider: %s", provider.Name())

	inventoryService := service.NewInventoryService(db, redisClient)
	purchaseService := service.NewPurchaseService(db, inventoryService, eventPublisher, encoder)
	redemptionService := service.NewRedemptionService(db, encoder,
		time.Duration(cfg.Ticketing.RedemptionGraceHours)*time.Hour)

	ctx := context.Background()
	if err := inventoryService.SyncToRedis(ctx); err != nil {
		log.Printf("Failed to sync inventory to Redis: %v", err)
	}

	var gateway notify.Gateway
	if cfg.Notify.SendGridAPIKey != "" {
		gateway = notify.NewSendGridGateway(
			cfg.Notify.SendGridAPIKey,
			cfg.Notify.FromEmail,
			cfg.Notify.TwilioAccountSID,
			cfg.Notify.TwilioAuthToken,
			cfg.Notify.TwilioFromNumber,
		)
	} else {
		gateway = notify.NewLogGateway(logger)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicTickets, cfg.Kafka.ConsumerGroup)
	notifyWorker := worker.NewNotificationWorker(notifyConsumer, gateway, db)
	go func() {
		if err := notifyWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(purchaseService, redemptionService, db, redisClient, encoder, provider, cfg.Ticketing.BaseURL)
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
	notifyWorker.Stop()

	log.Println("Server exited")
}
