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

	"auction-service/config"
	"auction-service/internal/api"
	"auction-service/internal/broker"
	"auction-service/internal/clock"
	"auction-service/internal/feed"
	"auction-service/internal/redisclient"
	"auction-service/internal/service"
	"auction-service/internal/store"
	"auction-service/internal/util"
	"auction-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting auction service")

	tp, err := util.InitTracer("auction-service", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	clk := clock.System{}

	var distLock service.DistLocker
	if cfg.Auction.DistributedLock {
		distLock = redisClient
	}

	identityClient := service.NewIdentityClient(db, redisClient)
	auctionService := service.NewAuctionService(db, eventPublisher, clk, cfg.Auction.EndingSoonWindow)
	bidService := service.NewBidService(db, eventPublisher, clk, distLock, service.BidServiceConfig{
		EndingSoonWindow: cfg.Auction.EndingSoonWindow,
		MaxRetries:       cfg.Auction.BidMaxRetries,
		RetryBackoff:     cfg.Auction.BidRetryBackoff,
		LockTTL:          cfg.Auction.LockTTL,
	})
	queryService := service.NewQueryService(db, clk, cfg.Auction.EndingSoonWindow)
	watchService := service.NewWatchService(db)

	hub := feed.NewHub(queryService.Snapshot)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	feedConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	feedWorker := worker.NewFeedWorker(feedConsumer, hub)
	go func() {
		if err := feedWorker.Start(workerCtx); err != nil {
			log.Printf("Feed worker error: %v", err)
		}
	}()

	sweepWorker := worker.NewSweepWorker(db, eventPublisher, clk, cfg.Auction.SweepInterval, cfg.Auction.EndingSoonWindow)
	go func() {
		if err := sweepWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sweep worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(auctionService, bidService, queryService, watchService, identityClient, hub)
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
	feedWorker.Stop()

	log.Println("Server exited")
}
