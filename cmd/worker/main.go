package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"idol-server/internal/config"
	"idol-server/internal/database"
	"idol-server/internal/generation"
	"idol-server/internal/logger"
	"idol-server/internal/messaging"
	"idol-server/internal/worker"
)

const appID = "idol-worker"

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	cfg.LogSummary(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- External Connections ---
	pgPool, err := database.ConnectPostgres(ctx, cfg, database.DefaultRetryPolicy, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg, database.DefaultRetryPolicy, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	mqConn, err := messaging.Connect(ctx, cfg.RabbitMQURL, 30, 2*time.Second, log)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err), zap.String("url", messaging.MaskURL(cfg.RabbitMQURL)))
	}
	defer func() { _ = mqConn.Close() }()

	// --- Dependency Injection ---
	enrichPub, err := messaging.NewEnrichmentTaskPublisher(mqConn, cfg.EnrichmentTaskQueue, appID, log)
	if err != nil {
		log.Fatal("Failed to create enrichment task publisher", zap.Error(err))
	}
	updatesPub, err := messaging.NewSessionUpdatePublisher(mqConn, cfg.SessionUpdatesQueue, appID, log)
	if err != nil {
		log.Fatal("Failed to create session update publisher", zap.Error(err))
	}

	generator, err := generation.NewGenerator(cfg, log)
	if err != nil {
		log.Fatal("Failed to create text generator", zap.Error(err))
	}

	txHelper := database.NewTransactionHelper(pgPool, log)
	players := database.NewPgPlayerRepository(log)
	characters := database.NewPgCharacterRepository(log)
	sessions := database.NewPgSessionRepository(log)
	messages := database.NewPgMessageRepository(log)
	locker := database.NewRedisTurnLocker(redisClient, log)

	applier := worker.NewTurnApplier(txHelper, players, sessions, messages, updatesPub, log)
	negotiationHandler := worker.NewNegotiationHandler(pgPool, characters, sessions, messages, locker, generator, applier, enrichPub, cfg, log)
	enrichmentHandler := worker.NewEnrichmentHandler(pgPool, sessions, generator, updatesPub, cfg, log)
	sweeper := worker.NewSweeper(pgPool, players, messages, locker, applier, cfg, log)

	consumers := []*messaging.Consumer{
		messaging.NewConsumer(mqConn, messaging.ConsumerConfig{
			QueueName:      cfg.NegotiationTaskQueue,
			ConsumerTag:    appID + "-negotiation",
			Concurrency:    cfg.ConsumerConcurrency,
			HandlerTimeout: cfg.AITimeout + 30*time.Second,
		}, negotiationHandler, log),
		messaging.NewConsumer(mqConn, messaging.ConsumerConfig{
			QueueName:      cfg.EnrichmentTaskQueue,
			ConsumerTag:    appID + "-enrichment",
			Concurrency:    cfg.ConsumerConcurrency,
			HandlerTimeout: cfg.AITimeout + 30*time.Second,
		}, enrichmentHandler, log),
	}

	// --- Metrics ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Starting metrics server", zap.String("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", zap.Error(err))
		}
	}()

	var background sync.WaitGroup
	if cfg.PushgatewayURL != "" {
		pusher, err := worker.NewMetricsPusher(cfg.PushgatewayURL, cfg.PushInterval, log)
		if err != nil {
			// pull через /metrics продолжает работать
			log.Warn("Pushgateway unavailable, metrics push disabled", zap.Error(err))
		} else {
			background.Add(1)
			go func() {
				defer background.Done()
				pusher.Run(ctx)
			}()
		}
	}

	// --- Start ---
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal("Failed to start stale turn sweeper", zap.Error(err))
	}

	for _, c := range consumers {
		background.Add(1)
		go func(c *messaging.Consumer) {
			defer background.Done()
			if err := c.StartConsuming(); err != nil {
				log.Error("Consumer stopped with error", zap.Error(err))
			}
		}(c)
	}
	log.Info("Worker started")

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down worker...")

	for _, c := range consumers {
		c.Stop()
	}
	sweeper.Stop()
	cancel()
	background.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("Metrics server forced to shutdown", zap.Error(err))
	}
	log.Info("Worker exiting")
}
