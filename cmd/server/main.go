package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"idol-server/internal/authutils"
	"idol-server/internal/config"
	"idol-server/internal/database"
	"idol-server/internal/generation"
	"idol-server/internal/handler"
	"idol-server/internal/logger"
	"idol-server/internal/messaging"
	"idol-server/internal/middleware"
	"idol-server/internal/service"
	"idol-server/internal/stream"
)

const appID = "idol-server"

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	cfg.LogSummary(log)

	// --- External Connections ---
	ctx := context.Background()

	pgPool, err := database.ConnectPostgres(ctx, cfg, database.DefaultRetryPolicy, log)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()

	if cfg.RunMigrations {
		if err := database.RunMigrations(cfg.GetDSN(), log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

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
	taskPub, err := messaging.NewNegotiationTaskPublisher(mqConn, cfg.NegotiationTaskQueue, appID, log)
	if err != nil {
		log.Fatal("Failed to create negotiation task publisher", zap.Error(err))
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
	minigameResults := database.NewPgMinigameRepository(log)
	cards := database.NewPgCardRepository(log)
	units := database.NewPgUnitRepository(log)

	negotiationSvc := service.NewNegotiationService(pgPool, txHelper, players, characters, sessions, messages, taskPub, cfg, log)
	minigameSvc := service.NewMinigameService(txHelper, players, minigameResults, cfg.InitialTickets, log)
	crisisSvc := service.NewCrisisService(txHelper, players, generator, cfg, log)
	squadSvc := service.NewSquadService(pgPool, txHelper, players, cards, units, cfg.InitialTickets, log)

	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}
	authMiddleware := middleware.GinAuth(verifier.VerifyToken, log)
	rateLimitMiddleware := handler.NewRateLimitMiddleware(redisClient, cfg.RateLimitPerMinute, log)

	// --- Live session stream ---
	streamCtx, stopStream := context.WithCancel(context.Background())
	connManager := stream.NewConnectionManager(log)
	go connManager.Run(streamCtx)
	wsHandler := stream.NewWebSocketHandler(connManager, cfg.AllowedOrigins(), log)

	updatesConsumer := messaging.NewConsumer(mqConn, messaging.ConsumerConfig{
		QueueName:      cfg.SessionUpdatesQueue,
		ConsumerTag:    appID + "-updates",
		Concurrency:    1,
		HandlerTimeout: 10 * time.Second,
		UpdatesQueue:   true,
	}, stream.NewUpdateForwarder(connManager, log), log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapLogger(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": connManager.Online()})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	apiHandler := handler.NewHandler(negotiationSvc, minigameSvc, crisisSvc, squadSvc, log)
	apiHandler.RegisterRoutes(router, authMiddleware, rateLimitMiddleware, wsHandler.ServeWS)

	// Prometheus подключается после регистрации маршрутов
	p.Use(router)

	// --- Background consumers ---
	go func() {
		log.Info("Starting session updates consumer...")
		if err := updatesConsumer.StartConsuming(); err != nil {
			log.Error("Session updates consumer stopped with error", zap.Error(err))
		} else {
			log.Info("Session updates consumer stopped gracefully")
		}
	}()

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	updatesConsumer.Stop()
	stopStream()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exiting")
}
