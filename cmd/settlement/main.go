package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tair/order-settlement/docs"
	"github.com/tair/order-settlement/internal/settlement"
	"github.com/tair/order-settlement/internal/settlement/gateway"
	"github.com/tair/order-settlement/internal/settlement/handler"
	"github.com/tair/order-settlement/internal/settlement/repository"
	"github.com/tair/order-settlement/kafka"
	"github.com/tair/order-settlement/pkg/database"
	"github.com/tair/order-settlement/pkg/logger"
	"github.com/tair/order-settlement/pkg/tracing"
)

func main() {
	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "settlement-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting settlement service")

	// Initialize tracer
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "settlementdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := repository.AutoMigrate(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Seed the default fee tiers
	if err := repository.SeedDefaultTiers(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to seed fee tiers")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Register payment gateways
	gateways := gateway.NewRegistry(
		gateway.NewSandbox(getEnv("SANDBOX_WEBHOOK_SECRET", "sandbox-webhook-secret")),
	)
	logger.Logger.Info().
		Strs("gateways", gateways.Names()).
		Msg("Payment gateways registered")

	// Kafka is optional: without brokers, webhook applies run inline and
	// settlement events are not published
	var publisher *kafka.Publisher
	var consumer *kafka.Consumer
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		brokerList := strings.Split(brokers, ",")

		publisher, err = kafka.NewPublisher(brokerList)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka publisher")
		}
		defer publisher.Close()

		consumer, err = kafka.NewConsumer(brokerList,
			getEnv("KAFKA_GROUP_ID", "settlement-service"),
			[]string{kafka.TopicGatewayWebhooks})
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
		}
		defer consumer.Close()
	}

	// Initialize handler with Wire DI
	settlementHandler, err := settlement.InitializeHandler(db, gateways, publisher)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize handler")
	}

	// Deferred webhook applies consume from the gateway-webhooks topic
	if consumer != nil {
		reconciler, err := settlement.InitializeWebhookReconciler(db, gateways, publisher)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to initialize webhook reconciler")
		}

		consumer.RegisterHandler(kafka.EventTypeWebhookReceived, func(ctx context.Context, event kafka.WebhookReceivedEvent) error {
			return reconciler.Apply(ctx, event.Gateway, event.GatewayEventID)
		})

		consumerCtx, cancelConsumer := context.WithCancel(context.Background())
		defer cancelConsumer()
		if err := consumer.Start(consumerCtx); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
		}
	}

	logger.Logger.Info().Msg("Settlement handler initialized")

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8084")
	startHTTPServer(settlementHandler, sqlDB, httpPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")
}

func startHTTPServer(settlementHandler *handler.SettlementHandler, db *sql.DB, port string) {
	// Setup router
	router := mux.NewRouter()

	// Register all middlewares using middleware registration system
	handler.RegisterMiddlewares(router, handler.DefaultMiddlewareConfig())

	// Register routes
	settlementHandler.RegisterRoutes(router)

	// Health check endpoint
	settlementHandler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Swagger UI
	handler.RegisterSwaggerDocs(router, httpSwagger.WrapHandler)

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	logger.Logger.Info().
		Str("port", port).
		Str("metrics_endpoint", "/metrics").
		Msg("HTTP server started")

	go func() {
		if err := http.ListenAndServe(":"+port, c.Handler(router)); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
