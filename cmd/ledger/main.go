package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/db"
	"github.com/kmassidik/payflow/internal/common/kafka"
	"github.com/kmassidik/payflow/internal/common/logger"
	"github.com/kmassidik/payflow/internal/common/middleware"
	"github.com/kmassidik/payflow/internal/common/redis"
	"github.com/kmassidik/payflow/internal/dlq"
	"github.com/kmassidik/payflow/internal/wallet"
	"github.com/kmassidik/payflow/pkg/events"
	"github.com/kmassidik/payflow/pkg/outbox"
)

func main() {
	godotenv.Load()

	log := logger.New("ledger")

	cfg, err := config.Load("ledger")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	redisClient, err := redis.Connect(cfg.Redis, log)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := producer.Ping(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("Failed to reach Kafka: %v", err)
	}
	cancelPing()

	outboxRepo := outbox.NewRepository(database.DB, log)
	walletRepo := wallet.NewRepository(database, log)
	walletService := wallet.NewService(walletRepo, outboxRepo, redisClient, database, log)
	walletHandler := wallet.NewHandler(walletService, log)

	dlqRepo := dlq.NewRepository(database, log)

	retry := wallet.RetryPolicy{
		MaxAttempts:    cfg.Saga.RefundMaxAttempts,
		InitialBackoff: cfg.Saga.RefundInitialBackoff,
		Multiplier:     2,
		MaxBackoff:     2 * time.Second,
	}

	// The dead letter service replays through the consumer, and the consumer
	// records into the dead letter store. Build the consumer first with the
	// store-backed sink, then hand its replay to the service.
	var walletConsumer *wallet.Consumer
	dlqService := dlq.NewService(dlqRepo, func(ctx context.Context, topic string, payload []byte) error {
		return walletConsumer.Replay(ctx, topic, payload)
	}, log)
	walletConsumer = wallet.NewConsumer(walletService, dlqService, retry, log)
	dlqHandler := dlq.NewHandler(dlqService, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := outbox.NewPublisher(outboxRepo, producer, log, cfg.Saga.OutboxPollInterval, cfg.Saga.OutboxBatchSize)
	go publisher.Start(ctx)

	consumers := make([]*kafka.Consumer, 0, len(events.LedgerTopics()))
	for _, topic := range events.LedgerTopics() {
		consumer := kafka.NewConsumer(cfg.Kafka, topic, log)
		consumers = append(consumers, consumer)

		go func(topic string, consumer *kafka.Consumer) {
			if err := consumer.Consume(ctx, walletConsumer.HandlerFor(topic)); err != nil {
				log.Errorf("Consumer for %s stopped: %v", topic, err)
			}
		}(topic, consumer)
	}

	mux := http.NewServeMux()
	walletHandler.RegisterRoutes(mux, cfg.JWT.Secret)
	dlqHandler.RegisterRoutes(mux, cfg.JWT.Secret)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(r.Context()); err != nil {
			status = "database unavailable"
			code = http.StatusServiceUnavailable
		} else if err := redisClient.Health(r.Context()); err != nil {
			status = "redis unavailable"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status, "service": cfg.Service.Name})
	})

	handler := middleware.CORS(
		middleware.Logging(log)(
			middleware.Recovery(log)(
				middleware.RateLimit(100, 200)(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Ledger listening on :%s", cfg.Service.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP shutdown failed: %v", err)
	}
	for _, consumer := range consumers {
		consumer.Close()
	}

	log.Info("Ledger stopped")
}
