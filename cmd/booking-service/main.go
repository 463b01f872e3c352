package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	"ms-booking/internal/booking/db"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/gateway"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/mailer"
	"ms-booking/internal/minting"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := pingWithRetry(sqldb, cfg.Database.ConnectRetries, cfg.Database.RetryInterval, log); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("postgres unreachable: %v", err))
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	if err := db.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("migration failed: %v", err))
	}

	store := &db.DB{Bun: bunDB}

	// --- Redis seat holds ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	var seats booking.SeatHolder
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("redis unreachable, seat holds disabled: %v", err))
	} else {
		seats = bookingredis.NewSeatLock(redisClient, cfg.Redis.SeatHoldTTL)
		log.Info("REDIS", "seat hold lock connected at "+cfg.Redis.Addr)
	}

	// --- Lifecycle events ---
	var events booking.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, log)
		defer producer.Close()
		events = producer
		log.LogKafka("INIT", cfg.Kafka.Topics.OrderCreated, "lifecycle events enabled")
	}

	// --- External collaborators ---
	gatewayClient := gateway.NewClient(cfg.Gateway, log)
	mintClient := minting.NewClient(cfg.Minting, log)
	mailClient := mailer.New(cfg.Email, log)

	service := booking.NewService(store, seats, gatewayClient, mintClient, mailClient, events, log, cfg.Server.BaseURL, cfg.Gateway.QueryTimeout)
	handler := api.NewHandler(service, log)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	handler.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "booking service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("http server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("forced shutdown: %v", err))
	}
	log.Info("SERVER", "server exited gracefully")
}

// pingWithRetry keeps probing the store while it finishes booting. Only
// the connection attempt repeats; nothing else is retried at startup.
func pingWithRetry(sqldb *sql.DB, retries int, interval time.Duration, log *logger.Logger) error {
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		if err = sqldb.Ping(); err == nil {
			log.LogDatabase("CONNECT", "orders", "postgres connection established")
			return nil
		}
		log.Warn("DATABASE", fmt.Sprintf("postgres not ready (attempt %d/%d): %v", attempt, retries, err))
		time.Sleep(interval)
	}
	return err
}
