package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"tutor-service/internal/cache"
	"tutor-service/internal/config"
	"tutor-service/internal/events"
	"tutor-service/internal/http-server/router"
	"tutor-service/internal/identity"
	"tutor-service/internal/lock"
	svc "tutor-service/internal/service"
	"tutor-service/internal/storage/postgres"
	slogpretty "tutor-service/pkg/handlers/slogpretty"
	"tutor-service/pkg/middleware/mwMetrics"
	"tutor-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	loc, err := cfg.Booking.Location()
	if err != nil {
		log.Error("Invalid booking timezone", slog.String("timezone", cfg.Booking.Timezone), sl.Err(err))
		os.Exit(1)
	}

	minRate, err := decimal.NewFromString(cfg.Booking.MinHourlyRate)
	if err != nil {
		log.Error("Invalid min hourly rate", sl.Err(err))
		os.Exit(1)
	}

	storage, err := postgres.New(cfg.StoragePath, cfg.Storage.QueryTimeout, cfg.Storage.MaxOpenConns)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err := storage.Migrate(); err != nil {
		log.Error("Failed to apply migrations", sl.Err(err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		log.Error("Failed to connect to redis", sl.Err(err))
		os.Exit(1)
	}

	locker := lock.NewRedisLockWithClient(rdb)
	searchCache := cache.NewRedisCache(rdb, cfg.Cache.TutorSearchTTL)

	var publisher events.Publisher = events.Nop{}
	var kafkaPublisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher = kafkaPublisher
	} else {
		log.Warn("Kafka brokers not configured, domain events are dropped")
	}

	verifier, err := identity.NewFirebaseVerifier(context.Background(), cfg.Identity.ProjectID, cfg.Identity.CredentialsFile, cfg.Identity.Timeout)
	if err != nil {
		log.Error("Failed to init identity verifier", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(log, storage, locker, searchCache, publisher, svc.Options{
		Location:      loc,
		MinHourlyRate: minRate,
		LockTTL:       cfg.Booking.LockTTL,
		LockWait:      cfg.Booking.LockWait,
		AdminEmails:   cfg.AdminEmails,
	})

	metrics := mwMetrics.New()

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router.New(log, service, verifier, metrics, storage),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error("Failed to close kafka publisher", sl.Err(err))
		} else {
			log.Info("Kafka publisher closed")
		}
	}

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := rdb.Close(); err != nil {
		log.Error("Failed to close redis", sl.Err(err))
	} else {
		log.Info("Redis closed")
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
