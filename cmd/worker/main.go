package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cataloghttp "catalog-worker/internal/catalog/http"
	"catalog-worker/internal/catalog/messaging"
	"catalog-worker/internal/catalog/repository"
	"catalog-worker/internal/catalog/service"
	"catalog-worker/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	metricMutationsTotal   = "catalog_mutations_total"
	metricDeliveriesTotal  = "catalog_deliveries_total"
	metricDeliveryDuration = "catalog_delivery_duration_seconds"
	migrateSourcePrefix    = "file://"
	postgresDriverName     = "postgres"
)

func main() {
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	os.Exit(run(logger, level))
}

func run(logger *slog.Logger, level *slog.LevelVar) int {
	cfg, err := config.LoadWorker()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logger.Warn("unknown LOG_LEVEL, keeping info", "value", cfg.LogLevel)
	}

	if err := runMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Error("run migrations", "error", err)
		return 1
	}

	db, err := sql.Open(postgresDriverName, cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		return 1
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DBPingTimeout)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("ping database", "error", err)
		return 1
	}

	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricMutationsTotal,
		Help: "Catalog mutations by operation and outcome",
	}, []string{"operation", "outcome"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricDeliveriesTotal,
		Help: "Broker deliveries by queue and disposition",
	}, []string{"queue", "disposition"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricDeliveryDuration,
		Help:    "Time spent handling one delivery",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})
	prometheus.MustRegister(mutations, deliveries, duration)

	gateway := repository.NewGateway(db, logger, cfg.DBReadyTimeout)
	svc := service.New(gateway, logger, mutations)

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("connect rabbitmq", "error", err)
		return 1
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("open channel", "error", err)
		return 1
	}

	dispatcher, err := messaging.NewDispatcher(ch, messaging.Routes(cfg.Queues(), svc), messaging.Options{
		Prefetch:           cfg.Prefetch,
		DeadLetterExchange: cfg.DeadLetterExchange,
		ReplyQueue:         cfg.ReplyQueue,
		Metrics:            messaging.Metrics{Deliveries: deliveries, Duration: duration},
	}, logger)
	if err != nil {
		logger.Error("init dispatcher", "error", err)
		return 1
	}
	// Runs before the deferred conn.Close: channel first, then connection.
	defer func() {
		if err := dispatcher.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			logger.Warn("close channel", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := cataloghttp.NewRouter(map[string]cataloghttp.HealthChecker{
		"database": gateway,
		"broker":   dispatcher,
	}, prometheus.DefaultGatherer, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("ops server started", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErrCh <- err
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("catalog worker started", "prefetch", cfg.Prefetch, "reply_queue", cfg.ReplyQueue)
		errCh <- dispatcher.Run(ctx)
	}()

	code := 0
	waitForDrain := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		waitForDrain = true
	case err := <-errCh:
		if err != nil {
			logger.Error("dispatcher failed", "error", err)
			code = 1
		}
	case err := <-httpErrCh:
		logger.Error("http server failed", "error", err)
		stop()
		waitForDrain = true
		code = 1
	}

	if waitForDrain {
		shutdownDeadline := time.NewTimer(cfg.ShutdownTimeout)
		defer shutdownDeadline.Stop()
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("dispatcher stop failed", "error", err)
				code = 1
			}
		case <-shutdownDeadline.C:
			logger.Warn("dispatcher shutdown timeout reached")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		code = 1
	}

	logger.Info("catalog worker stopped")
	return code
}

func runMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New(migrateSourcePrefix+migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
