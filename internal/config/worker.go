package config

import (
	"fmt"
	"time"

	"catalog-worker/internal/catalog"

	"github.com/kelseyhightower/envconfig"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultMigrationsPath  = "migrations/catalog"
	defaultShutdownTimeout = 10 * time.Second

	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 5 * time.Minute
	defaultDBPingTimeout     = 5 * time.Second
	defaultDBReadyTimeout    = 2 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

// Worker is the environment of the catalog mutation worker. Fields are flat
// so every key maps to exactly one variable name. Unset fields take the
// default* constants and the names from DefaultQueues.
type Worker struct {
	DatabaseURL       string        `envconfig:"DATABASE_URL"`
	RabbitMQURL       string        `envconfig:"RABBITMQ_URL"`
	HTTPAddr          string        `envconfig:"HTTP_ADDR"`
	MigrationsPath    string        `envconfig:"MIGRATIONS_PATH"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT"`

	Prefetch           int    `envconfig:"RABBITMQ_PREFETCH" default:"1"`
	ReplyQueue         string `envconfig:"REPLY_QUEUE"`
	DeadLetterExchange string `envconfig:"DEAD_LETTER_EXCHANGE"`

	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME"`
	DBPingTimeout     time.Duration `envconfig:"DB_PING_TIMEOUT"`
	DBReadyTimeout    time.Duration `envconfig:"DB_READY_TIMEOUT"`

	QueueCreateCategory    string `envconfig:"QUEUE_CATEGORIAS_CREAR"`
	QueueUpdateCategory    string `envconfig:"QUEUE_CATEGORIAS_ACTUALIZAR"`
	QueueDeleteCategory    string `envconfig:"QUEUE_CATEGORIAS_ELIMINAR"`
	QueueCreateSubcategory string `envconfig:"QUEUE_SUBCATEGORIAS_CREAR"`
	QueueUpdateSubcategory string `envconfig:"QUEUE_SUBCATEGORIAS_ACTUALIZAR"`
	QueueDeleteSubcategory string `envconfig:"QUEUE_SUBCATEGORIAS_ELIMINAR"`
}

// Queues names the queue bound to each mutation.
type Queues struct {
	CreateCategory    string
	UpdateCategory    string
	DeleteCategory    string
	CreateSubcategory string
	UpdateSubcategory string
	DeleteSubcategory string
}

// DefaultQueues returns the queue names the producers publish to.
func DefaultQueues() Queues {
	return Queues{
		CreateCategory:    catalog.QueueCreateCategory,
		UpdateCategory:    catalog.QueueUpdateCategory,
		DeleteCategory:    catalog.QueueDeleteCategory,
		CreateSubcategory: catalog.QueueCreateSubcategory,
		UpdateSubcategory: catalog.QueueUpdateSubcategory,
		DeleteSubcategory: catalog.QueueDeleteSubcategory,
	}
}

func (q Queues) All() []string {
	return []string{
		q.CreateCategory,
		q.UpdateCategory,
		q.DeleteCategory,
		q.CreateSubcategory,
		q.UpdateSubcategory,
		q.DeleteSubcategory,
	}
}

func (w Worker) Queues() Queues {
	return Queues{
		CreateCategory:    w.QueueCreateCategory,
		UpdateCategory:    w.QueueUpdateCategory,
		DeleteCategory:    w.QueueDeleteCategory,
		CreateSubcategory: w.QueueCreateSubcategory,
		UpdateSubcategory: w.QueueUpdateSubcategory,
		DeleteSubcategory: w.QueueDeleteSubcategory,
	}
}

func LoadWorker() (Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return Worker{}, fmt.Errorf("process env: %w", err)
	}

	cfg.applyDefaults()

	if cfg.DatabaseURL == "" {
		return Worker{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQURL == "" {
		return Worker{}, fmt.Errorf("RABBITMQ_URL is required")
	}
	if cfg.Prefetch < 1 {
		return Worker{}, fmt.Errorf("RABBITMQ_PREFETCH must be at least 1")
	}

	seen := make(map[string]bool)
	for _, q := range cfg.Queues().All() {
		if seen[q] {
			return Worker{}, fmt.Errorf("queue %q is bound to more than one operation", q)
		}
		seen[q] = true
	}
	if seen[cfg.ReplyQueue] {
		return Worker{}, fmt.Errorf("REPLY_QUEUE %q collides with a command queue", cfg.ReplyQueue)
	}

	return cfg, nil
}

func (w *Worker) applyDefaults() {
	w.HTTPAddr = withDefault(w.HTTPAddr, defaultHTTPAddr)
	w.MigrationsPath = withDefault(w.MigrationsPath, defaultMigrationsPath)
	w.ShutdownTimeout = withDefault(w.ShutdownTimeout, defaultShutdownTimeout)
	w.ReadHeaderTimeout = withDefault(w.ReadHeaderTimeout, defaultReadHeaderTimeout)

	w.DBMaxOpenConns = withDefault(w.DBMaxOpenConns, defaultDBMaxOpenConns)
	w.DBMaxIdleConns = withDefault(w.DBMaxIdleConns, defaultDBMaxIdleConns)
	w.DBConnMaxLifetime = withDefault(w.DBConnMaxLifetime, defaultDBConnMaxLifetime)
	w.DBPingTimeout = withDefault(w.DBPingTimeout, defaultDBPingTimeout)
	w.DBReadyTimeout = withDefault(w.DBReadyTimeout, defaultDBReadyTimeout)

	q := DefaultQueues()
	w.QueueCreateCategory = withDefault(w.QueueCreateCategory, q.CreateCategory)
	w.QueueUpdateCategory = withDefault(w.QueueUpdateCategory, q.UpdateCategory)
	w.QueueDeleteCategory = withDefault(w.QueueDeleteCategory, q.DeleteCategory)
	w.QueueCreateSubcategory = withDefault(w.QueueCreateSubcategory, q.CreateSubcategory)
	w.QueueUpdateSubcategory = withDefault(w.QueueUpdateSubcategory, q.UpdateSubcategory)
	w.QueueDeleteSubcategory = withDefault(w.QueueDeleteSubcategory, q.DeleteSubcategory)
}

func withDefault[T comparable](value, fallback T) T {
	var zero T
	if value == zero {
		return fallback
	}
	return value
}
