package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/martincharlesFajIT/fajtradingllc/internal/config"
	"github.com/martincharlesFajIT/fajtradingllc/internal/event"
	handler "github.com/martincharlesFajIT/fajtradingllc/internal/handler/http"
	"github.com/martincharlesFajIT/fajtradingllc/internal/storage"
	filestorage "github.com/martincharlesFajIT/fajtradingllc/internal/storage/file"
	redisstorage "github.com/martincharlesFajIT/fajtradingllc/internal/storage/redis"
	"github.com/martincharlesFajIT/fajtradingllc/internal/store"
	"github.com/martincharlesFajIT/fajtradingllc/pkg/health"
	pkgkafka "github.com/martincharlesFajIT/fajtradingllc/pkg/kafka"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	rdb        *goredis.Client
	producer   *pkgkafka.Producer
	cartStore  *store.Store
	httpServer *http.Server
}

// NewApp builds the dependency graph: storage adapter, optional Kafka
// producer, cart store (hydrated before serving), router, HTTP server.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	adapter, err := a.buildAdapter(ctx)
	if err != nil {
		return nil, err
	}

	var notifier store.Notifier
	if cfg.EventsEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		notifier = event.NewProducer(a.producer, cfg.StorageKey, logger)
		logger.Info("kafka cart events enabled", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.cartStore = store.New(adapter, cfg.StorageKey, notifier, logger)
	if err := a.cartStore.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize cart store: %w", err)
	}

	healthHandler := health.NewHandler()
	healthHandler.Register("cart_store", func(ctx context.Context) error {
		if !a.cartStore.Ready() {
			return fmt.Errorf("cart store not ready")
		}
		return nil
	})
	if pinger, ok := adapter.(storage.Pinger); ok {
		healthHandler.Register("storage", pinger.Ping)
	}

	router := handler.NewRouter(a.cartStore, healthHandler, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) buildAdapter(ctx context.Context) (storage.Adapter, error) {
	switch a.cfg.StorageBackend {
	case config.BackendRedis:
		a.rdb = goredis.NewClient(&goredis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPass,
			DB:       a.cfg.RedisDB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.RedisAddr),
			slog.Int("db", a.cfg.RedisDB),
		)
		ttl := time.Duration(a.cfg.CartTTL) * time.Hour
		return redisstorage.New(a.rdb, ttl), nil

	case config.BackendFile:
		adapter, err := filestorage.New(a.cfg.FileDir)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		a.logger.Info("using file storage", slog.String("dir", a.cfg.FileDir))
		return adapter, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %q", a.cfg.StorageBackend)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server, drains pending cart writes, and closes
// external clients.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	// Drain the write-through queue so the last mutation reaches storage.
	if err := a.cartStore.Close(shutdownCtx); err != nil {
		a.logger.Error("cart store close error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}
