package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/assets"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/contact"
	"github.com/fjod/storefront/internal/genai"
	"github.com/fjod/storefront/internal/heartbeat"
	"github.com/fjod/storefront/internal/httpapi"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/profile"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/session"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/internal/upload"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("storefront stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}

	gateway, err := openStore(ctx, cfg, clk, log)
	if err != nil {
		return err
	}
	defer gateway.Close()

	templates, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer templates.Close()
	if err := templates.RunMigrations(cfg.Catalog.MigrationsPath); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}

	var cache profile.Cache = profile.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", "addr", cfg.RedisAddr)
		cache = profile.NewRedisCache(redisClient)
	}

	m := metrics.New()
	deps := session.Deps{Store: gateway, Clock: clk, Metrics: m, Logger: log}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer pub.Close()
		deps.Publisher = pub
		log.Info("order events enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	sessions := session.NewManager(cfg, deps)
	defer sessions.Close()

	monitor := heartbeat.New(cfg.Heartbeat, clk, nil, log)
	go monitor.Run(ctx)

	server := httpapi.NewServer(httpapi.Deps{
		Sessions:  sessions,
		Catalog:   templates,
		Assets:    assets.NewRecorder(cfg.AppID, genai.NewImageClient(cfg.GenAI, log), gateway, m, log),
		Uploads:   upload.NewSimulator(cfg.Upload, clk, nil, m, log),
		Profiles:  profile.NewService(cfg.AppID, gateway, cache, log),
		Contact:   contact.NewService(cfg.AppID, gateway, log),
		Assistant: genai.NewTextClient(cfg.GenAI, log),
		Status:    monitor,
		Metrics:   m.Handler(),
		Clock:     clk,
		Logger:    log,
	}, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     server.Router(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("storefront starting", "port", cfg.HTTPPort, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock, log *slog.Logger) (store.Gateway, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		db, err := store.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		g := store.NewMongo(db, clk, log)
		if err := g.CreateIndexes(ctx); err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to create indexes: %w", err)
		}
		log.Info("connected to MongoDB", "database", cfg.Mongo.Database)
		return g, nil
	case config.BackendPostgres:
		g, err := store.NewPostgres(cfg.Postgres, clk, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		if err := g.RunMigrations(cfg.Postgres); err != nil {
			g.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("connected to Postgres", "host", cfg.Postgres.Host, "db", cfg.Postgres.DBName)
		return g, nil
	default:
		log.Info("using in-memory store")
		return store.NewMemory(clk, log), nil
	}
}
