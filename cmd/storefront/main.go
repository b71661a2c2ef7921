package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Sylius/FrontWing/internal/cache"
	"github.com/Sylius/FrontWing/internal/config"
	"github.com/Sylius/FrontWing/internal/gateway"
	h "github.com/Sylius/FrontWing/internal/http"
	"github.com/Sylius/FrontWing/internal/logger"
	"github.com/Sylius/FrontWing/internal/outbox"
	"github.com/Sylius/FrontWing/internal/session"
	"github.com/Sylius/FrontWing/internal/tokenstore"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := gateway.New(gateway.Config{
		BaseURL: cfg.APIURL,
		Timeout: cfg.RequestTimeout,
		Logger:  log.Named("gateway"),
	})
	if err != nil {
		log.Fatal("failed to create commerce API client", zap.Error(err))
	}

	opts := []session.Option{
		session.WithLogger(log.Named("session")),
		session.WithFetchTimeout(cfg.RequestTimeout),
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, running without order cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	} else {
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
		opts = append(opts,
			session.WithCache(cache.NewRedisCache(redisClient)),
			session.WithSyncGuard(cache.NewSyncGuard(redisClient)),
		)
	}
	sessions := session.NewManager(client, opts...)

	db, err := outbox.Open(cfg.OutboxDBPath)
	if err != nil {
		log.Fatal("failed to open outbox database", zap.Error(err))
	}
	defer db.Close()
	if err := outbox.RunMigrations(db, cfg.MigrationsPath); err != nil {
		log.Fatal("failed to run outbox migrations", zap.Error(err))
	}
	log.Info("outbox migrations completed")
	events := outbox.NewRepository(db)

	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		writer := outbox.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...)
		defer writer.Close()
		poller := outbox.NewOutboxPoller(events, writer, cfg.PollInterval, log.Named("outbox"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
		log.Info("outbox poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		log.Warn("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	limiter := h.NewRateLimiter(cfg.MutationRate, cfg.MutationBurst)
	wg.Add(1)
	go func() {
		defer wg.Done()
		limiter.Run(ctx)
	}()

	router := h.NewRouter(h.RouterConfig{
		Sessions:       sessions,
		Tokens:         tokenstore.New(tokenstore.Options{Secure: !cfg.Development()}),
		Checkout:       client,
		Catalog:        client,
		Accounts:       client,
		Events:         events,
		Limiter:        limiter,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxRequestBodySize,
		SecureCookies:  !cfg.Development(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("api_url", cfg.APIURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	wg.Wait()

	log.Info("server exited")
}
