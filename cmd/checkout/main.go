package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mtalha0777/arfurniture/internal/cache"
	"github.com/mtalha0777/arfurniture/internal/cart"
	"github.com/mtalha0777/arfurniture/internal/catalog"
	"github.com/mtalha0777/arfurniture/internal/config"
	checkoutgrpc "github.com/mtalha0777/arfurniture/internal/grpc"
	api "github.com/mtalha0777/arfurniture/internal/http"
	"github.com/mtalha0777/arfurniture/internal/logger"
	"github.com/mtalha0777/arfurniture/internal/metrics"
	"github.com/mtalha0777/arfurniture/internal/payment"
	"github.com/mtalha0777/arfurniture/internal/publisher"
	r "github.com/mtalha0777/arfurniture/internal/repository"
	"github.com/mtalha0777/arfurniture/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("checkout service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("checkout service starting", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort, "payment_mode", cfg.PaymentMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	creds := (*r.Credentials)(&cfg.DB)
	repo, err := r.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	// Product catalog
	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open product catalog: %w", err)
	}
	defer products.Close()

	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("run catalog migrations: %w", err)
	}
	log.Info("product catalog ready", "path", cfg.CatalogDBPath)

	// MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	mongoDB, err := cart.ConnectMongoDB(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			log.Warn("failed to disconnect from MongoDB", "error", err)
		}
	}()

	store := cart.NewMongoStore(mongoDB)
	if err := store.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	log.Info("connected to MongoDB", "database", cfg.MongoDBName)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// the cart works without its cache
		log.Warn("redis unavailable, cart cache degraded", "addr", cfg.RedisAddr, "error", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	cartService := cart.NewService(store, products, cache.NewRedisCache(redisClient), log)

	var gateway payment.Gateway
	switch cfg.PaymentMode {
	case "stripe":
		gateway = payment.NewStripeGateway(cfg.StripeBaseURL, cfg.StripeSecretKey)
	default:
		gateway = payment.NewSimulatedGateway(payment.RandomOutcome{FailPercent: cfg.SimulatedFailRatio})
	}
	gateway = payment.NewBreakerGateway(gateway, log)

	writer := publisher.NewKafkaWriter(cfg.KafkaBrokers, cfg.NotificationTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn("failed to close kafka writer", "error", err)
		}
	}()

	// The poller resumes stuck checkouts through the checkout service, which in turn
	// wakes the poller after each order.
	var checkoutService *service.CheckoutService
	poller := publisher.NewOutboxPoller(repo,
		publisher.ResumerFunc(func(ctx context.Context, s *r.CheckoutSession) error {
			return checkoutService.Resume(ctx, s)
		}),
		writer,
		publisher.Config{
			EventTick:     cfg.OutboxTick,
			RecoveryTick:  cfg.RecoveryTick,
			RecoveryGrace: cfg.RecoveryGrace,
		},
		m, log)

	orderWriter := service.NewOrderWriter(repo, cfg.ShippingFee, cfg.Currency, log)
	checkoutService = service.NewCheckoutService(
		repo,
		service.NewCartHandler(cartService, cfg.RequestTimeout),
		service.NewPaymentHandler(gateway, cfg.PaymentTimeout),
		orderWriter,
		service.NewReconciliationRecorder(repo, m, log),
		poller,
		m,
		log,
	)

	go poller.Run(ctx)

	checks := map[string]api.HealthCheck{
		"postgres": repo.Ping,
		"catalog":  products.Ping,
		"mongodb":  func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) },
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	limiter := api.NewRateLimiter(cfg.CheckoutRateLimit, cfg.CheckoutRateBurst)
	go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)

	router := api.NewRouter(
		api.RouterConfig{
			JWTSecret:      []byte(cfg.JWTSecret),
			RequestTimeout: cfg.RequestTimeout,
			MaxBodySize:    cfg.MaxRequestBodySize,
		},
		api.Handlers{
			Products: api.NewProductsHandler(products, cfg.Currency, cfg.RequestTimeout, log),
			Cart:     api.NewCartHandler(cartService, cfg.Currency, cfg.RequestTimeout, log),
			Checkout: api.NewCheckoutHandler(checkoutService, cfg.Currency, cfg.RequestTimeout, log),
			Orders:   api.NewOrdersHandler(orderWriter, cfg.RequestTimeout, log),
		},
		limiter, checks, m, prometheus.DefaultGatherer, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	grpcChecks := make(map[string]checkoutgrpc.Check, len(checks))
	for name, check := range checks {
		grpcChecks[name] = checkoutgrpc.Check(check)
	}
	grpcServer := checkoutgrpc.NewServer(grpcChecks, log)
	go grpcServer.Watch(ctx, 10*time.Second)

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen on grpc port: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("grpc health server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down checkout service")
	case err := <-errCh:
		stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", "error", err)
	}
	grpcServer.Shutdown()

	log.Info("checkout service stopped")
	return nil
}
