package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	cartrepo "storefront/internal/repository/cart"
	categoryrepo "storefront/internal/repository/category"
	customerrepo "storefront/internal/repository/customer"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	cartsvc "storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	customersvc "storefront/internal/service/customer"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	"storefront/internal/session"
	"storefront/internal/telemetry"
)

const metricsNamespace = "storefront"

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(metricsNamespace, reg)

	ready := map[string]httpserver.Pinger{"db": dbpool}
	sessions := sessionStore(ctx, cfg, logger, ready)

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, 4, logger)
		if err != nil {
			logger.Fatal("connect to amqp", zap.Error(err))
		}
		defer amqpPub.Close()
		publisher = amqpPub
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool)
	tokenRepo := tokenrepo.NewPostgres(dbpool)
	if n, err := tokenRepo.DeleteExpired(ctx, time.Now()); err != nil {
		logger.Warn("purge expired tokens", zap.Error(err))
	} else if n > 0 {
		logger.Info("purged expired tokens", zap.Int64("count", n))
	}

	productService := productsvc.New(productRepo, categoryRepo, cfg.ImageBaseURL, logger)
	categoryService := categorysvc.New(categoryRepo, productService)
	customerService := customersvc.New(customerrepo.NewPostgres(dbpool, logger), tokenRepo, logger)
	cartService := cartsvc.New(cartsvc.Deps{
		Carts:        cartrepo.NewPostgres(dbpool),
		Products:     productRepo,
		Sessions:     sessions,
		ImageBaseURL: cfg.ImageBaseURL,
		Logger:       logger,
		Metrics:      metrics,
	})
	orderService := ordersvc.New(ordersvc.Deps{
		Orders:    orderrepo.NewPostgres(dbpool, logger),
		Carts:     cartService,
		Sessions:  sessions,
		Publisher: publisher,
		Metrics:   metrics,
		Logger:    logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Products:   productService,
		Categories: categoryService,
		Carts:      cartService,
		Orders:     orderService,
		Customers:  customerService,
		Sessions:   sessions,
		Cookie: httpserver.CookieConfig{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.Secure,
		},
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     telemetry.NewHTTPMetrics(metricsNamespace, reg),
		Gatherer:    reg,
		Ready:       ready,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

// sessionStore picks Redis when REDIS_ADDR is set and falls back to an
// in-process store otherwise.
func sessionStore(ctx context.Context, cfg config.Config, logger *zap.Logger, ready map[string]httpserver.Pinger) session.Store {
	if cfg.Redis.Addr == "" {
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory")
		mem := session.NewMemoryStore(cfg.Session.TTL)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mem.Sweep()
				}
			}
		}()
		return mem
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := session.NewRedisStore(client, cfg.Session.TTL)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Fatal("connect to redis", zap.Error(err))
	}
	ready["redis"] = store
	return store
}
