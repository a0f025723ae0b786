package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/drypzz/api-StockSystem/internal/auth"
	"github.com/drypzz/api-StockSystem/internal/config"
	"github.com/drypzz/api-StockSystem/internal/email"
	"github.com/drypzz/api-StockSystem/internal/gateway/mercadopago"
	"github.com/drypzz/api-StockSystem/internal/metrics"
	"github.com/drypzz/api-StockSystem/internal/repository"
	"github.com/drypzz/api-StockSystem/internal/service"
	transport "github.com/drypzz/api-StockSystem/internal/transport/http"
	"github.com/drypzz/api-StockSystem/internal/transport/http/handler"
	"github.com/drypzz/api-StockSystem/internal/worker"
	"github.com/drypzz/api-StockSystem/pkg/db"
	"github.com/drypzz/api-StockSystem/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, "stock-system-api")
	if err != nil {
		log.Fatalf("Failed to init trace: %v", err)
	}

	logLevel := "debug"
	if cfg.Env == "prod" {
		logLevel = "info"
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: logLevel,
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Error connecting to postgres: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	defer func() {
		_ = redisClient.Close()
	}()

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Error creating token manager: %v", err)
	}

	m := metrics.New()

	userRepo := repository.NewUserRepository(pool, logger)
	categoryRepo := repository.NewCategoryRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	gateway := mercadopago.NewClient(
		cfg.MercadoPago.BaseURL,
		cfg.MercadoPago.AccessToken,
		cfg.MercadoPago.Timeout,
		logger,
	)

	sender := email.NewSMTPSender(cfg.SMTP, logger)

	authService := service.NewAuthService(userRepo, tokens, logger)
	categoryService := service.NewCategoryService(categoryRepo, logger)
	productService := service.NewCachedProductService(
		service.NewProductService(productRepo, categoryRepo, logger),
		redisClient,
		cfg.Redis.CacheTTL,
	)
	orderService := service.NewOrderService(pool, logger, orderRepo, productRepo, userRepo, gateway, m)
	notificationService := service.NewNotificationService(pool, logger, orderRepo, userRepo, sender, m)
	paymentService := service.NewPaymentService(pool, logger, orderRepo, userRepo, gateway, notificationService, m, cfg.MercadoPago)

	sweeper := worker.NewExpirationSweeper(
		pool,
		orderRepo,
		productRepo,
		gateway,
		m,
		logger,
		cfg.Sweeper.Interval,
		cfg.Sweeper.BatchSize,
	)
	go sweeper.Start(ctx)

	metricsServer := &http.Server{
		Addr: cfg.Metrics.Port,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{
			Registry: m.Registry,
		}),
	}
	go func() {
		log.Println("Metrics listening on: " + cfg.Metrics.Port)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Error listening on metrics port: %v\n", err)
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &transport.Handlers{
		Auth:     handler.NewAuthHandler(authService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
		Payment:  handler.NewPaymentHandler(paymentService, logger),
		Product:  handler.NewProductHandler(productService, logger),
		Category: handler.NewCategoryHandler(categoryService, logger),
	}

	transport.RegisterRoutes(app, handlers, tokens)

	logger.Info("Stock system API started!")

	go func() {
		log.Println("HTTP Service listening on: " + cfg.HTTP.Port)
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			log.Fatalf("Error listening on HTTP port %v: %v\n", cfg.HTTP.Port, err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownContext); err != nil {
		log.Printf("Error shutting down HTTP app: %v\n", err)
	} else {
		log.Println("HTTP App stopped gracefully")
	}

	if err := metricsServer.Shutdown(shutdownContext); err != nil {
		log.Printf("Error shutting down metrics server: %v\n", err)
	}

	if err := tp.Shutdown(shutdownContext); err != nil {
		log.Printf("Error shutting down telemetry: %v\n", err)
	} else {
		log.Println("Telemetry stopped correctly")
	}
}
