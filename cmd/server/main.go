package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/cache"
	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	apperrors "github.com/example/storefront/internal/errors"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/logging"
	"github.com/example/storefront/internal/repository"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	decimal.MarshalJSONWithoutQuotes = true

	db := database.Connect(cfg.DatabaseURL, cfg.IsProduction())
	redisClient := connectRedis(cfg.Redis, logger)

	users := repository.NewUserRepository(db)
	orders := repository.NewOrderRepository(db)
	catalog := repository.NewCatalogRepository(db)

	admins := services.NewAllowList(cfg.AdminEmails)
	sessions := utils.NewSessionSigner(utils.DeriveKey(cfg.JWTSecret, utils.PurposeSession), cfg.TokenExpires)
	stateKey := utils.DeriveKey(cfg.JWTSecret, utils.PurposeOAuthState)

	var (
		denylist  services.TokenDenylist
		sequencer services.Sequencer = services.NewCountSequencer(orders)
	)
	if redisClient != nil {
		denylist = services.NewRedisDenylist(redisClient)
		if cfg.Orders.Sequencer == "redis" {
			sequencer = services.NewRedisSequencer(redisClient, orders)
		}
	} else if cfg.Orders.Sequencer == "redis" {
		logger.Warn("ORDER_SEQUENCER=redis needs Redis; using the count sequencer")
	}

	var notifier services.OrderNotifier
	if telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, logger); telegram.Enabled() {
		notifier = telegram
	}

	google := services.NewGoogleService(cfg.Google, logger)
	identity := services.NewIdentityService(users, admins, logger)
	gate := services.NewAdminGate(sessions, users, admins, denylist, logger)
	orderService := services.NewOrderService(orders, catalog, sequencer, notifier, services.OrderServiceConfig{
		CreateAttempts: cfg.Orders.CreateAttempts,
		Defaults: services.AddressDefaults{
			City:    cfg.Orders.DefaultCity,
			State:   cfg.Orders.DefaultState,
			Country: cfg.Orders.DefaultCountry,
		},
	}, logger)

	app := fiber.New(fiber.Config{
		AppName:      "Storefront",
		ErrorHandler: apperrors.FiberErrorHandler(logger, cfg.IsProduction()),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	routes.Register(app, routes.Handlers{
		Health: handlers.NewHealthHandler(healthChecks(db, redisClient)),
		Auth:   handlers.NewAuthHandler(google, identity, sessions, gate, stateKey, cfg, logger),
		Orders: handlers.NewOrderHandler(orderService),
		Admin:  handlers.NewAdminHandler(orderService, identity),
	}, gate, cfg.CookieName)

	go reloadAdminsOnHangup(admins, logger)

	go func() {
		logger.Info("starting server", "port", cfg.AppPort, "env", cfg.Environment)
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Error("fiber.Listen error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func connectRedis(cfg config.RedisConfig, logger *slog.Logger) *cache.Client {
	if !cfg.Enabled {
		return nil
	}

	client := cache.New(cfg.Addr, cfg.Password, cfg.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, continuing without it", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.Addr)
	return client
}

func healthChecks(db *gorm.DB, redisClient *cache.Client) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}
	return checks
}

// reloadAdminsOnHangup re-reads ADMIN_EMAILS whenever the process gets SIGHUP.
func reloadAdminsOnHangup(admins *services.ReloadableAllowList, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		emails := config.LoadAdminEmails()
		admins.Replace(emails)
		logger.Info("admin allow-list reloaded", "entries", len(emails))
	}
}
