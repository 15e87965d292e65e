package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sokopay/sokopay/internal/commission"
	"github.com/sokopay/sokopay/internal/config"
	"github.com/sokopay/sokopay/internal/gateway"
	"github.com/sokopay/sokopay/internal/ledger"
	"github.com/sokopay/sokopay/internal/middleware"
	"github.com/sokopay/sokopay/internal/notification"
	"github.com/sokopay/sokopay/internal/order"
	"github.com/sokopay/sokopay/internal/settlement"
	"github.com/sokopay/sokopay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if isDev(d.Cfg.AppEnv) {
		// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}
	app.Use(middleware.Actor())

	// Health
	RegisterHealthRoutes(app, d)

	// Services and handlers
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
	} else {
		store = ledger.NewInMemory()
	}

	var orderRepo order.Repository
	if d.DB != nil {
		orderRepo = order.NewPostgresRepository(d.DB)
	} else {
		orderRepo = order.NewMemoryRepository()
	}

	rates := commission.DefaultRates()
	for vertical, rate := range d.Cfg.CommissionRates {
		rates[vertical] = rate
	}
	calc := commission.NewCalculator(rates)

	notifier := notification.NewLoggerNotifier(d.Logger)
	processor := gateway.StaticGateway{BaseURL: d.Cfg.GatewayURL}
	engine := settlement.NewEngine(store, orderRepo, calc, processor, notifier, d.Logger)

	orderSvc := order.NewService(orderRepo)
	walletSvc := wallet.NewService(store, d.Cfg.Currency)

	orderHandler := order.NewHandler(orderSvc)
	settlementHandler := settlement.NewHandler(engine)
	walletHandler := wallet.NewHandler(walletSvc)
	webhookHandler := gateway.NewHandler(engine, d.Cfg.WebhookSecret, d.Cache, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// The gateway signs webhook deliveries itself and retries on non-2xx, so
	// the webhook sits outside the Idempotency-Key group.
	RegisterGatewayRoutes(api, webhookHandler)

	var protected fiber.Router = api
	if d.Cache != nil {
		protected = api.Group("", middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterOrderRoutes(protected, orderHandler)
	RegisterSettlementRoutes(protected, settlementHandler)
	RegisterWalletRoutes(protected, walletHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
