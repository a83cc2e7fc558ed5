package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bozorly/bozorly_api/internal/assets"
	"github.com/bozorly/bozorly_api/internal/auth"
	"github.com/bozorly/bozorly_api/internal/config"
	"github.com/bozorly/bozorly_api/internal/identity"
	"github.com/bozorly/bozorly_api/internal/middleware"
	"github.com/bozorly/bozorly_api/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Assets *assets.Store
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside dev the ephemeral store is mandatory: sessions, codes and
	// lockout state all live there.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var identityRepo identity.Repository
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
	}

	otpSvc := auth.NewOTPService(d.Cache, d.Cfg.StoreTimeout)
	lockout := auth.NewLockoutPolicy(d.Cache, d.Cfg.StoreTimeout)
	sessions := auth.NewSessionManager(d.Cache, d.Cfg.StoreTimeout)
	engine := auth.NewDecisionEngine(identityRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)

	authSvc := auth.NewService(identityRepo, engine, otpSvc, lockout, sessions, notifier, d.Logger)
	authHandler := auth.NewHandler(authSvc)

	var assetStore identity.AssetStore
	if d.Assets != nil {
		assetStore = d.Assets
	}
	identitySvc := identity.NewService(identityRepo, assetStore, d.Logger)
	identityHandler := identity.NewHandler(identitySvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	sessionAuth := middleware.SessionAuth(sessions)
	RegisterAuthRoutes(api, authHandler, sessionAuth)

	protected := api.Group("", sessionAuth)
	RegisterIdentityRoutes(protected, identityHandler)

	return nil
}
