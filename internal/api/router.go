package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pw/identity-service/internal/api/handler"
	"github.com/pw/identity-service/internal/api/middleware"
	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/ports"
	"github.com/pw/identity-service/internal/core/service"
	"github.com/pw/identity-service/internal/infrastructure/config"
	redisinfra "github.com/pw/identity-service/internal/infrastructure/db/redis"
	"github.com/pw/identity-service/internal/infrastructure/http/handlers"
)

// NewRouter builds and returns the Echo instance with all routes registered.
// The store is injected so transport tests can run against an in-memory
// implementation; db and rdb back the readiness probe only.
func NewRouter(store ports.IdentityStore, db *mongo.Database, rdb *redis.Client, cfg *config.Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("identity"))

	// --- Dependencies ---
	var throttle ports.LoginThrottle
	if rdb != nil {
		throttle = redisinfra.NewLoginThrottle(rdb)
	}

	tokenService := service.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authService := service.NewAuthService(store, tokenService, throttle, log)

	authHandler := handler.NewAuthHandler(authService, tokenService)
	userHandler := handler.NewUserHandler(authService)

	// Every request passes the authentication filter; routes without a
	// bearer header stay anonymous and the guards below decide access.
	e.Use(middleware.Authenticate(tokenService, store))

	// --- Auth routes ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- User routes ---
	e.GET("/users/me", userHandler.Me, middleware.RequireAuthenticated())
	e.GET("/users", userHandler.List, middleware.RequireAnyRole(domain.RoleAdmin, domain.RoleSuperAdmin))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
