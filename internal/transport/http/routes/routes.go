package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/infra/config"
	"github.com/shiftwise/workforce-iam/internal/infra/security"
	"github.com/shiftwise/workforce-iam/internal/infra/telemetry"
	"github.com/shiftwise/workforce-iam/internal/transport/http/handlers"
	"github.com/shiftwise/workforce-iam/internal/transport/http/middleware"
	"github.com/shiftwise/workforce-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Login    *usecase.LoginService
	Recovery *usecase.RecoveryService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *telemetry.Metrics
	TokenCodec  *security.TokenCodec
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

	if httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{}); err != nil {
		deps.Logger.Warn("http metrics disabled", zap.Error(err))
	} else {
		r.Use(httpMetrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	secureCookies := deps.Config.App.Env == "production"

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Login, deps.Metrics, secureCookies)
		authHandler.RegisterRoutes(authGroup, buildLoginMiddlewares(deps)...)

		if deps.TokenCodec != nil {
			authGroup.GET("/session", middleware.RequireSession(deps.TokenCodec), authHandler.SessionInfo)
		}

		recoveryGroup := api.Group("/recovery")
		recoveryHandler := handlers.NewRecoveryHandler(deps.Services.Recovery, secureCookies)
		recoveryHandler.RegisterRoutes(recoveryGroup, buildRecoveryStartMiddlewares(deps)...)
	}

	return r
}

// buildLoginMiddlewares guards the credential check with a per-IP sliding
// window sharing the recovery limit configuration.
func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	rule, ok := ipRule(deps, "auth_login_ip")
	if !ok {
		return nil
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildRecoveryStartMiddlewares(deps Dependencies) []gin.HandlerFunc {
	rule, ok := ipRule(deps, "recovery_start_ip")
	if !ok {
		return nil
	}
	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func ipRule(deps Dependencies, name string) (middleware.RateLimitRule, bool) {
	if deps.RateLimiter == nil || deps.Config == nil {
		return middleware.RateLimitRule{}, false
	}

	limit := deps.Config.RateLimit.RecoveryMaxAttempts
	if limit <= 0 {
		return middleware.RateLimitRule{}, false
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Hour
	}

	return middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}, true
}
