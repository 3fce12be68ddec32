package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/shiftwise/workforce-iam/internal/core/port"
	"github.com/shiftwise/workforce-iam/internal/infra/config"
	"github.com/shiftwise/workforce-iam/internal/infra/database"
	kafkainfra "github.com/shiftwise/workforce-iam/internal/infra/kafka"
	"github.com/shiftwise/workforce-iam/internal/infra/logger"
	"github.com/shiftwise/workforce-iam/internal/infra/notify"
	redisinfra "github.com/shiftwise/workforce-iam/internal/infra/redis"
	"github.com/shiftwise/workforce-iam/internal/infra/security"
	"github.com/shiftwise/workforce-iam/internal/infra/telemetry"
	postgresrepo "github.com/shiftwise/workforce-iam/internal/repository/postgres"
	redisrepo "github.com/shiftwise/workforce-iam/internal/repository/redis"
	"github.com/shiftwise/workforce-iam/internal/transport/http/middleware"
	"github.com/shiftwise/workforce-iam/internal/transport/http/routes"
	"github.com/shiftwise/workforce-iam/internal/usecase"
)

// Application owns the wired object graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
	kafka  *kafkainfra.Producer
}

// New wires the full dependency graph. Configuration problems abort startup.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	codec, err := security.NewTokenCodec(
		cfg.Tokens.SessionSecret,
		cfg.Tokens.RecoverySecret,
		cfg.Tokens.SessionTTL,
		cfg.Tokens.RecoveryTTL,
	)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init argon2 hasher: %w", err)
	}

	notifier, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	var (
		publisher port.EventPublisher
		producer  *kafkainfra.Producer
	)
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka unavailable, falling back to stub publisher", zap.Error(err))
			publisher = kafkainfra.NewStubPublisher(log)
		} else {
			publisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		publisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Hour
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})

	lockouts := usecase.NewLockoutService(repos.Incidents, publisher, log)

	otc := usecase.NewOTCService(repos.Codes, repos.Auth, notifier, lockouts, publisher, usecase.OTCConfig{
		CodeLength:                 cfg.OTC.CodeLength,
		Expiry:                     cfg.OTC.Expiry,
		DailyQuota:                 cfg.OTC.DailyQuota,
		ExhaustedIncidentThreshold: cfg.OTC.ExhaustedIncidentThreshold,
	}, log)

	questions := usecase.NewQuestionService(repos.Auth, repos.Answers, hasher, lockouts, publisher,
		cfg.Lockout.QuestionMaxFailures, log)

	loginService := usecase.NewLoginService(repos.Users, repos.Auth, otc, codec, hasher, lockouts, publisher,
		usecase.LoginConfig{
			MaxFailedAttempts: cfg.Lockout.LoginMaxFailures,
			CodeAttemptCap:    cfg.OTC.LoginMaxAttempts,
		}, log)

	recoveryService := usecase.NewRecoveryService(repos.Users, repos.Auth, otc, questions, codec, hasher,
		security.DefaultPasswordValidator(), rateLimitStore, publisher,
		usecase.RecoveryConfig{
			CodeAttemptCap:  cfg.OTC.RecoveryMaxAttempts,
			RateWindow:      rateLimitWindow,
			RateMaxRequests: cfg.RateLimit.RecoveryMaxAttempts,
		}, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     telemetry.NewMetrics(),
		TokenCodec:  codec,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Login:    loginService,
			Recovery: recoveryService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
		kafka:  producer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.kafka != nil {
			_ = a.kafka.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting workforce IAM API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func buildNotifier(cfg config.NotifySettings, log *zap.Logger) (port.CodeNotifier, error) {
	switch cfg.Channel {
	case "sms":
		return notify.NewSMSNotifier(cfg.Twilio, log)
	case "smtp", "email":
		return notify.NewEmailNotifier(cfg.SMTP, log)
	default:
		return notify.NewLogNotifier(log), nil
	}
}
