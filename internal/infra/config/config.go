package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingTokenSecret indicates one of the signing secrets is absent.
// Startup must abort rather than operate with unsigned or guessable tokens.
var ErrMissingTokenSecret = errors.New("config: token signing secret is required")

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
	OTC       OTCSettings       `mapstructure:"otc"`
	Lockout   LockoutSettings   `mapstructure:"lockout"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Notify    NotifySettings    `mapstructure:"notify"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the security event producer.
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// TokenSettings carries the signing secrets and lifetimes for the two token
// key-spaces. The secrets have no defaults on purpose.
type TokenSettings struct {
	SessionSecret  string        `mapstructure:"session_secret"`
	RecoverySecret string        `mapstructure:"recovery_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	RecoveryTTL    time.Duration `mapstructure:"recovery_ttl"`
}

// OTCSettings bounds one-time-code issuance and verification.
type OTCSettings struct {
	CodeLength                 int           `mapstructure:"code_length"`
	Expiry                     time.Duration `mapstructure:"expiry"`
	LoginMaxAttempts           int           `mapstructure:"login_max_attempts"`
	RecoveryMaxAttempts        int           `mapstructure:"recovery_max_attempts"`
	DailyQuota                 int           `mapstructure:"daily_quota"`
	ExhaustedIncidentThreshold int           `mapstructure:"exhausted_incident_threshold"`
}

// LockoutSettings bounds the password and question failure budgets.
type LockoutSettings struct {
	LoginMaxFailures    int `mapstructure:"login_max_failures"`
	QuestionMaxFailures int `mapstructure:"question_max_failures"`
}

// RateLimitSettings configures the sliding window on the recovery entry point.
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	RecoveryMaxAttempts int           `mapstructure:"recovery_max_attempts"`
}

// Argon2Settings configures Argon2id hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// NotifySettings selects and configures the outbound code channel.
type NotifySettings struct {
	Channel string         `mapstructure:"channel"`
	Twilio  TwilioSettings `mapstructure:"twilio"`
	SMTP    SMTPSettings   `mapstructure:"smtp"`
}

type TwilioSettings struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Enabled      bool    `mapstructure:"enabled"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("WFIAM")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"tokens.session_secret",
		"tokens.recovery_secret",
		"tokens.session_ttl",
		"tokens.recovery_ttl",
		"otc.code_length",
		"otc.expiry",
		"otc.login_max_attempts",
		"otc.recovery_max_attempts",
		"otc.daily_quota",
		"otc.exhausted_incident_threshold",
		"lockout.login_max_failures",
		"lockout.question_max_failures",
		"rate_limit.window_duration",
		"rate_limit.recovery_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"notify.channel",
		"notify.twilio.account_sid",
		"notify.twilio.auth_token",
		"notify.twilio.from_number",
		"notify.smtp.host",
		"notify.smtp.port",
		"notify.smtp.username",
		"notify.smtp.password",
		"notify.smtp.from",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"telemetry.enabled",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the fail-closed startup conditions.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Tokens.SessionSecret) == "" {
		return fmt.Errorf("%w: tokens.session_secret", ErrMissingTokenSecret)
	}
	if strings.TrimSpace(c.Tokens.RecoverySecret) == "" {
		return fmt.Errorf("%w: tokens.recovery_secret", ErrMissingTokenSecret)
	}
	if c.Tokens.SessionSecret == c.Tokens.RecoverySecret {
		return fmt.Errorf("config: session and recovery secrets must differ")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "workforce-iam")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "workforce")
	v.SetDefault("postgres.password", "workforce_password")
	v.SetDefault("postgres.database", "workforce")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "wfiam:rate")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "wfiam")

	// Secrets intentionally have no defaults; see Validate.
	v.SetDefault("tokens.session_ttl", "168h")
	v.SetDefault("tokens.recovery_ttl", "10m")

	v.SetDefault("otc.code_length", 6)
	v.SetDefault("otc.expiry", "90s")
	v.SetDefault("otc.login_max_attempts", 3)
	v.SetDefault("otc.recovery_max_attempts", 5)
	v.SetDefault("otc.daily_quota", 5)
	v.SetDefault("otc.exhausted_incident_threshold", 5)

	v.SetDefault("lockout.login_max_failures", 3)
	v.SetDefault("lockout.question_max_failures", 3)

	v.SetDefault("rate_limit.window_duration", "1h")
	v.SetDefault("rate_limit.recovery_max_attempts", 10)

	v.SetDefault("argon2.memory", 65536)
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("notify.channel", "log")
	v.SetDefault("notify.smtp.port", 587)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "workforce-iam")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "WFIAM_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
