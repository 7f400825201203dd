package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env          string             `mapstructure:"env"`
	Debug        bool               `mapstructure:"debug"`
	Server       ServerConfig       `mapstructure:"server"`
	GRPC         GRPCConfig         `mapstructure:"grpc"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Identity     IdentityConfig     `mapstructure:"identity"`
	Session      SessionConfig      `mapstructure:"session"`
	Uploads      UploadsConfig      `mapstructure:"uploads"`
	Notification NotificationConfig `mapstructure:"notification"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	NATS         NATSConfig         `mapstructure:"nats"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	RabbitMQ     RabbitMQConfig     `mapstructure:"rabbitmq"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

type GRPCConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

// IdentityConfig points at the external identity provider.
type IdentityConfig struct {
	JWKSURL            string        `mapstructure:"jwks_url"`
	Issuer             string        `mapstructure:"issuer"`
	Audience           string        `mapstructure:"audience"`
	APIBaseURL         string        `mapstructure:"api_base_url"`
	APIKey             string        `mapstructure:"api_key"`
	AdminToken         string        `mapstructure:"admin_token"`
	KeyRefreshInterval time.Duration `mapstructure:"key_refresh_interval"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

type SessionConfig struct {
	Secret    string        `mapstructure:"secret"`
	CookieTTL time.Duration `mapstructure:"cookie_ttl"`
}

type UploadsConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type NotificationConfig struct {
	Transport string `mapstructure:"transport"`
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
	From      string `mapstructure:"from"`
	ClientURL string `mapstructure:"client_url"`
	Subject   string `mapstructure:"subject"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window"`
	LoginLimit    int           `mapstructure:"login_limit"`
	RegisterLimit int           `mapstructure:"register_limit"`
	SubmitLimit   int           `mapstructure:"submit_limit"`
	APILimit      int           `mapstructure:"api_limit"`
	APIWindow     time.Duration `mapstructure:"api_window"`
}

type SchedulerConfig struct {
	DeadlineCloseSchedule string `mapstructure:"deadline_close_schedule"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.GetViper()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")   // Kubernetes mount
	v.AddConfigPath("./configs")  // repo root
	v.AddConfigPath("../configs") // cmd/
	v.AddConfigPath("../../configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"env":                    "ENV",
		"database.user":          "DB_USER",
		"database.password":      "DB_PASSWORD",
		"database.host":          "DB_HOST",
		"identity.jwks_url":      "IDENTITY_JWKS_URL",
		"identity.issuer":        "IDENTITY_ISSUER",
		"identity.audience":      "IDENTITY_AUDIENCE",
		"identity.api_key":       "IDENTITY_API_KEY",
		"identity.admin_token":   "IDENTITY_ADMIN_TOKEN",
		"session.secret":         "SESSION_SECRET",
		"smtp.password":          "SMTP_PASSWORD",
		"redis.password":         "REDIS_PASSWORD",
		"rabbitmq.url":           "RABBITMQ_URL",
		"telemetry.endpoint":     "OTEL_EXPORTER_OTLP_ENDPOINT",
		"notification.transport": "NOTIFICATION_TRANSPORT",
	}
	for key, envVar := range bindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Env == "" {
		cfg.Env = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("grpc.port", "9090")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "scholarships")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("identity.api_base_url", "https://identitytoolkit.googleapis.com")
	v.SetDefault("identity.key_refresh_interval", time.Hour)
	v.SetDefault("identity.request_timeout", 5*time.Second)

	v.SetDefault("session.cookie_ttl", 24*time.Hour)

	v.SetDefault("uploads.max_file_size", 5<<20)
	v.SetDefault("uploads.allowed_types", []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"})

	v.SetDefault("notification.transport", "log")
	v.SetDefault("notification.workers", 4)
	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("notification.from", "no-reply@scholarships.local")
	v.SetDefault("notification.client_url", "http://localhost:3000")
	v.SetDefault("notification.subject", "notifications.email")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("rabbitmq.exchange", "notifications")

	v.SetDefault("ratelimit.window", time.Hour)
	v.SetDefault("ratelimit.login_limit", 5)
	v.SetDefault("ratelimit.register_limit", 5)
	v.SetDefault("ratelimit.submit_limit", 20)
	v.SetDefault("ratelimit.api_limit", 100)
	v.SetDefault("ratelimit.api_window", 15*time.Minute)

	v.SetDefault("scheduler.deadline_close_schedule", "@every 5m")
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Identity.JWKSURL == "" {
		missing = append(missing, "identity.jwks_url")
	}
	if c.Identity.Audience == "" {
		missing = append(missing, "identity.audience")
	}
	if c.Session.Secret == "" {
		missing = append(missing, "session.secret (SESSION_SECRET)")
	}
	if c.Database.User == "" {
		missing = append(missing, "database.user (DB_USER)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Notification.Transport {
	case "log", "smtp", "nats", "kafka", "rabbitmq":
	default:
		return fmt.Errorf("unknown notification transport %q", c.Notification.Transport)
	}
	if c.Notification.Transport == "smtp" && c.SMTP.Host == "" {
		return errors.New("smtp.host is required when notification.transport is smtp")
	}
	return nil
}

// IsProduction reports whether cookies must be Secure.
func (c *Config) IsProduction() bool {
	switch c.Env {
	case "production", "prod", "gcp-gke":
		return true
	}
	return false
}
