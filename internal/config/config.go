package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env           string `yaml:"env" env-default:"local"`
	HTTPServer    `yaml:"http_server"`
	Postgres      `yaml:"postgres"`
	Redis         `yaml:"redis"`
	RabbitMQ      `yaml:"rabbitmq"`
	Session       `yaml:"session"`
	RateLimit     `yaml:"rate_limit"`
	PasswordReset `yaml:"password_reset"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host           string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port           int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"POSTGRES_USER" env-required:"true"`
	Password       string `yaml:"password" env:"POSTGRES_PASSWORD" env-required:"true"`
	DBName         string `yaml:"dbname" env:"POSTGRES_DB" env-required:"true"`
	SSLMode        string `yaml:"sslmode" env-default:"disable"`
	SkipMigrations bool   `yaml:"skip_migrations"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"redis:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// RabbitMQ is optional. With an empty URL reset links are only logged.
type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"password_reset"`
}

type Session struct {
	Secret string        `yaml:"secret" env:"SESSION_SECRET" env-required:"true"`
	TTL    time.Duration `yaml:"ttl" env-default:"720h"`
}

type RateLimit struct {
	Window         time.Duration `yaml:"window" env-default:"10m"`
	MaxAttempts    int           `yaml:"max_attempts" env-default:"5"`
	FailOpen       bool          `yaml:"fail_open" env-default:"false"`
	GlobalRequests int           `yaml:"global_requests" env-default:"100"`
	GlobalWindow   time.Duration `yaml:"global_window" env-default:"1m"`
}

type PasswordReset struct {
	TokenTTL        time.Duration `yaml:"token_ttl" env-default:"30m"`
	LinkBaseURL     string        `yaml:"link_base_url" env:"RESET_LINK_BASE_URL" env-default:"http://localhost:3000"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env-default:"1h"`
}

// MustLoad reads the config file and panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.RateLimit.MaxAttempts < 1 {
		return nil, fmt.Errorf("rate_limit.max_attempts must be positive, got %d", cfg.RateLimit.MaxAttempts)
	}
	if cfg.RateLimit.Window < time.Second {
		return nil, fmt.Errorf("rate_limit.window must be at least 1s, got %s", cfg.RateLimit.Window)
	}

	return &cfg, nil
}

// FetchConfigPath returns CONFIG_PATH or the default location.
func FetchConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}

	return defaultConfigPath
}

// DSN formats the postgres connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host,
		p.Port,
		p.User,
		p.Password,
		p.DBName,
		p.SSLMode,
	)
}
