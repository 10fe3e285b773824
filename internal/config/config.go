// Package config loads application configuration from defaults, an
// optional YAML file, and NOTIFY_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Database      DatabaseConfig      `koanf:"database"`
	Notifications NotificationsConfig `koanf:"notifications"`
	UserService   UserServiceConfig   `koanf:"user_service"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrationsPath  string        `koanf:"migrations_path"`
}

// NotificationsConfig holds delivery pipeline settings.
type NotificationsConfig struct {
	MaxRetries  int           `koanf:"max_retries"`
	BackoffUnit time.Duration `koanf:"backoff_unit"`
	MaxBackoff  time.Duration `koanf:"max_backoff"`
	Worker      WorkerConfig  `koanf:"worker"`
	Email       EmailConfig   `koanf:"email"`
	SMS         SMSConfig     `koanf:"sms"`
}

// WorkerConfig holds dispatch worker pool settings.
type WorkerConfig struct {
	NumWorkers int `koanf:"num_workers"`
	QueueSize  int `koanf:"queue_size"`
}

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUser     string        `koanf:"smtp_user"`
	SMTPPassword string        `koanf:"smtp_password"`
	FromAddress  string        `koanf:"from_address"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
}

// SMSConfig holds SMS gateway settings.
type SMSConfig struct {
	APIURL     string        `koanf:"api_url"`
	AccountSID string        `koanf:"account_sid"`
	AuthToken  string        `koanf:"auth_token"`
	FromNumber string        `koanf:"from_number"`
	RateLimit  float64       `koanf:"rate_limit"`
	Timeout    time.Duration `koanf:"timeout"`
}

// UserServiceConfig holds the user service client settings.
type UserServiceConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// Load reads configuration from the given YAML file (if the path is
// non-empty and the file exists) and NOTIFY_ environment variables,
// layered over built-in defaults. Environment variables use "__" to
// separate nesting levels, e.g. NOTIFY_DATABASE__URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Notifications: NotificationsConfig{
			MaxRetries:  3,
			BackoffUnit: time.Second,
			MaxBackoff:  5 * time.Minute,
			Worker: WorkerConfig{
				NumWorkers: 8,
				QueueSize:  256,
			},
			Email: EmailConfig{
				SMTPPort:    587,
				DialTimeout: 10 * time.Second,
			},
			SMS: SMSConfig{
				APIURL:  "https://api.twilio.com/2010-04-01",
				Timeout: 10 * time.Second,
			},
		},
		UserService: UserServiceConfig{
			BaseURL: "http://localhost:8001",
			Timeout: 10 * time.Second,
		},
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "NOTIFY_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, "NOTIFY_")
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Unmarshal only overwrites keys present in the loaded sources,
	// so defaults set above survive.
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (NOTIFY_DATABASE__URL)")
	}
	if c.Notifications.MaxRetries < 0 {
		return fmt.Errorf("notifications.max_retries must not be negative")
	}
	if c.Notifications.Worker.NumWorkers < 1 {
		return fmt.Errorf("notifications.worker.num_workers must be at least 1")
	}
	return nil
}
