package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config/config.yaml"

type ServerConfig struct {
	Port     int    `yaml:"port"`
	Timezone string `yaml:"timezone"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	FrontendURL  string `yaml:"frontend_url"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

// NotificationsConfig.Transport is "direct" (send inside the request) or "queue"
// (publish to RabbitMQ and let cmd/notifier deliver).
type NotificationsConfig struct {
	Transport string `yaml:"transport"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaginationConfig struct {
	DefaultSize int `yaml:"default_size"`
	MaxSize     int `yaml:"max_size"`
}

type ImportConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Email         EmailConfig         `yaml:"email"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Notifications NotificationsConfig `yaml:"notifications"`
	RabbitMQ      RabbitMQConfig      `yaml:"rabbitmq"`
	Redis         RedisConfig         `yaml:"redis"`
	Pagination    PaginationConfig    `yaml:"pagination"`
	Import        ImportConfig        `yaml:"import"`
}

// LoadConfig reads .env (if present), the YAML file and the environment overrides.
// A missing or broken config file stops the process.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultPath
	}
	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.Email.SMTPPassword = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.RabbitMQ.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Timezone == "" {
		c.Server.Timezone = "UTC"
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Notifications.Transport == "" {
		c.Notifications.Transport = "direct"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "ex.notifications"
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = "q.assignment_notifications"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 60 * time.Second
	}
	if c.Pagination.DefaultSize <= 0 {
		c.Pagination.DefaultSize = 10
	}
	if c.Pagination.MaxSize <= 0 {
		c.Pagination.MaxSize = 100
	}
	if c.Import.MaxUploadBytes <= 0 {
		c.Import.MaxUploadBytes = 10 << 20
	}
}

// Location returns the configured reporting timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		log.Printf("[config] unknown timezone %q, using UTC", c.Server.Timezone)
		return time.UTC
	}
	return loc
}
