package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	NotifyModeInline = "inline"
	NotifyModeQueue  = "queue"
	NotifyModeLog    = "log"
)

type Config struct {
	Env          string
	HTTPAddr     string
	DatabaseURL  string
	RedisURL     string
	JWTSecret    string
	BaseURL      string
	TicketPrefix string
	NotifyMode   string
	Worker       WorkerConfig
	Xendit       XenditConfig
	Invoice      InvoiceConfig
	SMTP         SMTPConfig
	S3           S3Config
	Operator     OperatorConfig
	Logging      LoggingConfig
}

// WorkerConfig drives cmd/worker: the notification consumer and the
// ticket link reconciler.
type WorkerConfig struct {
	MetricsAddr       string
	ReconcileInterval time.Duration
	DequeueWait       time.Duration
}

type XenditConfig struct {
	BaseURL       string
	SecretKey     string
	CallbackToken string
	Timeout       time.Duration
	RatePerSecond float64
}

type InvoiceConfig struct {
	Currency   string
	SuccessURL string
	FailureURL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type S3Config struct {
	Endpoint       string
	PublicEndpoint string
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
}

type OperatorConfig struct {
	Login         string
	PasswordHash  string
	TokenTTL      time.Duration
	ScanRatePerS  float64
	ScanRateBurst int
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Env:          getenv("APP_ENV", "dev"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		BaseURL:      strings.TrimRight(getenv("BASE_URL", ""), "/"),
		TicketPrefix: strings.ToUpper(getenv("TICKET_PREFIX", "APGC")),
		NotifyMode:   strings.ToLower(getenv("NOTIFY_MODE", NotifyModeInline)),
		Worker: WorkerConfig{
			MetricsAddr:       getenv("WORKER_METRICS_ADDR", ":9091"),
			ReconcileInterval: getenvDuration("RECONCILE_INTERVAL", 5*time.Minute),
			DequeueWait:       getenvDuration("WORKER_DEQUEUE_WAIT", 5*time.Second),
		},
		Xendit: XenditConfig{
			BaseURL:       getenv("XENDIT_BASE_URL", "https://api.xendit.co"),
			SecretKey:     os.Getenv("XENDIT_SECRET_KEY"),
			CallbackToken: os.Getenv("XENDIT_CALLBACK_TOKEN"),
			Timeout:       getenvDuration("XENDIT_TIMEOUT", 15*time.Second),
			RatePerSecond: getenvFloat("XENDIT_RATE_PER_SEC", 5),
		},
		Invoice: InvoiceConfig{
			Currency:   strings.ToUpper(getenv("INVOICE_CURRENCY", "IDR")),
			SuccessURL: os.Getenv("INVOICE_SUCCESS_URL"),
			FailureURL: os.Getenv("INVOICE_FAILURE_URL"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
			FromName: getenv("SMTP_FROM_NAME", "Event Tickets"),
			Timeout:  getenvDuration("SMTP_TIMEOUT", 20*time.Second),
		},
		S3: S3Config{
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         os.Getenv("S3_BUCKET"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getenv("S3_REGION", "us-east-1"),
			UseSSL:         getenvBool("S3_USE_SSL", true),
		},
		Operator: OperatorConfig{
			Login:         os.Getenv("OPERATOR_LOGIN"),
			PasswordHash:  os.Getenv("OPERATOR_PASSWORD_HASH"),
			TokenTTL:      getenvDuration("OPERATOR_TOKEN_TTL", 12*time.Hour),
			ScanRatePerS:  getenvFloat("SCAN_RATE_PER_SEC", 5),
			ScanRateBurst: getenvInt("SCAN_RATE_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TicketPrefix == "" || strings.Contains(cfg.TicketPrefix, "-") {
		return nil, fmt.Errorf("TICKET_PREFIX must be non-empty and must not contain '-'")
	}
	switch cfg.NotifyMode {
	case NotifyModeInline, NotifyModeLog:
	case NotifyModeQueue:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when NOTIFY_MODE=queue")
		}
	default:
		return nil, fmt.Errorf("unknown NOTIFY_MODE %q", cfg.NotifyMode)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
