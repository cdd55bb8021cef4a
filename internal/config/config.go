package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	PublicURL   string
	AdminToken  string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBTxMaxAttempts   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MercadoPago MercadoPagoConfig
	Email       EmailConfig
	Kafka       KafkaConfig
	Dispatcher  DispatcherConfig
	RateLimit   RateLimitConfig
}

type MercadoPagoConfig struct {
	BaseURL       string
	AccessToken   string
	WebhookSecret string
	Timeout       time.Duration
	MaxRetries    int
	Currency      string
	Descriptor    string
}

type EmailConfig struct {
	ResendAPIKey string
	FromEmail    string
	FromName     string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RateLimitConfig struct {
	LinkRate       float64
	LinkBurst      int
	PaymentLockTTL time.Duration
}

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "licensehub"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		PublicURL:    strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),
		AdminToken:   strings.TrimSpace(getenv("ADMIN_TOKEN", "")),
		NodeID:       int64(getenvInt("NODE_ID", 1)),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "licensehub"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "licensehub.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBTxMaxAttempts:   getenvInt("DATABASE_TX_MAX_ATTEMPTS", 5),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		MercadoPago: MercadoPagoConfig{
			BaseURL:       strings.TrimRight(getenv("MP_BASE_URL", "https://api.mercadopago.com"), "/"),
			AccessToken:   strings.TrimSpace(getenv("MP_ACCESS_TOKEN", "")),
			WebhookSecret: strings.TrimSpace(getenv("MP_WEBHOOK_SECRET", "")),
			Timeout:       getenvDuration("MP_TIMEOUT", 10*time.Second),
			MaxRetries:    getenvInt("MP_MAX_RETRIES", 4),
			Currency:      getenv("MP_CURRENCY", "ARS"),
			Descriptor:    getenv("MP_STATEMENT_DESCRIPTOR", "LICENSEHUB"),
		},
		Email: EmailConfig{
			ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			FromEmail:    strings.TrimSpace(getenv("EMAIL_FROM", "")),
			FromName:     getenv("EMAIL_FROM_NAME", "LicenseHub"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getenv("KAFKA_BROKERS", "")),
			Topic:   getenv("KAFKA_TOPIC", "licensehub.events"),
		},
		Dispatcher: DispatcherConfig{
			Workers:   getenvInt("NOTIFY_WORKERS", 2),
			QueueSize: getenvInt("NOTIFY_QUEUE_SIZE", 256),
			Timeout:   getenvDuration("NOTIFY_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			LinkRate:       getenvFloat("LINK_RATE_PER_SEC", 0.5),
			LinkBurst:      getenvInt("LINK_RATE_BURST", 5),
			PaymentLockTTL: getenvDuration("PAYMENT_LOCK_TTL", 30*time.Second),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
