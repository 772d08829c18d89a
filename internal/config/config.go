package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Razorpay RazorpayConfig
	Email    EmailConfig
	Booking  BookingConfig
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	PublicURL    string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:3000"`
}

type DatabaseConfig struct {
	DSN          string        `envconfig:"POSTGRES_DSN" required:"true"`
	MaxOpenConns int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int           `envconfig:"DB_MAX_IDLE_CONNS" default:"25"`
	MaxLifetime  time.Duration `envconfig:"DB_MAX_LIFETIME" default:"5m"`
	AutoMigrate  bool          `envconfig:"AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"resort-notifications"`
}

type AuthConfig struct {
	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL    time.Duration `envconfig:"JWT_TTL" default:"72h"`
	OIDCIssuer  string        `envconfig:"OIDC_ISSUER"`
	AdminEmails []string      `envconfig:"ADMIN_EMAILS"`
	OTPTTL      time.Duration `envconfig:"OTP_TTL" default:"10m"`
	OTPCooldown time.Duration `envconfig:"OTP_COOLDOWN" default:"60s"`
}

type RazorpayConfig struct {
	KeyID     string `envconfig:"RAZORPAY_KEY_ID" required:"true"`
	KeySecret string `envconfig:"RAZORPAY_KEY_SECRET" required:"true"`
	Currency  string `envconfig:"CURRENCY" default:"INR"`
}

type EmailConfig struct {
	SMTPHost     string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int           `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string        `envconfig:"SMTP_USERNAME"`
	SMTPPassword string        `envconfig:"SMTP_PASSWORD"`
	From         string        `envconfig:"SMTP_FROM" default:"bookings@resort.local"`
	Timeout      time.Duration `envconfig:"MAIL_TIMEOUT" default:"10s"`
}

type BookingConfig struct {
	PaymentLockTTL time.Duration `envconfig:"PAYMENT_LOCK_TTL" default:"30s"`
	PaymentWindow  time.Duration `envconfig:"PAYMENT_WINDOW" default:"30m"`
}

// Load reads an optional .env file and decodes the environment into Config.
// It reports whether a .env file was found so the caller can log it.
func Load() (*Config, bool, error) {
	envLoaded := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, envLoaded, err
	}
	cfg.Auth.AdminEmails = normalizeEmails(cfg.Auth.AdminEmails)
	return &cfg, envLoaded, nil
}

// LoadDatabase decodes only the database settings, for tools that never serve HTTP.
func LoadDatabase() (*DatabaseConfig, error) {
	_ = godotenv.Load()

	var db DatabaseConfig
	if err := envconfig.Process("", &db); err != nil {
		return nil, err
	}
	return &db, nil
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c AuthConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
