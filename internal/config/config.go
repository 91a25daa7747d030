package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	JWT       JWTConfig
	Fiscal    FiscalConfig
	Print     PrintConfig
	Telemetry TelemetryConfig
	Retry     RetryConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	URL             string
	Host            string
	User            string
	Password        string
	Name            string
	Port            string
	LogLevel        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ServerConfig struct {
	Port    string
	AppName string
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type FiscalConfig struct {
	Mode    string // none | http
	BaseURL string
	Token   string
	Timeout time.Duration
}

type PrintConfig struct {
	QueueSize int
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

type RetryConfig struct {
	MaxRetries int
}

// BootstrapConfig seeds a first tenant and owner on an empty database
type BootstrapConfig struct {
	TenantName    string
	OwnerEmail    string
	OwnerPassword string
	OwnerPIN      string
	// PrintToken logs a ready-to-use owner token at startup. Development only.
	PrintToken bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, relying on system env")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			Host:            getEnv("DB_HOST", "localhost"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "retail"),
			Port:            getEnv("DB_PORT", "5432"),
			LogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Server: ServerConfig{
			Port:    getEnv("PORT", "3000"),
			AppName: getEnv("APP_NAME", "Retail Ledger v1.0"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
			Issuer: getEnv("JWT_ISSUER", "go-retail-ledger"),
			TTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		},
		Fiscal: FiscalConfig{
			Mode:    getEnv("FISCAL_MODE", "none"),
			BaseURL: getEnv("FISCAL_BASE_URL", ""),
			Token:   getEnv("FISCAL_TOKEN", ""),
			Timeout: getEnvDuration("FISCAL_TIMEOUT", 10*time.Second),
		},
		Print: PrintConfig{
			QueueSize: getEnvInt("PRINT_QUEUE_SIZE", 256),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getEnv("SERVICE_NAME", "retail-ledger"),
		},
		Retry: RetryConfig{
			MaxRetries: getEnvInt("TX_MAX_RETRIES", 3),
		},
		Bootstrap: BootstrapConfig{
			TenantName:    getEnv("BOOTSTRAP_TENANT_NAME", ""),
			OwnerEmail:    getEnv("BOOTSTRAP_OWNER_EMAIL", ""),
			OwnerPassword: getEnv("BOOTSTRAP_OWNER_PASSWORD", ""),
			OwnerPIN:      getEnv("BOOTSTRAP_OWNER_PIN", ""),
			PrintToken:    getEnvBool("BOOTSTRAP_PRINT_TOKEN", false),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid integer for %s, using default", key)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid boolean for %s, using default", key)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration for %s, using default", key)
	}
	return defaultValue
}
