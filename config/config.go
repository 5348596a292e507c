package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	API      APIConfig
	Postgres PostgresConfig
	Scanner  ScannerConfig
	Checkout CheckoutConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	AppEnv   string
	BranchID string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type APIConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	JournalEnabled  bool
}

type ScannerConfig struct {
	BurstGapMs      int
	CommitTimeoutMs int
	MinLength       int
	MaxLength       int
}

type CheckoutConfig struct {
	TaxRatePercent string
	EnabledMethods []string
	SaleType       string
}

type SyncConfig struct {
	URL                      string
	Token                    string
	MaxReconnectAttempts     int
	ReconnectIntervalSeconds int
	PingIntervalSeconds      int
}

func LoadEnv() *Config {
	// Basic config loading
	// In a real scenario, use structured config loader like viper or koanf
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			BranchID: getEnv("BRANCH_ID", "main"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
			Token:          getEnv("API_TOKEN", ""),
			TimeoutSeconds: getEnvInt("API_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_checkout"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			JournalEnabled:  getEnvBool("SALES_JOURNAL_ENABLED", false),
		},
		Scanner: ScannerConfig{
			BurstGapMs:      getEnvInt("SCANNER_BURST_GAP_MS", 100),
			CommitTimeoutMs: getEnvInt("SCANNER_COMMIT_TIMEOUT_MS", 100),
			MinLength:       getEnvInt("SCANNER_MIN_LENGTH", 3),
			MaxLength:       getEnvInt("SCANNER_MAX_LENGTH", 50),
		},
		Checkout: CheckoutConfig{
			TaxRatePercent: getEnv("CHECKOUT_TAX_RATE_PERCENT", "21"),
			EnabledMethods: getEnvSlice("CHECKOUT_ENABLED_METHODS", []string{"cash", "card", "transfer"}),
			SaleType:       getEnv("CHECKOUT_SALE_TYPE", "pos"),
		},
		Sync: SyncConfig{
			URL:                      getEnv("SYNC_URL", "ws://localhost:8081/ws"),
			Token:                    getEnv("SYNC_TOKEN", ""),
			MaxReconnectAttempts:     getEnvInt("SYNC_MAX_RECONNECT_ATTEMPTS", 5),
			ReconnectIntervalSeconds: getEnvInt("SYNC_RECONNECT_INTERVAL_SECONDS", 3),
			PingIntervalSeconds:      getEnvInt("SYNC_PING_INTERVAL_SECONDS", 30),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
