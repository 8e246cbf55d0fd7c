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
	ListenAddr  string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// Authority API (ZATCA-style reporting endpoint). When Endpoint is
	// empty the client runs in simulation mode and accepts everything.
	AuthorityEndpoint     string
	AuthorityTokenURL     string
	AuthorityClientID     string
	AuthorityClientSecret string
	AuthorityTimeout      time.Duration

	// Seller identity stamped on every built document.
	SellerName    string
	SellerAddress string
	SellerVAT     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "fatoora"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "fatoora"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),

		AuthorityEndpoint:     strings.TrimSpace(getenv("AUTHORITY_ENDPOINT", "")),
		AuthorityTokenURL:     strings.TrimSpace(getenv("AUTHORITY_TOKEN_URL", "")),
		AuthorityClientID:     strings.TrimSpace(getenv("AUTHORITY_CLIENT_ID", "")),
		AuthorityClientSecret: strings.TrimSpace(getenv("AUTHORITY_CLIENT_SECRET", "")),
		AuthorityTimeout:      getenvDuration("AUTHORITY_TIMEOUT", 30*time.Second),

		SellerName:    getenv("SELLER_NAME", ""),
		SellerAddress: getenv("SELLER_ADDRESS", ""),
		SellerVAT:     getenv("SELLER_VAT_NUMBER", ""),
	}
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
