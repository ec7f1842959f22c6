package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode      string
	Port         string
	Timezone     string
	Database     DatabaseConfig
	JWT          JWTConfig
	Access       AccessConfig
	Gateway      GatewayConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// AccessConfig holds token and gate parameters
type AccessConfig struct {
	TokenLength    int
	DigestCronSpec string
}

// GatewayConfig holds the push gateway and gate replica endpoints.
// Empty URLs disable the corresponding outbound delivery.
type GatewayConfig struct {
	PushURL    string
	PushKey    string
	ReplicaURL string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	tokenLength, _ := strconv.Atoi(getEnv("TOKEN_LENGTH", "32"))

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Timezone: getEnv("TIMEZONE", "America/Guayaquil"),
		Database: loadDatabaseConfig(appMode),
		JWT:      loadJWTConfig(appMode),
		Access: AccessConfig{
			TokenLength:    tokenLength,
			DigestCronSpec: getEnv("DIGEST_CRON", "0 7 * * *"),
		},
		Gateway: loadGatewayConfig(appMode),
	}

	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "condogate"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	expiryHours, _ := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "24"))

	return JWTConfig{
		Secret:      getEnv(prefix+"JWT_SECRET", "default_secret"),
		ExpiryHours: expiryHours,
	}
}

// loadGatewayConfig loads outbound delivery endpoints based on mode
func loadGatewayConfig(mode string) GatewayConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return GatewayConfig{
		PushURL:    getEnv(prefix+"PUSH_URL", ""),
		PushKey:    getEnv(prefix+"PUSH_KEY", ""),
		ReplicaURL: getEnv(prefix+"REPLICA_URL", ""),
	}
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
