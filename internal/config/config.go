// Package config reads the orchestrator settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the api and worker binaries need.
type Config struct {
	Stage  string
	LogEnv string
	Debug  bool
	Local  bool

	TransactionsTable string
	ShopConfigTable   string
	CustomersTable    string
	IdempotencyTable  string
	IdempotencyTTL    time.Duration

	CommandsQueueURL     string
	CartRecoveryQueueURL string
	CartRecoveryEnabled  bool

	AppKeysSecretPrefix string

	ShopifyAPIVersion string
	ShopifyTimeout    time.Duration

	CompletionAttempts int
	CompletionInterval time.Duration

	MetricsNamespace string
	MetricsEnabled   bool
}

// Load reads the environment. When RUN_LOCAL=true a .env file is loaded first
// if present.
func Load() (*Config, error) {
	local := os.Getenv("RUN_LOCAL") == "true"
	if local {
		_ = godotenv.Load()
	}

	stage := getEnv("STAGE", "dev")
	cfg := &Config{
		Stage:  stage,
		LogEnv: getEnv("LOG_ENV", "production"),
		Debug:  getBool("LOG_DEBUG", false),
		Local:  local,

		TransactionsTable: getEnv("TRANSACTIONS_TABLE", stage+"-transactions"),
		ShopConfigTable:   getEnv("SHOP_CONFIG_TABLE", stage+"-shop-config"),
		CustomersTable:    getEnv("CUSTOMERS_TABLE", stage+"-customers"),
		IdempotencyTable:  getEnv("IDEMPOTENCY_TABLE", stage+"-idempotency"),
		IdempotencyTTL:    getDuration("IDEMPOTENCY_TTL", 48*time.Hour),

		CommandsQueueURL:     os.Getenv("COMMANDS_QUEUE_URL"),
		CartRecoveryQueueURL: os.Getenv("CART_RECOVERY_QUEUE_URL"),
		CartRecoveryEnabled:  getBool("CART_RECOVERY_ENABLED", false),

		AppKeysSecretPrefix: getEnv("APP_KEYS_SECRET_PREFIX", stage+"/shopify-app-keys/"),

		ShopifyAPIVersion: getEnv("SHOPIFY_API_VERSION", "2020-10"),
		ShopifyTimeout:    getDuration("SHOPIFY_TIMEOUT", 20*time.Second),

		CompletionAttempts: getInt("COMPLETION_POLL_ATTEMPTS", 3),
		CompletionInterval: getDuration("COMPLETION_POLL_INTERVAL", 3*time.Second),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "CheckoutOrchestrator"),
		MetricsEnabled:   getBool("METRICS_ENABLED", false),
	}

	if cfg.CompletionAttempts < 0 {
		return nil, fmt.Errorf("COMPLETION_POLL_ATTEMPTS must be >= 0, got %d", cfg.CompletionAttempts)
	}
	if cfg.CartRecoveryEnabled && cfg.CartRecoveryQueueURL == "" {
		return nil, fmt.Errorf("CART_RECOVERY_QUEUE_URL is required when CART_RECOVERY_ENABLED=true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
