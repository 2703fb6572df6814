package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"bank.com/mop/internal/obs"
)

// Config carries every runtime knob of the onboarding API.
type Config struct {
	Addr        string
	PostgresDSN string

	AuthSecret string
	TokenTTL   time.Duration

	// EmailDomain is the organizational domain user emails must belong to.
	EmailDomain string
	// AdminEmail/AdminPassword seed the first administrator account on
	// startup. An empty password disables the bootstrap.
	AdminEmail    string
	AdminPassword string
	// CaseIDPrefix prefixes generated case identifiers (PREFIX-YEAR-seq).
	CaseIDPrefix string

	RateBurst  int
	RatePerSec int

	Environment string
}

// Load reads configuration from the environment, honouring a local .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		obs.Logger().Info("no .env file found, using process environment")
	}

	return &Config{
		Addr:          getEnv("MOP_ADDR", ":8080"),
		PostgresDSN:   getEnv("MOP_PG_DSN", ""),
		AuthSecret:    getEnv("MOP_AUTH_SECRET", ""),
		TokenTTL:      getDuration("MOP_TOKEN_TTL", 8*time.Hour),
		EmailDomain:   getEnv("MOP_EMAIL_DOMAIN", "bank.com"),
		AdminEmail:    getEnv("MOP_ADMIN_EMAIL", ""),
		AdminPassword: getEnv("MOP_ADMIN_PASSWORD", ""),
		CaseIDPrefix:  getEnv("MOP_CASE_PREFIX", "MOP"),
		RateBurst:     getInt("MOP_RATE_BURST", 20),
		RatePerSec:    getInt("MOP_RATE_PER_SEC", 10),
		Environment:   getEnv("MOP_ENV", "development"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
