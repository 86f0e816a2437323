package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config carries the service's environment settings.
type Config struct {
	Port      string
	MongoURI  string
	DBName    string
	JWTSecret string

	// AllowImplicitAccounts gates the upsert-create path for credits
	// addressed to not-yet-registered mobile numbers.
	AllowImplicitAccounts bool
}

// Load reads .env (missing in production is fine) and collects settings.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}

	cfg := &Config{
		Port:                  getenv("PORT", "8080"),
		MongoURI:              os.Getenv("MONGOURI"),
		DBName:                getenv("MONGO_DB", "quickcashdb"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AllowImplicitAccounts: getenv("ALLOW_IMPLICIT_ACCOUNTS", "true") == "true",
	}

	if cfg.MongoURI == "" {
		log.Fatal("MONGOURI environment variable not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable not set")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
