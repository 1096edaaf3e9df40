// README: Config loader with env defaults for HTTP, store backend, Firebase, DB, Redis, Maps and fares.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

type FareConfig struct {
	CostPerMile float64
	FlatFee     float64
	Currency    string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	Store struct {
		Backend string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
		APIKey          string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Maps struct {
		APIKey string
	}
	Log struct {
		Level  string
		Format string
	}
	Fare FareConfig
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("NEWBER_HTTP_ADDR", ":8080")
	cfg.Store.Backend = envOrDefault("NEWBER_STORE_BACKEND", BackendMemory)
	cfg.Firebase.ProjectID = os.Getenv("NEWBER_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("NEWBER_FIREBASE_CREDENTIALS")
	cfg.Firebase.APIKey = os.Getenv("NEWBER_FIREBASE_API_KEY")
	cfg.DB.DSN = os.Getenv("NEWBER_DB_DSN")
	cfg.Redis.Addr = os.Getenv("NEWBER_REDIS_ADDR")
	cfg.Maps.APIKey = os.Getenv("NEWBER_MAPS_API_KEY")
	cfg.Log.Level = envOrDefault("NEWBER_LOG_LEVEL", "info")
	cfg.Log.Format = envOrDefault("NEWBER_LOG_FORMAT", "text")
	cfg.Fare.CostPerMile = envOrDefaultFloat("NEWBER_FARE_PER_MILE", 0.592)
	cfg.Fare.FlatFee = envOrDefaultFloat("NEWBER_FARE_FLAT_FEE", 1.00)
	cfg.Fare.Currency = envOrDefault("NEWBER_FARE_CURRENCY", "CAD")

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendFirestore:
		if cfg.Firebase.ProjectID == "" {
			return cfg, fmt.Errorf("NEWBER_FIREBASE_PROJECT_ID is required for the %s backend", BackendFirestore)
		}
		if cfg.Firebase.APIKey == "" {
			return cfg, fmt.Errorf("NEWBER_FIREBASE_API_KEY is required for password sign-in")
		}
	default:
		return cfg, fmt.Errorf("unknown NEWBER_STORE_BACKEND %q", cfg.Store.Backend)
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}
