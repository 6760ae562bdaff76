package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	Env           string
	PusherAppID   string
	PusherKey     string
	PusherSecret  string
	PusherCluster string
	PresenceTTL   time.Duration // 0 disables the presence janitor
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("APP_ENV", "development"),
		PusherAppID:   getEnv("PUSHER_APP_ID", ""),
		PusherKey:     getEnv("PUSHER_KEY", ""),
		PusherSecret:  getEnv("PUSHER_SECRET", ""),
		PusherCluster: getEnv("PUSHER_CLUSTER", ""),
		PresenceTTL:   time.Duration(getEnvAsInt("PRESENCE_TTL_SECONDS", 0)) * time.Second,
	}
}

func (c Config) PusherConfigured() bool {
	return len(c.MissingPusherVars()) == 0
}

// MissingPusherVars lists the unset Pusher credentials, for /health and startup logging.
func (c Config) MissingPusherVars() []string {
	missing := make([]string, 0, 4)
	if c.PusherAppID == "" {
		missing = append(missing, "PUSHER_APP_ID")
	}
	if c.PusherKey == "" {
		missing = append(missing, "PUSHER_KEY")
	}
	if c.PusherSecret == "" {
		missing = append(missing, "PUSHER_SECRET")
	}
	if c.PusherCluster == "" {
		missing = append(missing, "PUSHER_CLUSTER")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
