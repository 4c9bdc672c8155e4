package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the service.
type Config struct {
	ServerAddress string
	APIBasePath   string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	MongoURI               string
	MongoDatabase          string
	ConfigCollection       string
	ConversationCollection string

	JWTSecret    string
	JWTAlgorithm string
	TokenTTL     time.Duration
	AuthUsername string
	AuthPassword string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ConfigCacheTTL time.Duration
}

// Load reads configuration from the environment and validates that every
// required variable is present.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getenv("SERVER_ADDRESS", ":8090"),
		APIBasePath:   os.Getenv("API_BASE_PATH"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		MongoURI:               os.Getenv("MONGODB_URI"),
		MongoDatabase:          os.Getenv("MONGODB_DATABASE"),
		ConfigCollection:       os.Getenv("CONFIG_COLLECTION"),
		ConversationCollection: os.Getenv("CONVERSATION_COLLECTION"),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		JWTAlgorithm: getenv("JWT_ALGORITHM", "HS256"),
		TokenTTL:     24 * time.Hour,
		AuthUsername: os.Getenv("AUTH_USERNAME"),
		AuthPassword: os.Getenv("AUTH_PASSWORD"),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		ConfigCacheTTL: 5 * time.Minute,
	}

	if v := os.Getenv("JWT_TTL_HOURS"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("JWT_TTL_HOURS must be a positive integer, got %q", v)
		}
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer, got %q", v)
		}
		cfg.RedisDB = db
	}

	required := []struct {
		name  string
		value string
	}{
		{"OPENAI_API_KEY", cfg.OpenAIAPIKey},
		{"MONGODB_URI", cfg.MongoURI},
		{"MONGODB_DATABASE", cfg.MongoDatabase},
		{"CONFIG_COLLECTION", cfg.ConfigCollection},
		{"CONVERSATION_COLLECTION", cfg.ConversationCollection},
		{"JWT_SECRET", cfg.JWTSecret},
		{"AUTH_USERNAME", cfg.AuthUsername},
		{"AUTH_PASSWORD", cfg.AuthPassword},
	}
	var missing []string
	for _, v := range required {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
