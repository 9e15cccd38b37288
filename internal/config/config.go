package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Search    SearchConfig
	Embedding EmbeddingConfig
	LLM       LLMConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

// DatabaseConfig selects the catalog backend and holds its connection settings
type DatabaseConfig struct {
	Driver             string // postgres, sqlite or memory
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	SQLitePath         string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// SearchConfig holds room search configuration
type SearchConfig struct {
	DefaultK    int
	LocationTTL time.Duration
}

// EmbeddingConfig holds embedding backend configuration
type EmbeddingConfig struct {
	Provider   string // openai, gemini or hash
	Model      string
	Dimensions int
	APIKey     string
	APIBase    string
	ExtraBody  string // JSON string for extra_body (e.g., {"truncate":"NONE"})
	BatchSize  int
	RPS        float64
	Timeout    int
	CacheTTL   time.Duration
}

// LLMConfig holds chat model configuration
type LLMConfig struct {
	Model         string
	Temperature   float64
	MaxTokens     int
	OpenAIAPIKey  string
	OpenAIAPIBase string
	GoogleAPIKey  string
	MaxToolRounds int
	Timeout       int
}

// RedisConfig holds cache configuration. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
	Env   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	openAIKey := getEnv("OPENAI_API_KEY", "")

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("CATALOG_DRIVER", "postgres")),
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "hotels"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			SQLitePath:         getEnv("SQLITE_PATH", "hotelchat.db"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Search: SearchConfig{
			DefaultK:    getEnvAsInt("VECTOR_SEARCH_K", 5),
			LocationTTL: getEnvAsDuration("LOCATION_CACHE_TTL", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 0),
			APIKey:     getEnv("EMBEDDING_API_KEY", openAIKey),
			APIBase:    getEnv("EMBEDDING_API_BASE", getEnv("OPENAI_API_BASE", "https://api.openai.com/v1")),
			ExtraBody:  getEnv("EMBEDDING_EXTRA_BODY", ""),
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 64),
			RPS:        getEnvAsFloat("EMBEDDING_RPS", 5),
			Timeout:    getEnvAsInt("EMBEDDING_TIMEOUT", 30),
			CacheTTL:   getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		LLM: LLMConfig{
			Model:         getEnv("LLM_MODEL", "gemini-2.0-flash"),
			Temperature:   getEnvAsFloat("LLM_TEMPERATURE", 0),
			MaxTokens:     getEnvAsInt("LLM_MAX_TOKENS", 1024),
			OpenAIAPIKey:  openAIKey,
			OpenAIAPIBase: getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			GoogleAPIKey:  getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", "")),
			MaxToolRounds: getEnvAsInt("LLM_MAX_TOOL_ROUNDS", 4),
			Timeout:       getEnvAsInt("LLM_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "prod"),
		},
	}

	// Gemini embeddings share the Google key and have their own default model
	if cfg.Embedding.Provider == "gemini" {
		if os.Getenv("EMBEDDING_API_KEY") == "" {
			cfg.Embedding.APIKey = cfg.LLM.GoogleAPIKey
		}
		if os.Getenv("EMBEDDING_MODEL") == "" {
			cfg.Embedding.Model = "text-embedding-004"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail much later at first use
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported CATALOG_DRIVER %q (want postgres, sqlite or memory)", c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case "openai", "gemini", "hash":
	default:
		return fmt.Errorf("unsupported EMBEDDING_PROVIDER %q (want openai, gemini or hash)", c.Embedding.Provider)
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("VECTOR_SEARCH_K must be positive, got %d", c.Search.DefaultK)
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
		return defaultValue
	}
	return value
}
