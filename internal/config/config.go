package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration. It is constructed once at
// process start and passed into component constructors; no component reads
// environment state directly.
type Config struct {
	App       App       `mapstructure:"app"`
	AI        AI        `mapstructure:"ai"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Quality   Quality   `mapstructure:"quality"`
	Digest    Digest    `mapstructure:"digest"`
	Storage   Storage   `mapstructure:"storage"`
	Server    Server    `mapstructure:"server"`
}

// App holds general application configuration.
type App struct {
	Debug         bool   `mapstructure:"debug"`
	LogLevel      string `mapstructure:"log_level"`
	DefaultUserID string `mapstructure:"default_user_id"`
}

// AI holds LLM and embedding configuration.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration. An empty APIKey means the
// synthesis backend is unconfigured; digest generation then returns an empty
// digest with a configuration-error reason instead of failing.
type GeminiConfig struct {
	APIKey              string  `mapstructure:"api_key"`
	Model               string  `mapstructure:"model"`
	EmbeddingModel      string  `mapstructure:"embedding_model"`
	EmbeddingDimensions int32   `mapstructure:"embedding_dimensions"`
	Temperature         float32 `mapstructure:"temperature"`
	MaxTokens           int32   `mapstructure:"max_tokens"`
}

// Retrieval holds vector retrieval defaults.
type Retrieval struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinSources          int     `mapstructure:"min_sources"`
	SimilarityWeight    float64 `mapstructure:"similarity_weight"`
	RecencyWeight       float64 `mapstructure:"recency_weight"`
	PriorityWeight      float64 `mapstructure:"priority_weight"`
}

// Quality holds evaluation and quality-gate configuration.
type Quality struct {
	MinScore   float64 `mapstructure:"min_score"`
	MaxRetries int     `mapstructure:"max_retries"`
}

// Digest holds digest generation configuration.
type Digest struct {
	MaxInsights int           `mapstructure:"max_insights"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

// Storage holds database configuration. Driver selects the digest store
// backend: "postgres" (with pgvector chunk index) or "sqlite" for local use.
type Storage struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	DataDir     string `mapstructure:"data_dir"`
}

// Server holds HTTP API configuration.
type Server struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from a .env file (if present), an optional YAML
// config file, and environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName(".coachly")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	bindEnvironmentVariables(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	v.SetDefault("ai.gemini.embedding_model", "gemini-embedding-001")
	v.SetDefault("ai.gemini.embedding_dimensions", 1536)
	v.SetDefault("ai.gemini.temperature", 0.3)
	v.SetDefault("ai.gemini.max_tokens", 8192)

	v.SetDefault("retrieval.top_k", 15)
	v.SetDefault("retrieval.similarity_threshold", 0.70)
	v.SetDefault("retrieval.min_sources", 3)
	v.SetDefault("retrieval.similarity_weight", 0.6)
	v.SetDefault("retrieval.recency_weight", 0.3)
	v.SetDefault("retrieval.priority_weight", 0.1)

	v.SetDefault("quality.min_score", 0.70)
	v.SetDefault("quality.max_retries", 2)

	v.SetDefault("digest.max_insights", 7)
	v.SetDefault("digest.cache_ttl", "6h")

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.data_dir", ".coachly-cache")

	v.SetDefault("server.addr", ":8787")
}

// bindEnvironmentVariables supports the environment variable names used by
// existing deployments alongside the viper-derived ones.
func bindEnvironmentVariables(v *viper.Viper) {
	bindEnvKeys(v, "ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})
	bindEnvKeys(v, "storage.database_url", []string{
		"DATABASE_URL",
		"COACHLY_DATABASE_URL",
	})
	bindEnvKeys(v, "app.default_user_id", []string{
		"DEFAULT_USER_ID",
	})
}

func bindEnvKeys(v *viper.Viper, configKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			v.Set(configKey, value)
			return
		}
	}
}

func validate(config *Config) error {
	switch config.Storage.Driver {
	case "postgres":
		if config.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver (set DATABASE_URL)")
		}
	case "sqlite":
		// Data dir is created on demand.
	default:
		return fmt.Errorf("unknown storage driver %q (expected postgres or sqlite)", config.Storage.Driver)
	}

	if config.Digest.CacheTTL <= 0 {
		return fmt.Errorf("digest.cache_ttl must be positive")
	}

	return nil
}
