package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
}

type OpenAIConfig struct {
	// An empty APIKey is not an error: the evaluator runs heuristic-only.
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type EvaluatorConfig struct {
	CacheTTLSeconds     int     `mapstructure:"cache_ttl_seconds" validate:"gt=0"`
	CacheMaxEntries     int     `mapstructure:"cache_max_entries" validate:"gt=0"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
	AttemptTimeoutMs    int     `mapstructure:"attempt_timeout_ms" validate:"gt=0"`
	OverallTimeoutMs    int     `mapstructure:"overall_timeout_ms" validate:"gtfield=AttemptTimeoutMs"`
	MaxRetries          int     `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

type ServerConfig struct {
	Address       string `mapstructure:"address" validate:"required"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds"`
}

// Enabled reports whether an evaluation log database is configured at all.
func (cfg DatabaseConfig) Enabled() bool {
	return cfg.Host != ""
}

func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aidioma")
	}

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("evaluator.cache_ttl_seconds", 1800)
	v.SetDefault("evaluator.cache_max_entries", 1000)
	v.SetDefault("evaluator.similarity_threshold", 0.85)
	v.SetDefault("evaluator.attempt_timeout_ms", 2000)
	v.SetDefault("evaluator.overall_timeout_ms", 10000)
	v.SetDefault("evaluator.max_retries", 3)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origin", "http://localhost:3000")
	v.SetDefault("database.port", 3306)

	// Bind OpenAI config to environment variables only (not from config file)
	if err := v.BindEnv("openai.api_key", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_API_KEY environment variable: %w", err)
	}
	if err := v.BindEnv("openai.model", "OPENAI_MODEL"); err != nil {
		return nil, fmt.Errorf("failed to bind OPENAI_MODEL environment variable: %w", err)
	}
	if err := v.BindEnv("database.password", "AIDIOMA_DATABASE_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind AIDIOMA_DATABASE_PASSWORD environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
