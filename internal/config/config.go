// Package config loads pipeline configuration from a YAML file with
// environment overrides (RESIL_ prefix) layered over built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full pipeline configuration.
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Review   ReviewConfig   `mapstructure:"review"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Server   ServerConfig   `mapstructure:"server"`
	LogLevel string         `mapstructure:"log_level"`
}

// EndpointConfig describes the inference endpoint and its retry policy.
type EndpointConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// ScoringConfig controls the dimension agent passes.
type ScoringConfig struct {
	Temperature   float64  `mapstructure:"temperature"`
	MaxTokens     int      `mapstructure:"max_tokens"`
	StopSequences []string `mapstructure:"stop_sequences"`
	MaxAttempts   int      `mapstructure:"max_attempts"` // generate+repair attempts per dimension
}

// ReviewConfig controls the consolidating review pass.
type ReviewConfig struct {
	DispersionThreshold float64 `mapstructure:"dispersion_threshold"` // points of deviation from the median
	MinEvidence         int     `mapstructure:"min_evidence"`         // evidence items needed to excuse an outlier
	MaxTokens           int     `mapstructure:"max_tokens"`
}

// BatchConfig controls the batch coordinator.
type BatchConfig struct {
	RequeuePartial bool `mapstructure:"requeue_partial"` // re-process PARTIAL units on resume
}

// PathsConfig locates pipeline inputs and outputs.
type PathsConfig struct {
	DataDir        string `mapstructure:"data_dir"`        // preprocessed section JSON
	ScoresDir      string `mapstructure:"scores_dir"`      // scoring record output
	CheckpointFile string `mapstructure:"checkpoint_file"` // append-only JSONL log
}

// ServerConfig configures the progress/records HTTP API.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	EnableCORS bool   `mapstructure:"enable_cors"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.base_url", "http://localhost:8080")
	v.SetDefault("endpoint.timeout", 120*time.Second)
	v.SetDefault("endpoint.max_retries", 2)
	v.SetDefault("endpoint.retry_base_delay", time.Second)

	v.SetDefault("scoring.temperature", 0.1)
	v.SetDefault("scoring.max_tokens", 1500)
	v.SetDefault("scoring.stop_sequences", []string{"}```", "\n\n\n"})
	v.SetDefault("scoring.max_attempts", 3)

	v.SetDefault("review.dispersion_threshold", 30.0)
	v.SetDefault("review.min_evidence", 2)
	v.SetDefault("review.max_tokens", 800)

	v.SetDefault("batch.requeue_partial", false)

	v.SetDefault("paths.data_dir", "data/10k_cleaned")
	v.SetDefault("paths.scores_dir", "data/scores")
	v.SetDefault("paths.checkpoint_file", "data/checkpoint.jsonl")

	v.SetDefault("server.addr", "localhost:9090")
	v.SetDefault("server.enable_cors", true)

	v.SetDefault("log_level", "info")
}

// Load reads configuration from path (optional) plus RESIL_* environment
// variables over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RESIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, _ := Load("")
	return cfg
}
