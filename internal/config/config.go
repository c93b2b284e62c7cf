package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the opskb service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Classify  ClassifyConfig  `yaml:"classify"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Seed      SeedConfig      `yaml:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutMS   int    `yaml:"timeout_ms"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // embedding byte cache; 0 disables expiry
}

// RetrievalConfig holds fusion weights and per-source call settings.
type RetrievalConfig struct {
	VectorWeight      float64 `yaml:"vector_weight"`
	LexicalWeight     float64 `yaml:"lexical_weight"`
	DefaultMaxResults int     `yaml:"default_max_results"`
	MaxResultsCap     int     `yaml:"max_results_cap"`
	CandidateK        int     `yaml:"candidate_k"` // per-source candidates fetched before fusion
	IndexTimeoutMS    int     `yaml:"index_timeout_ms"`
	MaxQueryBytes     int     `yaml:"max_query_bytes"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	TTLSec     int `yaml:"ttl_sec"`
	SweepSec   int `yaml:"sweep_sec"`
	MaxEntries int `yaml:"max_entries"`
}

// ClassifyConfig holds classification thresholds and defaults.
type ClassifyConfig struct {
	SimilarN                 int     `yaml:"similar_n"`
	CategoryThreshold        float64 `yaml:"category_threshold"`
	FallbackConfidence       float64 `yaml:"fallback_confidence"`
	DefaultResolutionMinutes int     `yaml:"default_resolution_minutes"`
	DefaultSeverity          string  `yaml:"default_severity"`
	DefaultPriority          string  `yaml:"default_priority"`
}

// StorageConfig holds key naming settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// SeedConfig controls demo corpus loading at startup.
type SeedConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} / ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.TimeoutMS <= 0 {
		c.Embedding.TimeoutMS = 5000
	}
	if c.Retrieval.VectorWeight <= 0 {
		c.Retrieval.VectorWeight = 0.7
	}
	if c.Retrieval.LexicalWeight <= 0 {
		c.Retrieval.LexicalWeight = 0.3
	}
	if c.Retrieval.DefaultMaxResults <= 0 {
		c.Retrieval.DefaultMaxResults = 10
	}
	if c.Retrieval.MaxResultsCap <= 0 {
		c.Retrieval.MaxResultsCap = 100
	}
	if c.Retrieval.CandidateK <= 0 {
		c.Retrieval.CandidateK = 50
	}
	if c.Retrieval.IndexTimeoutMS <= 0 {
		c.Retrieval.IndexTimeoutMS = 2000
	}
	if c.Retrieval.MaxQueryBytes <= 0 {
		c.Retrieval.MaxQueryBytes = 8192
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.SweepSec <= 0 {
		c.Cache.SweepSec = 60
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 10000
	}
	if c.Classify.SimilarN <= 0 {
		c.Classify.SimilarN = 5
	}
	if c.Classify.CategoryThreshold <= 0 {
		c.Classify.CategoryThreshold = 0.5
	}
	if c.Classify.FallbackConfidence <= 0 {
		c.Classify.FallbackConfidence = 0.3
	}
	if c.Classify.DefaultResolutionMinutes <= 0 {
		c.Classify.DefaultResolutionMinutes = 60
	}
	if c.Classify.DefaultSeverity == "" {
		c.Classify.DefaultSeverity = "medium"
	}
	if c.Classify.DefaultPriority == "" {
		c.Classify.DefaultPriority = "normal"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "opskb:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Retrieval.VectorWeight+c.Retrieval.LexicalWeight <= 0 {
		return fmt.Errorf("retrieval weights must sum to a positive value")
	}
	if c.Classify.CategoryThreshold > 1 {
		return fmt.Errorf("classify.category_threshold must be in (0,1], got %v", c.Classify.CategoryThreshold)
	}
	if c.Classify.FallbackConfidence > 1 {
		return fmt.Errorf("classify.fallback_confidence must be in (0,1], got %v", c.Classify.FallbackConfidence)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
