// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	FileStore  FileStoreConfig  `mapstructure:"filestore"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	LogFile     string `mapstructure:"log_file"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains PostgreSQL configuration. The database backs the
// durable cache backend and the storage-credential vault.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// AuthConfig contains authentication configuration. Bearer tokens are
// verified against the configured identity provider; TokenCipherKey
// encrypts stored cloud-storage credentials at rest.
type AuthConfig struct {
	Provider          string   `mapstructure:"provider"`
	SecretKey         string   `mapstructure:"secret_key"`
	AuthorizedParties []string `mapstructure:"authorized_parties"`
	TokenCipherKey    string   `mapstructure:"token_cipher_key"`
}

// LLMConfig contains generative model configuration
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	TopP            float32       `mapstructure:"top_p"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens"`
	RetryBudget     int           `mapstructure:"retry_budget"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerMin  int           `mapstructure:"requests_per_min"`
	PromptDir       string        `mapstructure:"prompt_dir"`
}

// CacheConfig contains recipe cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// CleanupConfig contains HTML cleanup cascade configuration
type CleanupConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	Structured    StructuredConfig    `mapstructure:"structured"`
	Section       SectionConfig       `mapstructure:"section"`
	ContentFilter ContentFilterConfig `mapstructure:"content_filter"`
	Fallback      FallbackConfig      `mapstructure:"fallback"`
}

// StructuredConfig configures JSON-LD structured-data extraction
type StructuredConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MinCompleteness int  `mapstructure:"min_completeness"`
}

// SectionConfig configures recipe-section scoring
type SectionConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	MinConfidence int      `mapstructure:"min_confidence"`
	Keywords      []string `mapstructure:"keywords"`
}

// ContentFilterConfig configures whole-document pruning
type ContentFilterConfig struct {
	MinOutputSize int `mapstructure:"min_output_size"`
}

// FallbackConfig configures the pass-through strategy
type FallbackConfig struct {
	MinSafeSize int `mapstructure:"min_safe_size"`
}

// FetchConfig contains outbound HTML fetch configuration
type FetchConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxConnsPerHost int           `mapstructure:"max_conns_per_host"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
}

// FileStoreConfig contains per-user artifact storage configuration
type FileStoreConfig struct {
	Provider          string `mapstructure:"provider"`
	DefaultFolderName string `mapstructure:"default_folder_name"`
	CredentialsJSON   string `mapstructure:"credentials_json"`
	LocalPath         string `mapstructure:"local_path"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool   `mapstructure:"enable_metrics"`
	MetricsPath     string `mapstructure:"metrics_path"`
	HealthCheckPath string `mapstructure:"health_check_path"`
}

// RateLimitConfig contains HTTP rate limiting configuration
type RateLimitConfig struct {
	Enable         bool `mapstructure:"enable"`
	RequestsPerMin int  `mapstructure:"requests_per_min"`
	BurstSize      int  `mapstructure:"burst_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cookbook")
	}

	// Enable environment variable override
	v.SetEnvPrefix("COOKBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Cookbook")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_cors", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.min_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "2s")
	v.SetDefault("redis.read_timeout", "500ms")
	v.SetDefault("redis.write_timeout", "2s")
	v.SetDefault("redis.pool_size", 10)

	// Auth defaults
	v.SetDefault("auth.provider", "clerk")

	// LLM defaults
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.top_p", 0.95)
	v.SetDefault("llm.max_output_tokens", 8192)
	v.SetDefault("llm.retry_budget", 1)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.requests_per_min", 60)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.key_prefix", "cookbook:recipe:")
	v.SetDefault("cache.lookup_timeout", "250ms")
	v.SetDefault("cache.save_timeout", "2s")
	v.SetDefault("cache.ttl", "0") // 0 means keep forever

	// Cleanup defaults
	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.structured.enabled", true)
	v.SetDefault("cleanup.structured.min_completeness", 60)
	v.SetDefault("cleanup.section.enabled", true)
	v.SetDefault("cleanup.section.min_confidence", 40)
	v.SetDefault("cleanup.section.keywords", []string{
		"ingredient", "ingredients", "instruction", "instructions",
		"recipe", "directions", "preparation", "method", "servings",
	})
	v.SetDefault("cleanup.content_filter.min_output_size", 256)
	v.SetDefault("cleanup.fallback.min_safe_size", 512)

	// Fetch defaults
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.user_agent", "CookbookBot/1.0 (+https://cookbookhq.dev)")
	v.SetDefault("fetch.max_body_bytes", 5<<20) // 5MB
	v.SetDefault("fetch.max_conns", 200)
	v.SetDefault("fetch.max_conns_per_host", 20)
	v.SetDefault("fetch.connect_timeout", "2s")
	v.SetDefault("fetch.response_timeout", "30s")

	// FileStore defaults
	v.SetDefault("filestore.provider", "drive")
	v.SetDefault("filestore.default_folder_name", "Cookbook")
	v.SetDefault("filestore.local_path", "./data/filestore")

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_check_path", "/health")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_min", 60)
	v.SetDefault("rate_limit.burst_size", 10)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.LLM.APIKey == "" && c.IsProduction() {
		return fmt.Errorf("llm.api_key is required in production")
	}

	switch c.LLM.Provider {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be gemini or anthropic, got %q", c.LLM.Provider)
	}

	if c.LLM.RetryBudget < 0 {
		return fmt.Errorf("llm.retry_budget must not be negative")
	}

	switch c.Cache.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("cache.backend must be memory, redis, or postgres, got %q", c.Cache.Backend)
	}

	switch c.FileStore.Provider {
	case "drive", "local":
	default:
		return fmt.Errorf("filestore.provider must be drive or local, got %q", c.FileStore.Provider)
	}

	if c.Auth.Provider == "clerk" && c.Auth.SecretKey == "" && c.IsProduction() {
		return fmt.Errorf("auth.secret_key is required in production")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
