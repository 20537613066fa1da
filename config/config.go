package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds all configuration for the pool service
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Logging    LoggingConfig
	Service    ServiceConfig
	Pool       PoolConfig
	Connection ConnectionConfig
	Proxy      ProxyConfig
	Security   SecurityConfig
	Telegram   TelegramConfig
	VK         VKConfig
	Instagram  InstagramConfig
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds fast counter store configuration
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	CounterTTL time.Duration
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables event publishing.
type KafkaConfig struct {
	Brokers    []string
	TopicUsage string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
	Port string
}

// PoolConfig holds selection, throttling and background task settings
type PoolConfig struct {
	DefaultStrategy       string
	MaxActiveAccounts     int
	RequestLimit          int
	RequestDelay          time.Duration
	GroupDelay            time.Duration
	DegradedRequestFactor int
	DegradedGroupFactor   int
	IdleTimeout           time.Duration
	ReaperInterval        time.Duration
	SyncInterval          time.Duration
	StatsCheckInterval    time.Duration
	SyncProbability       float64
	OverridesFile         string
	Overrides             map[string]PlatformOverride
}

// ConnectionConfig holds connection factory retry settings
type ConnectionConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// ProxyConfig holds proxy probe settings
type ProxyConfig struct {
	ProbeURL     string
	ProbeTimeout time.Duration
}

// SecurityConfig holds the key for credentials encrypted at rest
type SecurityConfig struct {
	EncryptionKey string
}

// TelegramConfig holds fallback MTProto application credentials
type TelegramConfig struct {
	APIID   int
	APIHash string
}

// VKConfig holds VK API settings
type VKConfig struct {
	APIURL     string
	APIVersion string
}

// InstagramConfig holds Instagram private API settings
type InstagramConfig struct {
	APIURL      string
	MaxFailures int
}

// Result is fx.Out struct for providing config dependencies
type Result struct {
	fx.Out

	Config           *Config
	DatabaseConfig   *DatabaseConfig
	RedisConfig      *RedisConfig
	KafkaConfig      *KafkaConfig
	LoggingConfig    *LoggingConfig
	ServiceConfig    *ServiceConfig
	PoolConfig       *PoolConfig
	ConnectionConfig *ConnectionConfig
	ProxyConfig      *ProxyConfig
	SecurityConfig   *SecurityConfig
	TelegramConfig   *TelegramConfig
	VKConfig         *VKConfig
	InstagramConfig  *InstagramConfig
}

// Out returns fx-compatible config result
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:           cfg,
		DatabaseConfig:   &cfg.Database,
		RedisConfig:      &cfg.Redis,
		KafkaConfig:      &cfg.Kafka,
		LoggingConfig:    &cfg.Logging,
		ServiceConfig:    &cfg.Service,
		PoolConfig:       &cfg.Pool,
		ConnectionConfig: &cfg.Connection,
		ProxyConfig:      &cfg.Proxy,
		SecurityConfig:   &cfg.Security,
		TelegramConfig:   &cfg.Telegram,
		VKConfig:         &cfg.VK,
		InstagramConfig:  &cfg.Instagram,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	syncProbability, err := strconv.ParseFloat(getEnv("POOL_SYNC_PROBABILITY", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid POOL_SYNC_PROBABILITY: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "scraper"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			CounterTTL: getEnvDuration("COUNTER_TTL", 30*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(getEnv("KAFKA_BROKERS", "")),
			TopicUsage: getEnv("KAFKA_TOPIC_USAGE", "pool.usage"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "pool-service"),
			Port: getEnv("SERVICE_PORT", "8085"),
		},
		Pool: PoolConfig{
			DefaultStrategy:       getEnv("POOL_DEFAULT_STRATEGY", "round_robin"),
			MaxActiveAccounts:     getEnvInt("POOL_MAX_ACTIVE_ACCOUNTS", 5),
			RequestLimit:          getEnvInt("POOL_REQUEST_LIMIT", 1000),
			RequestDelay:          getEnvDuration("POOL_REQUEST_DELAY", 100*time.Millisecond),
			GroupDelay:            getEnvDuration("POOL_GROUP_DELAY", time.Second),
			DegradedRequestFactor: getEnvInt("POOL_DEGRADED_REQUEST_FACTOR", 5),
			DegradedGroupFactor:   getEnvInt("POOL_DEGRADED_GROUP_FACTOR", 2),
			IdleTimeout:           getEnvDuration("POOL_IDLE_TIMEOUT", time.Hour),
			ReaperInterval:        getEnvDuration("POOL_REAPER_INTERVAL", time.Hour),
			SyncInterval:          getEnvDuration("POOL_SYNC_INTERVAL", 10*time.Minute),
			StatsCheckInterval:    getEnvDuration("POOL_STATS_CHECK_INTERVAL", 5*time.Minute),
			SyncProbability:       syncProbability,
			OverridesFile:         getEnv("POOL_OVERRIDES_FILE", ""),
		},
		Connection: ConnectionConfig{
			MaxRetries: getEnvInt("CONNECT_MAX_RETRIES", 3),
			RetryDelay: getEnvDuration("CONNECT_RETRY_DELAY", 5*time.Second),
		},
		Proxy: ProxyConfig{
			ProbeURL:     getEnv("PROXY_PROBE_URL", "https://api.ipify.org?format=json"),
			ProbeTimeout: getEnvDuration("PROXY_PROBE_TIMEOUT", 10*time.Second),
		},
		Security: SecurityConfig{
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Telegram: TelegramConfig{
			APIID:   apiID,
			APIHash: getEnv("TELEGRAM_API_HASH", ""),
		},
		VK: VKConfig{
			APIURL:     getEnv("VK_API_URL", "https://api.vk.com/method"),
			APIVersion: getEnv("VK_API_VERSION", "5.131"),
		},
		Instagram: InstagramConfig{
			APIURL:      getEnv("INSTAGRAM_API_URL", "https://i.instagram.com/api/v1"),
			MaxFailures: getEnvInt("INSTAGRAM_MAX_FAILURES", 3),
		},
	}

	if cfg.Pool.OverridesFile != "" {
		overrides, err := LoadOverrides(cfg.Pool.OverridesFile)
		if err != nil {
			return nil, err
		}
		cfg.Pool.Overrides = overrides
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	switch c.Pool.DefaultStrategy {
	case "round_robin", "least_used", "random":
	default:
		return fmt.Errorf("POOL_DEFAULT_STRATEGY must be one of round_robin, least_used, random, got %q", c.Pool.DefaultStrategy)
	}

	if c.Pool.RequestLimit <= 0 {
		return fmt.Errorf("POOL_REQUEST_LIMIT must be positive")
	}

	if c.Pool.MaxActiveAccounts <= 0 {
		return fmt.Errorf("POOL_MAX_ACTIVE_ACCOUNTS must be positive")
	}

	if c.Pool.SyncProbability < 0 || c.Pool.SyncProbability > 1 {
		return fmt.Errorf("POOL_SYNC_PROBABILITY must be within [0, 1]")
	}

	if c.Connection.MaxRetries < 1 {
		return fmt.Errorf("CONNECT_MAX_RETRIES must be at least 1")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Enabled reports whether event publishing is configured
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// ForPlatform returns pool settings with the platform override applied
func (c *PoolConfig) ForPlatform(platform string) PoolConfig {
	out := *c
	override, ok := c.Overrides[platform]
	if !ok {
		return out
	}

	if override.Strategy != "" {
		out.DefaultStrategy = override.Strategy
	}
	if override.RequestLimit > 0 {
		out.RequestLimit = override.RequestLimit
	}
	if override.MaxActiveAccounts > 0 {
		out.MaxActiveAccounts = override.MaxActiveAccounts
	}

	return out
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration gets environment variable as duration with default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
