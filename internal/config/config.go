package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the indexer binaries. Every cmd/*
// entrypoint loads the same Config and reads only the sections it needs.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Price    PriceConfig    `mapstructure:"price"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds process-level configuration.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// DatabaseConfig holds PostgreSQL configuration for the relational store.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration for the job queue and price cache.
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	PoolSize  int    `mapstructure:"pool_size"`
}

// ChainConfig holds the Ethereum RPC/WS endpoints and retry tuning.
type ChainConfig struct {
	HTTPEndpoint    string `mapstructure:"http_endpoint"`
	WSEndpoint      string `mapstructure:"ws_endpoint"`
	ChainID         int64  `mapstructure:"chain_id"`
	RequestTimeout  int    `mapstructure:"request_timeout_seconds"`
	MaxRetries      int    `mapstructure:"max_retries"`
	RetryBaseDelay  int    `mapstructure:"retry_base_delay_ms"`
}

// QueueConfig holds job-queue key/list names.
type QueueConfig struct {
	BlockJobList     string `mapstructure:"block_job_list"`
	LogJobList       string `mapstructure:"log_job_list"`
	PayloadKeyPrefix string `mapstructure:"payload_key_prefix"`
	PayloadTTL       int    `mapstructure:"payload_ttl_seconds"`
	BlockPopTimeout  int    `mapstructure:"block_pop_timeout_seconds"`
}

// PriceConfig holds the ETH/USD oracle endpoint and cache TTL.
type PriceConfig struct {
	OracleURL string `mapstructure:"oracle_url"`
	CacheTTL  int    `mapstructure:"cache_ttl_seconds"`
}

// BackfillConfig tunes the historical range planner.
type BackfillConfig struct {
	InitialBatchSize int `mapstructure:"initial_batch_size"`
	MinBatchSize     int `mapstructure:"min_batch_size"`
	TimestampCacheSize int `mapstructure:"timestamp_cache_size"`
}

// MetricsConfig holds the ops HTTP surface configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Load reads configuration from file (if present) and environment
// variables, applying defaults for anything left unset.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/eth-indexer/")

	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eth-indexer")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8090)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.username", "indexer")
	v.SetDefault("database.password", "indexer")
	v.SetDefault("database.name", "eth_indexer")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "indexer:")
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("chain.http_endpoint", "http://localhost:8545")
	v.SetDefault("chain.ws_endpoint", "ws://localhost:8546")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.request_timeout_seconds", 15)
	v.SetDefault("chain.max_retries", 5)
	v.SetDefault("chain.retry_base_delay_ms", 250)

	v.SetDefault("queue.block_job_list", "indexer:queue:blocks")
	v.SetDefault("queue.log_job_list", "indexer:queue:logs")
	v.SetDefault("queue.payload_key_prefix", "indexer:job:")
	v.SetDefault("queue.payload_ttl_seconds", 3600)
	v.SetDefault("queue.block_pop_timeout_seconds", 5)

	v.SetDefault("price.oracle_url", "https://min-api.cryptocompare.com/data/price?fsym=ETH&tsyms=USD")
	v.SetDefault("price.cache_ttl_seconds", 10)

	v.SetDefault("backfill.initial_batch_size", 2000)
	v.SetDefault("backfill.min_batch_size", 10)
	v.SetDefault("backfill.timestamp_cache_size", 4096)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9100)
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "eth-indexer"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Chain.MaxRetries == 0 {
		c.Chain.MaxRetries = 5
	}
	if c.Backfill.MinBatchSize == 0 {
		c.Backfill.MinBatchSize = 10
	}
}

// GetDSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode,
	)
}

// GetAddress returns the Redis address.
func (c *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddress returns the ops HTTP bind address.
func (c *MetricsConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
