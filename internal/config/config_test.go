package config

import "testing"

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host: "db.internal", Port: 5432, Username: "indexer", Password: "secret",
		Database: "eth_indexer", SSLMode: "disable",
	}
	want := "host=db.internal port=5432 user=indexer password=secret dbname=eth_indexer sslmode=disable"
	if got := c.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestRedisConfig_GetAddress(t *testing.T) {
	c := RedisConfig{Host: "redis.internal", Port: 6379}
	if got := c.GetAddress(); got != "redis.internal:6379" {
		t.Errorf("GetAddress() = %q, want %q", got, "redis.internal:6379")
	}
}

func TestMetricsConfig_GetServerAddress(t *testing.T) {
	c := MetricsConfig{Host: "0.0.0.0", Port: 9100}
	if got := c.GetServerAddress(); got != "0.0.0.0:9100" {
		t.Errorf("GetServerAddress() = %q, want %q", got, "0.0.0.0:9100")
	}
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	var c Config
	c.applyDefaults()

	if c.App.Name != "eth-indexer" {
		t.Errorf("App.Name = %q, want eth-indexer", c.App.Name)
	}
	if c.App.LogLevel != "info" {
		t.Errorf("App.LogLevel = %q, want info", c.App.LogLevel)
	}
	if c.Database.MaxOpenConns != 20 {
		t.Errorf("Database.MaxOpenConns = %d, want 20", c.Database.MaxOpenConns)
	}
	if c.Redis.PoolSize != 20 {
		t.Errorf("Redis.PoolSize = %d, want 20", c.Redis.PoolSize)
	}
	if c.Chain.MaxRetries != 5 {
		t.Errorf("Chain.MaxRetries = %d, want 5", c.Chain.MaxRetries)
	}
	if c.Backfill.MinBatchSize != 10 {
		t.Errorf("Backfill.MinBatchSize = %d, want 10", c.Backfill.MinBatchSize)
	}
}

func TestApplyDefaults_PreservesSetValues(t *testing.T) {
	c := Config{App: AppConfig{Name: "custom", LogLevel: "debug"}}
	c.applyDefaults()

	if c.App.Name != "custom" {
		t.Errorf("App.Name = %q, want custom (should not override set value)", c.App.Name)
	}
	if c.App.LogLevel != "debug" {
		t.Errorf("App.LogLevel = %q, want debug", c.App.LogLevel)
	}
}
