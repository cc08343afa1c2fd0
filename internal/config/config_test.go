package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, DriverSQLite, cfg.FeedDriver)
	assert.Equal(t, "data/metro.db", cfg.SQLitePath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "data", cfg.CSVDir)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 2*time.Minute, cfg.ForecastTimeout)
	assert.Equal(t, 2, cfg.ForecastMaxConcurrent)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "station-risk-forecasts", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://metro.example")
	t.Setenv("FEED_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://metro@localhost/metro")
	t.Setenv("CACHE_SIZE", "0")
	t.Setenv("CACHE_TTL", "0s")
	t.Setenv("FORECAST_TIMEOUT", "45s")
	t.Setenv("FORECAST_MAX_CONCURRENT", "8")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-forecasts")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "https://metro.example"}, cfg.CORSOrigins)
	assert.Equal(t, DriverPostgres, cfg.FeedDriver)
	assert.Equal(t, "postgres://metro@localhost/metro", cfg.DatabaseURL)
	assert.Zero(t, cfg.CacheSize)
	assert.Zero(t, cfg.CacheTTL)
	assert.Equal(t, 45*time.Second, cfg.ForecastTimeout)
	assert.Equal(t, 8, cfg.ForecastMaxConcurrent)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-forecasts", cfg.KafkaTopic)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"cache ttl", map[string]string{"CACHE_TTL": "soon"}, "CACHE_TTL"},
		{"zero forecast timeout", map[string]string{"FORECAST_TIMEOUT": "0s"}, "FORECAST_TIMEOUT"},
		{"negative cache size", map[string]string{"CACHE_SIZE": "-1"}, "CACHE_SIZE"},
		{"zero concurrency", map[string]string{"FORECAST_MAX_CONCURRENT": "0"}, "FORECAST_MAX_CONCURRENT"},
		{"unknown driver", map[string]string{"FEED_DRIVER": "mysql"}, "FEED_DRIVER"},
		{"postgres without url", map[string]string{"FEED_DRIVER": "postgres"}, "DATABASE_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_KafkaDisabledIgnoresTopic(t *testing.T) {
	t.Setenv("KAFKA_TOPIC", "")
	_, err := Load()
	assert.NoError(t, err)
}
