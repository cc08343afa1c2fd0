package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "json")
	logger.Info("dropped")
	logger.Warn("kept", "station_key", "zocalo")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "zocalo", entry["station_key"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "info", "text").Info("hello", "radius_m", 150)
	assert.Contains(t, buf.String(), "radius_m=150")
}

func TestNewMetricsForTesting(t *testing.T) {
	m := NewMetricsForTesting()
	m.RunsTotal.WithLabelValues("success").Inc()
	m.CacheLookups.WithLabelValues("hit").Add(2)
	assert.Equal(t, 1.0, counterValue(t, m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, counterValue(t, m.CacheLookups.WithLabelValues("hit")))

	// A second instance must not collide with the first.
	assert.NotPanics(t, func() { NewMetricsForTesting() })
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}
