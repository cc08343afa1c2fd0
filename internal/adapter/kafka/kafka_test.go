package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func sampleResult() domain.ForecastResult {
	return domain.ForecastResult{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
		StationKey:  "17",
		StationName: "Pino Suárez",
		Weeks:       []domain.WeeklyForecast{{Predicted: 3.2, Probability: 95.92, Risk: domain.RiskHigh}},
		History:     []domain.DailyRow{{Incidents: 1}},
	}
}

func TestSerializeToMessage(t *testing.T) {
	result := sampleResult()
	msg, err := serializeToMessage(result)
	require.NoError(t, err)

	assert.Equal(t, []byte("17"), msg.Key)
	assert.Contains(t, string(msg.Value), `"risk":"Alto"`)
	assert.NotContains(t, string(msg.Value), `"history"`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "station_key", msg.Headers[0].Key)
	assert.Equal(t, []byte("17"), msg.Headers[0].Value)
	assert.Equal(t, "run_id", msg.Headers[1].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[1].Value)
	assert.Equal(t, "generated_at", msg.Headers[2].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[2].Value)

	var decoded domain.ForecastResult
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "Pino Suárez", decoded.StationName)

	assert.Len(t, result.History, 1, "caller's result is not modified")
}

func TestWriter_Load(t *testing.T) {
	mw := &mockWriter{}
	w := &Writer{writer: mw, logger: slog.Default()}

	require.NoError(t, w.Load(context.Background(), sampleResult()))
	require.Len(t, mw.msgs, 1)
	assert.Equal(t, []byte("17"), mw.msgs[0].Key)

	require.NoError(t, w.Close())
	assert.True(t, mw.closed)
}

func TestWriter_LoadError(t *testing.T) {
	boom := errors.New("leader not available")
	w := &Writer{writer: &mockWriter{err: boom}, logger: slog.Default()}

	err := w.Load(context.Background(), sampleResult())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "run-1")
}
