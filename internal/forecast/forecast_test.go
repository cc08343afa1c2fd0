package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/model"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flatTrend float64

func (f flatTrend) Predict(dates []time.Time) []float64 {
	out := make([]float64, len(dates))
	for i := range out {
		out[i] = float64(f)
	}
	return out
}

// recordingRegressor predicts a fixed count and keeps the rows it was asked about.
type recordingRegressor struct {
	value float64
	seen  [][]float64
}

func (r *recordingRegressor) Predict(x [][]float64) []float64 {
	r.seen = x
	out := make([]float64, len(x))
	for i := range out {
		out[i] = r.value
	}
	return out
}

func (r *recordingRegressor) BestIteration() int { return 0 }

// historyFrame ends on Wednesday 2024-03-06. Incidents equal the day index.
func historyFrame(n int) series.Frame {
	last := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	rows := make([]domain.DailyRow, n)
	for i := range rows {
		rows[i] = domain.DailyRow{
			Date:      last.AddDate(0, 0, i-n+1),
			Incidents: float64(i),
			Ridership: float64(100 + i),
		}
		series.FillCalendar(&rows[i])
	}
	return series.Frame{StationKey: "zocalo", Rows: rows}
}

func trained(reg model.FittedRegressor) *model.TrainedModel {
	return &model.TrainedModel{Trend: flatTrend(0.25), Scaler: &model.Scaler{}, Regressor: reg, Columns: model.Columns}
}

func column(name string) int {
	for i, c := range model.Columns {
		if c == name {
			return i
		}
	}
	panic(name)
}

func TestForecast(t *testing.T) {
	reg := &recordingRegressor{value: 1}
	f := historyFrame(90)

	res, err := New().Forecast(f, trained(reg), 10)
	require.NoError(t, err)

	require.Len(t, res.Daily, Horizon)
	assert.Equal(t, time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), res.Daily[0].Date)
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), res.Daily[Horizon-1].Date)
	assert.Equal(t, 0.25, res.Daily[0].Trend)

	t.Run("weeks end on sunday and keep partial edges", func(t *testing.T) {
		require.Len(t, res.Weeks, 5)
		raw := []float64{4, 7, 7, 7, 3}
		for i, w := range res.Weeks {
			assert.Equal(t, time.Sunday, w.WeekEnding.Weekday())
			assert.InDelta(t, raw[i], w.RawPredicted, 1e-9)
			assert.InDelta(t, raw[i]*0.25, w.Trend, 1e-9)
			assert.InDelta(t, 0.7*raw[i]+0.3*10, w.Predicted, 1e-9)
			assert.Equal(t, Probability(w.Predicted), w.Probability)
			assert.Equal(t, domain.RiskHigh, w.Risk)
		}
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), res.Weeks[0].WeekEnding)
	})

	t.Run("future features", func(t *testing.T) {
		require.Len(t, reg.seen, Horizon)
		// Median of the last 14 ridership values: 176..189.
		assert.Equal(t, 182.5, reg.seen[0][column("ridership")])
		assert.Equal(t, 182.5, reg.seen[27][column("ridership_ma14")])
		assert.Zero(t, reg.seen[0][column("ratio")])
		assert.Equal(t, 0.25, reg.seen[5][column(model.TrendColumn)])

		// Lag 1 of the first future day is the last observed count; later days
		// carry it forward because future counts are unknown.
		assert.Equal(t, 89.0, reg.seen[0][column("incidents_lag1")])
		assert.Equal(t, 89.0, reg.seen[1][column("incidents_lag1")])
		assert.Equal(t, 83.0, reg.seen[0][column("incidents_lag7")])
		assert.Equal(t, 89.0, reg.seen[10][column("incidents_lag7")])
		assert.Equal(t, 182.5, reg.seen[1][column("ridership_lag1")])
		assert.Equal(t, 189.0, reg.seen[0][column("ridership_lag1")])
		assert.Positive(t, res.Imputed)

		for _, row := range reg.seen {
			for _, v := range row {
				assert.False(t, math.IsNaN(v))
			}
		}
	})
}

func TestForecast_EmptyFrame(t *testing.T) {
	_, err := New().Forecast(series.Frame{}, trained(&recordingRegressor{}), 1)
	assert.Error(t, err)
}

func TestBaseWeeklyRate(t *testing.T) {
	f := historyFrame(10) // mean daily incidents 4.5
	assert.Equal(t, 3.0, BaseWeeklyRate(f, 3))
	assert.Equal(t, 0.0, BaseWeeklyRate(f, 0))
	assert.InDelta(t, 31.5, BaseWeeklyRate(f, math.NaN()), 1e-9)
	assert.InDelta(t, 31.5, BaseWeeklyRate(f, -1), 1e-9)
	assert.InDelta(t, 31.5, BaseWeeklyRate(f, math.Inf(1)), 1e-9)
	assert.Zero(t, BaseWeeklyRate(series.Frame{}, math.NaN()))
}

func TestShrink_IsConvex(t *testing.T) {
	for _, raw := range []float64{0, 0.3, 2, 9.5} {
		for _, base := range []float64{0, 1, 4} {
			got := Shrink(raw, base, Alpha)
			assert.GreaterOrEqual(t, got, min(raw, base)-1e-12)
			assert.LessOrEqual(t, got, max(raw, base)+1e-12)
		}
	}
	assert.InDelta(t, 0.3*2, Shrink(-5, 2, Alpha), 1e-12, "negative raw counts clip to zero")
}

func TestProbability(t *testing.T) {
	assert.Zero(t, Probability(0))
	assert.Equal(t, 63.21, Probability(1))
	assert.Equal(t, 99.99, Probability(50))

	prev := -1.0
	for l := 0.0; l < 20; l += 0.05 {
		p := Probability(l)
		assert.GreaterOrEqual(t, p, prev)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.Less(t, p, 100.0)
		prev = p
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		pct  float64
		want domain.RiskTier
	}{
		{0, domain.RiskLow},
		{14.99, domain.RiskLow},
		{15, domain.RiskMedium},
		{34.99, domain.RiskMedium},
		{35, domain.RiskHigh},
		{99.99, domain.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tier(tt.pct), "pct=%v", tt.pct)
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
	assert.True(t, math.IsNaN(Median(nil)))
}
