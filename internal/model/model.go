// Package model fits the two-stage daily incident model: a smooth seasonal
// trend whose fitted value feeds a Poisson count regressor alongside ridership,
// calendar and lag features.
package model

import (
	"strconv"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
)

// TrendModel fits a smooth function of time to a daily count series.
type TrendModel interface {
	Fit(dates []time.Time, counts []float64) (FittedTrend, error)
}

// FittedTrend evaluates a fitted trend at arbitrary dates.
type FittedTrend interface {
	Predict(dates []time.Time) []float64
}

// Dataset is a feature matrix with one label per row. Y may be nil for
// prediction-only data.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.X) }

// CountRegressor fits a model of non-negative counts. valid may be empty.
type CountRegressor interface {
	Fit(train, valid Dataset) (FittedRegressor, error)
}

// FittedRegressor predicts expected counts from feature rows.
type FittedRegressor interface {
	Predict(x [][]float64) []float64
	BestIteration() int
}

// Degraded-path reasons reported when a partition is empty.
const (
	DegradedNoValidation = "no_validation"
	DegradedNoTest       = "no_test"
)

// TrendColumn is the name of the trend feature.
const TrendColumn = "trend_fit"

// Columns is the fixed feature order shared by training and forecasting.
var Columns = buildColumns()

func buildColumns() []string {
	cols := []string{
		"ridership", "ridership_ma7", "ridership_ma14", "ratio",
		"weekday", "month", "iso_week", "payday", "weekend", "holiday",
	}
	for _, l := range series.Lags {
		cols = append(cols, "incidents_lag"+strconv.Itoa(l))
	}
	for _, l := range series.Lags {
		cols = append(cols, "ridership_lag"+strconv.Itoa(l))
	}
	return append(cols, TrendColumn)
}

// Features renders one frame row plus its trend value in Columns order.
func Features(r domain.DailyRow, trend float64) []float64 {
	x := make([]float64, 0, len(Columns))
	x = append(x,
		r.Ridership, r.RidershipMA7, r.RidershipMA14, r.Ratio,
		float64(r.Weekday), float64(r.Month), float64(r.ISOWeek),
		b2f(r.Payday), b2f(r.Weekend), b2f(r.Holiday),
	)
	x = append(x, r.IncidentLags[:]...)
	x = append(x, r.RidershipLags[:]...)
	return append(x, trend)
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// TrainedModel bundles the fitted stages for one run. It is never persisted.
type TrainedModel struct {
	Trend     FittedTrend
	Scaler    *Scaler
	Regressor FittedRegressor
	Columns   []string
}

// Predict returns non-negative expected counts for feature rows already in
// Columns order.
func (m *TrainedModel) Predict(x [][]float64) []float64 {
	out := m.Regressor.Predict(m.Scaler.Transform(x))
	for i, v := range out {
		out[i] = max(v, 0)
	}
	return out
}
