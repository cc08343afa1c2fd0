// Package forecast projects a trained station model 28 days ahead and turns
// the daily predictions into weekly risk levels.
package forecast

import (
	"errors"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/model"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
)

const (
	// Horizon is the number of forecast days.
	Horizon = 28
	// Alpha weights the model prediction against the station base rate.
	Alpha = 0.70

	tailDays        = 30
	ridershipWindow = 14

	lowCutoff  = 15.0
	highCutoff = 35.0
)

var errEmptyFrame = errors.New("forecast: empty daily frame")

// Result holds the daily and weekly projections.
type Result struct {
	Daily []domain.DailyPrediction
	Weeks []domain.WeeklyForecast
	// Imputed is the number of lag cells filled in the future feature rows.
	Imputed int
}

// Forecaster projects trained models over a fixed horizon.
type Forecaster struct {
	horizon int
	alpha   float64
}

// New returns a Forecaster with the production horizon and shrinkage weight.
func New() *Forecaster {
	return &Forecaster{horizon: Horizon, alpha: Alpha}
}

// Forecast predicts the days after the last row of f. baseWeekly is the
// station's historical weekly incident rate; a negative or non-finite value
// is replaced by seven times the mean daily count.
func (fc *Forecaster) Forecast(f series.Frame, m *model.TrainedModel, baseWeekly float64) (Result, error) {
	if f.Len() == 0 {
		return Result{}, errEmptyFrame
	}

	last := f.Last().Date
	dates := make([]time.Time, fc.horizon)
	for i := range dates {
		dates[i] = last.AddDate(0, 0, i+1)
	}
	trend := m.Trend.Predict(dates)

	// Exogenous inputs are unknown ahead of time: ridership is held at its
	// recent median and future incident counts are missing.
	ridership := Median(lastN(f.Ridership(), ridershipWindow))
	tail := slices.Clone(f.Rows[max(0, f.Len()-tailDays):])
	roll := make([]domain.DailyRow, 0, len(tail)+fc.horizon)
	roll = append(roll, tail...)
	for _, d := range dates {
		r := domain.DailyRow{
			Date:          d,
			Incidents:     math.NaN(),
			Ridership:     ridership,
			RidershipMA7:  ridership,
			RidershipMA14: ridership,
		}
		series.FillCalendar(&r)
		roll = append(roll, r)
	}
	inc := make([]float64, len(roll))
	rid := make([]float64, len(roll))
	for i := range roll {
		inc[i], rid[i] = roll[i].Incidents, roll[i].Ridership
	}
	series.SetLags(roll, inc, rid)

	future := roll[len(tail):]
	x := make([][]float64, len(future))
	for i := range future {
		x[i] = model.Features(future[i], trend[i])
	}
	aligned, imputed := model.AlignLenient(model.Dataset{X: x})
	pred := m.Predict(aligned.X)

	res := Result{Daily: make([]domain.DailyPrediction, len(dates)), Imputed: imputed}
	for i, d := range dates {
		res.Daily[i] = domain.DailyPrediction{Date: d, Predicted: pred[i], Trend: trend[i]}
	}

	base := BaseWeeklyRate(f, baseWeekly)
	for _, w := range Weekly(res.Daily) {
		w.Predicted = Shrink(w.RawPredicted, base, fc.alpha)
		w.Probability = Probability(w.Predicted)
		w.Risk = Tier(w.Probability)
		res.Weeks = append(res.Weeks, w)
	}
	return res, nil
}

// Weekly sums daily predictions into weeks ending Sunday. Partial weeks at
// either edge are kept.
func Weekly(daily []domain.DailyPrediction) []domain.WeeklyForecast {
	var out []domain.WeeklyForecast
	for _, d := range daily {
		we := domain.WeekEnding(d.Date)
		if len(out) == 0 || !out[len(out)-1].WeekEnding.Equal(we) {
			out = append(out, domain.WeeklyForecast{WeekEnding: we})
		}
		w := &out[len(out)-1]
		w.RawPredicted += d.Predicted
		w.Trend += d.Trend
	}
	return out
}

// BaseWeeklyRate returns supplied when it is a finite non-negative number,
// otherwise seven times the frame's mean daily incident count.
func BaseWeeklyRate(f series.Frame, supplied float64) float64 {
	if !math.IsNaN(supplied) && !math.IsInf(supplied, 0) && supplied >= 0 {
		return supplied
	}
	if f.Len() == 0 {
		return 0
	}
	return max(0, stat.Mean(f.Incidents(), nil)*7)
}

// Shrink blends a raw weekly prediction toward the base rate:
// alpha*max(raw, 0) + (1-alpha)*base.
func Shrink(raw, base, alpha float64) float64 {
	return alpha*max(raw, 0) + (1-alpha)*base
}

// maxProbability keeps rounded probabilities below 100%.
const maxProbability = 99.99

// Probability returns the chance, in percent rounded to two decimals, of at
// least one incident under a Poisson rate lambda. The result lies in [0, 100).
func Probability(lambda float64) float64 {
	p := (1 - math.Exp(-max(lambda, 0))) * 100
	return min(math.Round(p*100)/100, maxProbability)
}

// Tier labels a percentage probability.
func Tier(pct float64) domain.RiskTier {
	switch {
	case pct < lowCutoff:
		return domain.RiskLow
	case pct < highCutoff:
		return domain.RiskMedium
	}
	return domain.RiskHigh
}

// Median returns the middle value of values, averaging the two middle values
// for even lengths. It returns NaN for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := slices.Clone(values)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func lastN(values []float64, n int) []float64 {
	return values[max(0, len(values)-n):]
}
