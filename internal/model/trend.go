package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// TrendOptions configures SeasonalTrend.
type TrendOptions struct {
	DailyOrder  int
	WeeklyOrder int
	YearlyOrder int
	// Ridge is the L2 penalty applied to every coefficient except the intercept.
	Ridge float64
}

// DefaultTrendOptions returns the production settings.
func DefaultTrendOptions() TrendOptions {
	return TrendOptions{DailyOrder: 4, WeeklyOrder: 3, YearlyOrder: 10, Ridge: 1}
}

// SeasonalTrend is an additive linear trend plus Fourier seasonality with
// daily, weekly and yearly periods, fit by ridge least squares.
type SeasonalTrend struct {
	opt TrendOptions
}

// NewSeasonalTrend returns a trend model using opt.
func NewSeasonalTrend(opt TrendOptions) *SeasonalTrend {
	return &SeasonalTrend{opt: opt}
}

var errEmptySeries = errors.New("empty series")

type seasonality struct {
	period float64 // days
	order  int
}

type fittedSeasonalTrend struct {
	origin  float64 // epoch days of the first training date
	span    float64 // training span in days, at least 1
	seasons []seasonality
	coef    []float64
}

func epochDays(t time.Time) float64 {
	return float64(t.Unix()) / 86400
}

// Fit solves for the trend coefficients on the given series.
func (s *SeasonalTrend) Fit(dates []time.Time, counts []float64) (FittedTrend, error) {
	if len(dates) == 0 || len(dates) != len(counts) {
		return nil, fmt.Errorf("fit trend: %w (dates=%d, counts=%d)", errEmptySeries, len(dates), len(counts))
	}

	f := &fittedSeasonalTrend{
		origin: epochDays(dates[0]),
		span:   1,
		seasons: []seasonality{
			{period: 1, order: s.opt.DailyOrder},
			{period: 7, order: s.opt.WeeklyOrder},
			{period: 365.25, order: s.opt.YearlyOrder},
		},
	}
	if last := epochDays(dates[len(dates)-1]); last-f.origin > 1 {
		f.span = last - f.origin
	}

	x := f.design(dates)
	_, p := x.Dims()

	var xtx mat.SymDense
	xtx.SymOuterK(1, x.T())
	for j := 1; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+s.opt.Ridge)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(counts), counts))

	var beta mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(&xtx) {
		if err := chol.SolveVecTo(&beta, &xty); err != nil {
			return nil, fmt.Errorf("fit trend: %w", err)
		}
	} else if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, fmt.Errorf("fit trend: %w", err)
	}

	f.coef = make([]float64, p)
	for j := range f.coef {
		f.coef[j] = beta.AtVec(j)
	}
	return f, nil
}

// design builds the [intercept, trend, sin/cos...] matrix for dates.
// Daily terms are constant for midnight timestamps and are absorbed by the
// ridge penalty.
func (f *fittedSeasonalTrend) design(dates []time.Time) *mat.Dense {
	p := 2
	for _, s := range f.seasons {
		p += 2 * s.order
	}
	x := mat.NewDense(len(dates), p, nil)
	for i, d := range dates {
		t := epochDays(d)
		x.Set(i, 0, 1)
		x.Set(i, 1, (t-f.origin)/f.span)
		j := 2
		for _, s := range f.seasons {
			for k := 1; k <= s.order; k++ {
				arg := 2 * math.Pi * float64(k) * t / s.period
				x.Set(i, j, math.Sin(arg))
				x.Set(i, j+1, math.Cos(arg))
				j += 2
			}
		}
	}
	return x
}

func (f *fittedSeasonalTrend) Predict(dates []time.Time) []float64 {
	if len(dates) == 0 {
		return nil
	}
	var y mat.VecDense
	y.MulVec(f.design(dates), mat.NewVecDense(len(f.coef), f.coef))
	out := make([]float64, len(dates))
	for i := range out {
		out[i] = y.AtVec(i)
	}
	return out
}
