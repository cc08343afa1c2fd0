package model

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
)

const (
	// MinRows is the smallest daily frame the trainer accepts.
	MinRows = 60
	// OversampleFactor is the number of extra draws per positive training row.
	OversampleFactor = 3
	oversampleSeed   = 42
)

// Report describes one training run.
type Report struct {
	TrainRows       int
	ValidationRows  int
	TestRows        int
	OversampledRows int
	// Imputed counts filled cells per partition ("validation", "test").
	Imputed    map[string]int
	Degraded   []string
	Evaluation *domain.Evaluation

	TrendDuration     time.Duration
	RegressorDuration time.Duration
}

// Trainer composes a trend model and a count regressor into a TrainedModel.
type Trainer struct {
	trend     TrendModel
	regressor CountRegressor
}

// NewTrainer returns a trainer using the given stages.
func NewTrainer(trend TrendModel, regressor CountRegressor) *Trainer {
	return &Trainer{trend: trend, regressor: regressor}
}

// NewDefaultTrainer returns a trainer using SeasonalTrend and PoissonBooster
// with their production settings.
func NewDefaultTrainer() *Trainer {
	return NewTrainer(NewSeasonalTrend(DefaultTrendOptions()), NewPoissonBooster(DefaultBoosterOptions()))
}

// Train fits both stages on f. Frames shorter than MinRows fail with
// *domain.InsufficientDataError before anything is fit. Context cancellation
// is checked between stages.
func (t *Trainer) Train(ctx context.Context, f series.Frame) (*TrainedModel, *Report, error) {
	n := f.Len()
	if n < MinRows {
		return nil, nil, &domain.InsufficientDataError{StationKey: f.StationKey, Rows: n, Min: MinRows}
	}

	nTrain, nValid, nTest := SplitSizes(n)
	trainRows := f.Rows[:nTrain]
	validRows := f.Rows[nTrain : nTrain+nValid]
	testRows := f.Rows[nTrain+nValid:]
	oversampled := Oversample(trainRows, OversampleFactor, oversampleSeed)

	rep := &Report{
		TrainRows:       nTrain,
		ValidationRows:  nValid,
		TestRows:        nTest,
		OversampledRows: len(oversampled),
		Imputed:         make(map[string]int, 2),
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	dates, counts := columns(trainRows)
	trend, err := t.trend.Fit(dates, counts)
	if err != nil {
		return nil, nil, fmt.Errorf("train %s: %w", f.StationKey, err)
	}
	rep.TrendDuration = time.Since(start)

	train := AlignStrict(dataset(oversampled, trend))
	if train.Len() == 0 {
		return nil, nil, &domain.AlignmentError{StationKey: f.StationKey, Rows: len(oversampled)}
	}
	valid, imputed := AlignLenient(dataset(validRows, trend))
	rep.Imputed["validation"] = imputed
	test, imputed := AlignLenient(dataset(testRows, trend))
	rep.Imputed["test"] = imputed

	if valid.Len() == 0 {
		rep.Degraded = append(rep.Degraded, DegradedNoValidation)
	}
	if test.Len() == 0 {
		rep.Degraded = append(rep.Degraded, DegradedNoTest)
	}

	scaler := FitScaler(train.X)
	train.X = scaler.Transform(train.X)
	valid.X = scaler.Transform(valid.X)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	start = time.Now()
	reg, err := t.regressor.Fit(train, valid)
	if err != nil {
		return nil, nil, fmt.Errorf("train %s: %w", f.StationKey, err)
	}
	rep.RegressorDuration = time.Since(start)

	m := &TrainedModel{Trend: trend, Scaler: scaler, Regressor: reg, Columns: Columns}
	if test.Len() > 0 {
		rep.Evaluation = evaluate(m.Predict(test.X), test.Y)
		rep.Evaluation.BestIteration = reg.BestIteration()
	}
	return m, rep, nil
}

func columns(rows []domain.DailyRow) ([]time.Time, []float64) {
	dates := make([]time.Time, len(rows))
	counts := make([]float64, len(rows))
	for i := range rows {
		dates[i] = rows[i].Date
		counts[i] = rows[i].Incidents
	}
	return dates, counts
}

func dataset(rows []domain.DailyRow, trend FittedTrend) Dataset {
	dates, y := columns(rows)
	tf := trend.Predict(dates)
	d := Dataset{X: make([][]float64, len(rows)), Y: y}
	for i := range rows {
		d.X[i] = Features(rows[i], tf[i])
	}
	return d
}

func evaluate(pred, y []float64) *domain.Evaluation {
	n := float64(len(y))
	return &domain.Evaluation{
		TestRows: len(y),
		RMSE:     floats.Distance(pred, y, 2) / math.Sqrt(n),
		MAE:      floats.Distance(pred, y, 1) / n,
	}
}
