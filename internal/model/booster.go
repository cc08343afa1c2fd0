package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// BoosterOptions configures PoissonBooster.
type BoosterOptions struct {
	Rounds          int
	MaxDepth        int
	LearningRate    float64
	Subsample       float64 // row fraction sampled per round
	ColSample       float64 // column fraction sampled per tree
	MinChildWeight  float64 // minimum hessian sum per leaf
	Alpha           float64 // L1 penalty on leaf weights
	Lambda          float64 // L2 penalty on leaf weights
	MaxDeltaStep    float64 // added to the log-link hessian
	EarlyStopRounds int
	Seed            uint64
}

// DefaultBoosterOptions returns the production settings.
func DefaultBoosterOptions() BoosterOptions {
	return BoosterOptions{
		Rounds:          1200,
		MaxDepth:        6,
		LearningRate:    0.03,
		Subsample:       0.9,
		ColSample:       0.85,
		MinChildWeight:  1,
		Alpha:           0.5,
		Lambda:          4,
		MaxDeltaStep:    0.7,
		EarlyStopRounds: 50,
		Seed:            42,
	}
}

// PoissonBooster is gradient-boosted regression trees under a Poisson
// log-link objective with second-order (Newton) leaf weights. When a
// validation set is given, boosting stops once validation RMSE has not
// improved for EarlyStopRounds rounds and the best round is kept.
type PoissonBooster struct {
	opt BoosterOptions
}

// NewPoissonBooster returns a booster using opt.
func NewPoissonBooster(opt BoosterOptions) *PoissonBooster {
	return &PoissonBooster{opt: opt}
}

var errEmptyTrain = errors.New("empty training set")

// FittedBooster is a trained tree ensemble.
type FittedBooster struct {
	base  float64 // initial margin
	trees []tree  // shrinkage already applied to leaf weights
	best  int
}

// Fit grows trees on train, using valid for early stopping when non-empty.
func (b *PoissonBooster) Fit(train, valid Dataset) (FittedRegressor, error) {
	n := train.Len()
	if n == 0 || len(train.Y) != n {
		return nil, fmt.Errorf("fit booster: %w", errEmptyTrain)
	}
	p := len(train.X[0])
	rng := rand.New(rand.NewPCG(b.opt.Seed, b.opt.Seed))

	mean := floats.Sum(train.Y) / float64(n)
	fb := &FittedBooster{base: math.Log(max(mean, 1e-6))}

	order := presort(train.X, p)
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = fb.base
	}
	var validMargin []float64
	if valid.Len() > 0 {
		validMargin = make([]float64, valid.Len())
		for i := range validMargin {
			validMargin[i] = fb.base
		}
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	bestScore := math.Inf(1)
	sinceBest := 0

	for round := range b.opt.Rounds {
		for i := range n {
			mu := math.Exp(margin[i])
			grad[i] = mu - train.Y[i]
			hess[i] = math.Exp(margin[i] + b.opt.MaxDeltaStep)
		}

		rows := sampleRows(rng, n, b.opt.Subsample)
		cols := sampleCols(rng, p, b.opt.ColSample)
		t := b.grow(train.X, order, grad, hess, rows, cols)
		fb.trees = append(fb.trees, t)

		for i := range n {
			margin[i] += t.predict(train.X[i])
		}
		if validMargin == nil {
			fb.best = round
			continue
		}
		for i := range validMargin {
			validMargin[i] += t.predict(valid.X[i])
		}
		score := rmseExp(validMargin, valid.Y)
		if score < bestScore {
			bestScore = score
			fb.best = round
			sinceBest = 0
			continue
		}
		sinceBest++
		if sinceBest >= b.opt.EarlyStopRounds {
			break
		}
	}
	fb.trees = slices.Clip(fb.trees[:fb.best+1])
	return fb, nil
}

// Predict returns expected counts, exp(margin), for each row.
func (fb *FittedBooster) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		m := fb.base
		for j := range fb.trees {
			m += fb.trees[j].predict(row)
		}
		out[i] = math.Exp(m)
	}
	return out
}

// BestIteration returns the zero-based index of the last kept round.
func (fb *FittedBooster) BestIteration() int { return fb.best }

// Rounds returns the number of trees kept.
func (fb *FittedBooster) Rounds() int { return len(fb.trees) }

func rmseExp(margin, y []float64) float64 {
	var sum float64
	for i, m := range margin {
		d := math.Exp(m) - y[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(margin)))
}

// presort returns, per feature, row indices ordered by ascending value.
func presort(x [][]float64, p int) [][]int {
	order := make([][]int, p)
	for j := range p {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case x[a][j] < x[b][j]:
				return -1
			case x[a][j] > x[b][j]:
				return 1
			}
			return 0
		})
		order[j] = idx
	}
	return order
}

func sampleRows(rng *rand.Rand, n int, frac float64) []bool {
	in := make([]bool, n)
	if frac >= 1 {
		for i := range in {
			in[i] = true
		}
		return in
	}
	k := max(1, int(math.Round(frac*float64(n))))
	for _, i := range rng.Perm(n)[:k] {
		in[i] = true
	}
	return in
}

func sampleCols(rng *rand.Rand, p int, frac float64) []int {
	k := max(1, int(math.Round(frac*float64(p))))
	cols := rng.Perm(p)[:min(k, p)]
	slices.Sort(cols)
	return cols
}
