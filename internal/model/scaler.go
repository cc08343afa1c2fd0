package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns to zero mean and unit population
// variance. Constant columns are centered only.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes column statistics over x.
func FitScaler(x [][]float64) *Scaler {
	if len(x) == 0 {
		return &Scaler{}
	}
	p := len(x[0])
	s := &Scaler{Mean: make([]float64, p), Scale: make([]float64, p)}
	col := make([]float64, len(x))
	n := float64(len(x))
	for j := range p {
		for i := range x {
			col[i] = x[i][j]
		}
		mean, variance := stat.MeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = 1
		if len(x) > 1 {
			// MeanVariance is unbiased; rescale to the population estimate.
			if sd := math.Sqrt(variance * (n - 1) / n); sd > 0 && !math.IsNaN(sd) {
				s.Scale[j] = sd
			}
		}
	}
	return s
}

// Transform returns a standardized copy of x.
func (s *Scaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		r := make([]float64, len(row))
		for j, v := range row {
			if j < len(s.Mean) {
				v = (v - s.Mean[j]) / s.Scale[j]
			}
			r[j] = v
		}
		out[i] = r
	}
	return out
}
