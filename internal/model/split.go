package model

import (
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

const (
	testFraction       = 0.15
	validationFraction = 0.15
	minTrainRows       = 50
	fallbackTest       = 0.2
)

// SplitSizes returns chronological train/validation/test partition sizes for
// n rows. Sizes round half to even. When fewer than 50 training rows would
// remain, validation is dropped and test takes 20% (at least one row).
func SplitSizes(n int) (train, valid, test int) {
	test = int(math.RoundToEven(float64(n) * testFraction))
	valid = int(math.RoundToEven(float64(n) * validationFraction))
	train = n - valid - test
	if train < minTrainRows {
		test = max(1, int(float64(n)*fallbackTest))
		valid = 0
		train = n - test
	}
	return train, valid, test
}

// Oversample returns rows plus factor extra copies of positive-incident rows
// drawn with replacement, stably re-sorted by date. The draw is seeded.
func Oversample(rows []domain.DailyRow, factor int, seed uint64) []domain.DailyRow {
	var pos []int
	for i := range rows {
		if rows[i].Incidents > 0 {
			pos = append(pos, i)
		}
	}
	out := slices.Clone(rows)
	if len(pos) == 0 || factor <= 0 {
		return out
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	for range len(pos) * factor {
		out = append(out, rows[pos[rng.IntN(len(pos))]])
	}
	slices.SortStableFunc(out, func(a, b domain.DailyRow) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// lagLike marks columns that are forward-filled during lenient alignment.
var lagLike = func() []bool {
	out := make([]bool, len(Columns))
	for j, c := range Columns {
		out[j] = c == TrendColumn || strings.Contains(c, "_lag")
	}
	return out
}()

// AlignStrict drops rows with any missing feature or label.
func AlignStrict(d Dataset) Dataset {
	var out Dataset
	for i, row := range d.X {
		if math.IsNaN(d.Y[i]) || slices.ContainsFunc(row, math.IsNaN) {
			continue
		}
		out.X = append(out.X, row)
		out.Y = append(out.Y, d.Y[i])
	}
	return out
}

// AlignLenient fills missing values in place: lag-like columns are carried
// forward from the previous row and then zero-filled; other columns are
// zero-filled. Rows with a missing label are dropped. It returns the number
// of imputed cells.
func AlignLenient(d Dataset) (Dataset, int) {
	var out Dataset
	for i, row := range d.X {
		if d.Y != nil && math.IsNaN(d.Y[i]) {
			continue
		}
		out.X = append(out.X, slices.Clone(row))
		if d.Y != nil {
			out.Y = append(out.Y, d.Y[i])
		}
	}
	imputed := 0
	for i, row := range out.X {
		for j, v := range row {
			if !math.IsNaN(v) {
				continue
			}
			imputed++
			row[j] = 0
			if j < len(lagLike) && lagLike[j] && i > 0 {
				row[j] = out.X[i-1][j]
			}
		}
	}
	return out, imputed
}
