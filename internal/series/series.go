// Package series builds the per-station daily modeling frame from incidents
// and ridership.
package series

import (
	"errors"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/geo"
)

// Lags are the history offsets, in days, used for incident and ridership lag
// features. MaxLag rows at the head of every series have incomplete lags.
var Lags = [5]int{1, 2, 3, 7, 14}

// MaxLag is the largest entry in Lags.
const MaxLag = 14

// ErrNoRidership is wrapped in a *domain.DataError when the station has no
// ridership rows.
var ErrNoRidership = errors.New("no ridership rows for station")

// Frame is the date-ordered daily modeling frame for one station. Rows are
// contiguous calendar days.
type Frame struct {
	StationKey string
	Rows       []domain.DailyRow
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Dates returns the row dates in order.
func (f Frame) Dates() []time.Time {
	out := make([]time.Time, len(f.Rows))
	for i := range f.Rows {
		out[i] = f.Rows[i].Date
	}
	return out
}

// Incidents returns the daily incident counts in order.
func (f Frame) Incidents() []float64 {
	out := make([]float64, len(f.Rows))
	for i := range f.Rows {
		out[i] = f.Rows[i].Incidents
	}
	return out
}

// Ridership returns the daily ridership in order.
func (f Frame) Ridership() []float64 {
	out := make([]float64, len(f.Rows))
	for i := range f.Rows {
		out[i] = f.Rows[i].Ridership
	}
	return out
}

// Last returns the final row. It panics on an empty frame.
func (f Frame) Last() domain.DailyRow { return f.Rows[len(f.Rows)-1] }

// Build assembles the daily frame for st. Incidents are matched to the
// station within radius meters; ridership rows are those whose StationKey
// equals st.Key. The day axis spans the first to the last ridership date with
// missing days filled as zero ridership. Head rows without full lag history
// are dropped. The matched incident subset is returned alongside the frame.
func Build(incidents []domain.Incident, ridership []domain.RidershipRecord, st domain.Station, radius float64) (Frame, []domain.Incident, error) {
	matched := geo.FilterIncidents(st.Point, incidents, radius)

	counts := make(map[time.Time]float64, len(matched))
	for i := range matched {
		counts[matched[i].Date()]++
	}

	daily := make(map[time.Time]float64)
	var first, last time.Time
	for _, r := range ridership {
		if r.StationKey != st.Key {
			continue
		}
		d := domain.Day(r.Date)
		if len(daily) == 0 || d.Before(first) {
			first = d
		}
		if len(daily) == 0 || d.After(last) {
			last = d
		}
		daily[d] += r.Count
	}
	if len(daily) == 0 {
		return Frame{}, nil, &domain.DataError{Op: "build daily series", StationKey: st.Key, Err: ErrNoRidership}
	}

	n := int(last.Sub(first).Hours()/24) + 1
	rows := make([]domain.DailyRow, n)
	for i := range rows {
		d := first.AddDate(0, 0, i)
		rows[i] = domain.DailyRow{
			Date:      d,
			Incidents: counts[d],
			Ridership: daily[d],
		}
		FillCalendar(&rows[i])
	}

	ridershipCol := make([]float64, n)
	incidentCol := make([]float64, n)
	for i := range rows {
		ridershipCol[i] = rows[i].Ridership
		incidentCol[i] = rows[i].Incidents
	}
	ma7 := RollingMean(ridershipCol, 7)
	ma14 := RollingMean(ridershipCol, 14)
	for i := range rows {
		rows[i].RidershipMA7 = ma7[i]
		rows[i].RidershipMA14 = ma14[i]
		rows[i].Ratio = rows[i].Incidents / (rows[i].Ridership + 1)
	}
	SetLags(rows, incidentCol, ridershipCol)

	if len(rows) <= MaxLag {
		rows = nil
	} else {
		rows = slices.Clip(rows[MaxLag:])
	}
	return Frame{StationKey: st.Key, Rows: rows}, matched, nil
}

// SetLags fills the lag features of rows from the given incident and
// ridership columns. Offsets reaching before the first row are NaN.
func SetLags(rows []domain.DailyRow, incidents, ridership []float64) {
	for j, lag := range Lags {
		inc := Shift(incidents, lag)
		rid := Shift(ridership, lag)
		for i := range rows {
			rows[i].IncidentLags[j] = inc[i]
			rows[i].RidershipLags[j] = rid[i]
		}
	}
}

// Shift returns values delayed by k positions, with NaN in the first k slots.
func Shift(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-k]
	}
	return out
}

// RollingMean returns the trailing mean over window values, using however
// many values are available near the head.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-window+1)
		out[i] = stat.Mean(values[lo:i+1], nil)
	}
	return out
}

// WeekTotal is the incident count of one week ending Sunday.
type WeekTotal struct {
	WeekEnding time.Time
	Incidents  float64
}

// WeeklyTotals sums daily incidents into weeks ending Sunday. Partial weeks
// at either edge are kept.
func WeeklyTotals(f Frame) []WeekTotal {
	var out []WeekTotal
	for _, r := range f.Rows {
		we := domain.WeekEnding(r.Date)
		if len(out) == 0 || !out[len(out)-1].WeekEnding.Equal(we) {
			out = append(out, WeekTotal{WeekEnding: we})
		}
		out[len(out)-1].Incidents += r.Incidents
	}
	return out
}

// MeanWeeklyIncidents is the mean of WeeklyTotals, or NaN for an empty frame.
func MeanWeeklyIncidents(f Frame) float64 {
	weeks := WeeklyTotals(f)
	if len(weeks) == 0 {
		return math.NaN()
	}
	totals := make([]float64, len(weeks))
	for i, w := range weeks {
		totals[i] = w.Incidents
	}
	return stat.Mean(totals, nil)
}
