// Package calendar derives when and what incidents historically happen near a
// station and attaches the most likely weekday, hour window and category to
// each forecast week.
package calendar

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

const (
	topCategories = 5

	// Neutral window reported when no incident carries an hour.
	defaultWindowStart = 11
	defaultWindowEnd   = 12

	midnightSuffix = " (cruza medianoche)"
)

// Profile is the historical incident pattern of one station and radius.
type Profile struct {
	Weekdays    []domain.Share // weekdays with at least one incident, Monday first
	Hours       []domain.Share // 24 buckets, empty without timed incidents
	HourWindows []domain.Share // 2-hour windows by start hour, empty without timed incidents
	Categories  []domain.Share // top categories, most frequent first

	BestWeekday        int
	WeekdayConfidence  float64
	WindowStart        int
	WindowEnd          int
	HourConfidence     float64
	Category           string
	CategoryConfidence float64
}

// Neutral returns the profile used when a station has no nearby incidents.
func Neutral() Profile {
	return Profile{
		WindowStart: defaultWindowStart,
		WindowEnd:   defaultWindowEnd,
		Category:    domain.UnknownCategory,
	}
}

// Build computes the profile of incidents. An empty input yields Neutral.
func Build(incidents []domain.Incident) Profile {
	p := Neutral()
	if len(incidents) == 0 {
		return p
	}
	total := float64(len(incidents))

	var weekdays [7]int
	var hours [24]int
	timed := 0
	categories := make(map[string]int)
	for i := range incidents {
		inc := &incidents[i]
		weekdays[domain.WeekdayIndex(inc.Timestamp)]++
		if inc.HasTime {
			hours[inc.Timestamp.Hour()]++
			timed++
		}
		categories[inc.Category]++
	}

	best := -1
	for d, n := range weekdays {
		if n == 0 {
			continue
		}
		p.Weekdays = append(p.Weekdays, domain.Share{Label: domain.WeekdayNames[d], Index: d, Percent: pct(float64(n), total)})
		if best < 0 || n > weekdays[best] {
			best = d
		}
	}
	p.BestWeekday = best
	p.WeekdayConfidence = pct(float64(weekdays[best]), total)

	if timed > 0 {
		p.setHours(hours, float64(timed))
	}
	p.setCategories(categories, total)
	return p
}

func (p *Profile) setHours(hours [24]int, total float64) {
	var windows [24]int
	best := 0
	for h := range hours {
		windows[h] = hours[h] + hours[(h+1)%24]
		if windows[h] > windows[best] {
			best = h
		}
	}
	p.Hours = make([]domain.Share, 24)
	p.HourWindows = make([]domain.Share, 24)
	for h := range 24 {
		p.Hours[h] = domain.Share{Label: fmt.Sprintf("%02d", h), Index: h, Percent: pct(float64(hours[h]), total)}
		p.HourWindows[h] = domain.Share{Label: WindowLabel(h, (h+1)%24), Index: h, Percent: pct(float64(windows[h]), total)}
	}
	p.WindowStart = best
	p.WindowEnd = (best + 1) % 24
	p.HourConfidence = pct(float64(windows[best]), total)
}

func (p *Profile) setCategories(counts map[string]int, total float64) {
	type kv struct {
		label string
		n     int
	}
	ranked := make([]kv, 0, len(counts))
	for label, n := range counts {
		ranked = append(ranked, kv{label, n})
	}
	slices.SortFunc(ranked, func(a, b kv) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.label, b.label)
	})
	for i, c := range ranked[:min(len(ranked), topCategories)] {
		p.Categories = append(p.Categories, domain.Share{Label: c.label, Index: i, Percent: pct(float64(c.n), total)})
	}
	p.Category = ranked[0].label
	p.CategoryConfidence = p.Categories[0].Percent
}

// WindowLabel renders a two-hour window starting at h0 and ending in hour h1,
// marking windows that wrap past midnight.
func WindowLabel(h0, h1 int) string {
	label := fmt.Sprintf("%02d:00-%02d:59", h0, h1)
	if h1 < h0 {
		label += midnightSuffix
	}
	return label
}

// Enrich returns a copy of weeks with the profile's weekday, hour window and
// category attached. The weekday date is the matching day within each week.
func Enrich(weeks []domain.WeeklyForecast, p Profile) []domain.WeeklyForecast {
	out := slices.Clone(weeks)
	window := WindowLabel(p.WindowStart, p.WindowEnd)
	for i := range out {
		w := &out[i]
		start := w.WeekEnding.AddDate(0, 0, -6)
		w.Weekday = domain.WeekdayNames[p.BestWeekday]
		w.WeekdayDate = start.AddDate(0, 0, p.BestWeekday)
		w.WeekdayConfidence = p.WeekdayConfidence
		w.HourWindow = window
		w.HourConfidence = p.HourConfidence
		w.Category = p.Category
		w.CategoryConfidence = p.CategoryConfidence
	}
	return out
}

// pct returns part/total as a percentage rounded to two decimals.
func pct(part, total float64) float64 {
	return math.Round(part/total*100*100) / 100
}
