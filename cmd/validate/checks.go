package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/model"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
	"github.com/couchcryptid/station-risk-forecast/internal/station"
)

// maxListed caps per-item messages in one check.
const maxListed = 10

type feedData struct {
	version   string
	ridership []domain.RidershipRow
	stations  []domain.StationRecord
	incidents []domain.IncidentRecord
}

func load(ctx context.Context, feed pipeline.FeedSource) (*feedData, error) {
	var (
		d   feedData
		err error
	)
	if d.version, err = feed.Version(ctx); err != nil {
		return nil, fmt.Errorf("feed version: %w", err)
	}
	if d.ridership, err = feed.Ridership(ctx); err != nil {
		return nil, fmt.Errorf("ridership: %w", err)
	}
	if d.stations, err = feed.Stations(ctx); err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	if d.incidents, err = feed.Incidents(ctx); err != nil {
		return nil, fmt.Errorf("incidents: %w", err)
	}
	return &d, nil
}

// stationSpan is the ridership coverage of one station key.
type stationSpan struct {
	first, last time.Time
	days        map[time.Time]bool
	duplicates  int
}

func validate(d *feedData) []*phase {
	spans, p1 := validateRidership(d.ridership)
	known, p2 := validateStations(d.stations, spans)
	first, last := overallRange(spans)
	p3 := validateIncidents(d.incidents, first, last)
	p4 := validateCoverage(spans, known)
	return []*phase{p1, p2, p3, p4}
}

func validateRidership(rows []domain.RidershipRow) (map[string]*stationSpan, *phase) {
	p := &phase{name: "Ridership rows"}
	spans := make(map[string]*stationSpan)
	rejected := 0
	for i, row := range rows {
		rec, err := domain.NormalizeRidership(row)
		if err != nil {
			rejected++
			if rejected <= maxListed {
				p.errorf("row %d: %v", i+1, err)
			}
			continue
		}
		key := station.Canonical(rec.StationKey)
		s, ok := spans[key]
		if !ok {
			s = &stationSpan{first: rec.Date, last: rec.Date, days: make(map[time.Time]bool)}
			spans[key] = s
		}
		if s.days[rec.Date] {
			s.duplicates++
		}
		s.days[rec.Date] = true
		if rec.Date.Before(s.first) {
			s.first = rec.Date
		}
		if rec.Date.After(s.last) {
			s.last = rec.Date
		}
	}
	if rejected > maxListed {
		p.errorf("%d more rejected rows", rejected-maxListed)
	}
	if len(spans) == 0 {
		p.errorf("no usable ridership rows")
	}
	for _, key := range sortedKeys(spans) {
		s := spans[key]
		if s.duplicates > 0 {
			p.warnf("station %s: %d duplicate station-days (summed)", key, s.duplicates)
		}
		want := int(s.last.Sub(s.first).Hours()/24) + 1
		if gaps := want - len(s.days); gaps > 0 {
			p.warnf("station %s: %d missing days between %s and %s (filled with zero)",
				key, gaps, s.first.Format(time.DateOnly), s.last.Format(time.DateOnly))
		}
	}
	return spans, p
}

func validateStations(rows []domain.StationRecord, spans map[string]*stationSpan) (map[string]bool, *phase) {
	p := &phase{name: "Station coordinates and keys"}
	seen := make(map[string]bool)
	known := make(map[string]bool)
	for i, row := range rows {
		st, err := domain.NormalizeStation(row)
		if err != nil {
			p.errorf("row %d (%q): %v", i+1, row.Key, err)
			continue
		}
		key := station.Canonical(st.Key)
		if seen[key] {
			p.warnf("duplicate station key %s (first row kept)", key)
			continue
		}
		seen[key] = true
		if !domain.CityBounds.Contains(st.Point) {
			p.warnf("station %s (%s) lies outside city bounds: %.5f,%.5f", key, st.Name, st.Lat, st.Lon)
		}
		if spans[key] != nil {
			known[key] = true
		} else {
			p.warnf("station %s (%s) has no ridership", key, st.Name)
		}
	}
	for _, key := range sortedKeys(spans) {
		if !seen[key] {
			p.warnf("ridership key %s has no station coordinates", key)
		}
	}
	if len(known) == 0 {
		p.errorf("%v", pipeline.ErrNoKnownStations)
	}
	return known, p
}

func validateIncidents(rows []domain.IncidentRecord, first, last time.Time) *phase {
	p := &phase{name: "Incident rows"}
	reasons := map[string]int{}
	usable, outOfRange, untimed, uncategorized := 0, 0, 0, 0
	for _, row := range rows {
		inc, err := domain.NormalizeIncident(row, domain.CityBounds)
		if err != nil {
			reasons[rejectReason(err)]++
			continue
		}
		if !first.IsZero() && (inc.Date().Before(first) || inc.Date().After(last)) {
			outOfRange++
			continue
		}
		usable++
		if !inc.HasTime {
			untimed++
		}
		if inc.Category == domain.UnknownCategory {
			uncategorized++
		}
	}
	if usable == 0 {
		p.errorf("no usable incidents inside the ridership date range")
	}
	for _, reason := range sortedKeys(reasons) {
		p.warnf("%d rows rejected: %s", reasons[reason], reason)
	}
	if outOfRange > 0 {
		p.warnf("%d incidents outside ridership range %s..%s", outOfRange,
			first.Format(time.DateOnly), last.Format(time.DateOnly))
	}
	if untimed > 0 {
		p.warnf("%d usable incidents have no time of day", untimed)
	}
	if uncategorized > 0 {
		p.warnf("%d usable incidents have no category", uncategorized)
	}
	return p
}

func validateCoverage(spans map[string]*stationSpan, known map[string]bool) *phase {
	p := &phase{name: "Trainable history per station"}
	need := model.MinRows + series.MaxLag
	for _, key := range sortedKeys(known) {
		s := spans[key]
		days := int(s.last.Sub(s.first).Hours()/24) + 1
		if days < need {
			p.warnf("station %s: %d days of ridership, forecasts need at least %d", key, days, need)
		}
	}
	return p
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingDate):
		return "missing date"
	case errors.Is(err, domain.ErrBadCoordinate):
		return "invalid coordinate"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "outside city bounds"
	}
	return "unparsable date"
}

func overallRange(spans map[string]*stationSpan) (first, last time.Time) {
	for _, s := range spans {
		if first.IsZero() || s.first.Before(first) {
			first = s.first
		}
		if last.IsZero() || s.last.After(last) {
			last = s.last
		}
	}
	return first, last
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
