package pipeline

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/station"
)

// Feed errors wrapped in *domain.DataError.
var (
	ErrEmptyFeed       = errors.New("feed returned no usable rows")
	ErrNoKnownStations = errors.New("no station has both coordinates and ridership")
)

// snapshot is an immutable, normalized view of the feeds at one version.
type snapshot struct {
	version   string
	stations  map[string]domain.Station // known keys only
	ridership map[string][]domain.RidershipRecord
	incidents []domain.Incident
	resolver  *station.Resolver
}

// listing returns the known stations sorted by display name.
func (s *snapshot) listing() []domain.Station {
	out := make([]domain.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.Station) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// load returns the snapshot for the current feed version, reading the feeds
// only when the version changed.
func (p *Pipeline) load(ctx context.Context) (*snapshot, error) {
	version, err := p.feed.Version(ctx)
	if err != nil {
		p.ready.Store(false)
		return nil, &domain.DataError{Op: "read feed version", Err: err}
	}
	if s := p.snap.Load(); s != nil && s.version == version {
		p.ready.Store(true)
		return s, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.snap.Load(); s != nil && s.version == version {
		return s, nil
	}

	start := time.Now()
	s, err := p.readFeeds(ctx, version)
	if err != nil {
		p.ready.Store(false)
		return nil, err
	}
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	p.snap.Store(s)
	p.ready.Store(true)
	p.logger.Info("feeds loaded",
		"feed_version", version,
		"stations", len(s.stations),
		"incidents", len(s.incidents),
		"duration", time.Since(start),
	)
	return s, nil
}

func (p *Pipeline) readFeeds(ctx context.Context, version string) (*snapshot, error) {
	var (
		ridershipRows []domain.RidershipRow
		stationRows   []domain.StationRecord
		incidentRows  []domain.IncidentRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ridershipRows, err = p.feed.Ridership(gctx)
		return wrapFeed("load ridership", err)
	})
	g.Go(func() (err error) {
		stationRows, err = p.feed.Stations(gctx)
		return wrapFeed("load stations", err)
	})
	g.Go(func() (err error) {
		incidentRows, err = p.feed.Incidents(gctx)
		return wrapFeed("load incidents", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &snapshot{version: version, ridership: make(map[string][]domain.RidershipRecord)}

	var first, last time.Time
	rejected := 0
	for _, row := range ridershipRows {
		rec, err := domain.NormalizeRidership(row)
		if err != nil {
			rejected++
			continue
		}
		rec.StationKey = station.Canonical(rec.StationKey)
		if len(s.ridership) == 0 || rec.Date.Before(first) {
			first = rec.Date
		}
		if len(s.ridership) == 0 || rec.Date.After(last) {
			last = rec.Date
		}
		s.ridership[rec.StationKey] = append(s.ridership[rec.StationKey], rec)
	}
	p.recordFeed("ridership", len(ridershipRows)-rejected, rejected)
	if len(s.ridership) == 0 {
		return nil, &domain.DataError{Op: "load ridership", Rows: len(ridershipRows), Err: ErrEmptyFeed}
	}

	var known []domain.Station
	s.stations = make(map[string]domain.Station)
	rejected = 0
	for _, row := range stationRows {
		st, err := domain.NormalizeStation(row)
		if err != nil {
			rejected++
			continue
		}
		st.Key = station.Canonical(st.Key)
		if _, dup := s.stations[st.Key]; dup || st.Key == "" {
			continue
		}
		s.stations[st.Key] = st
		if _, ok := s.ridership[st.Key]; ok {
			known = append(known, st)
		}
	}
	p.recordFeed("stations", len(stationRows)-rejected, rejected)
	if len(s.stations) == 0 {
		return nil, &domain.DataError{Op: "load stations", Rows: len(stationRows), Err: ErrEmptyFeed}
	}
	if len(known) == 0 {
		return nil, &domain.DataError{Op: "intersect station keys", Err: ErrNoKnownStations}
	}
	for key := range s.stations {
		if _, ok := s.ridership[key]; !ok {
			delete(s.stations, key)
		}
	}
	for key := range s.ridership {
		if _, ok := s.stations[key]; !ok {
			delete(s.ridership, key)
		}
	}
	s.resolver = station.NewResolver(known)

	rejected = 0
	outOfRange := 0
	s.incidents = make([]domain.Incident, 0, len(incidentRows))
	for _, row := range incidentRows {
		inc, err := domain.NormalizeIncident(row, domain.CityBounds)
		if err != nil {
			rejected++
			continue
		}
		if d := inc.Date(); d.Before(first) || d.After(last) {
			outOfRange++
			continue
		}
		s.incidents = append(s.incidents, inc)
	}
	p.recordFeed("incidents", len(s.incidents), rejected)
	if len(incidentRows)-rejected == 0 {
		return nil, &domain.DataError{Op: "load incidents", Rows: len(incidentRows), Err: ErrEmptyFeed}
	}
	if outOfRange > 0 {
		p.logger.Debug("incidents outside ridership range dropped", "rows", outOfRange)
	}
	return s, nil
}

func (p *Pipeline) recordFeed(feed string, accepted, rejected int) {
	p.metrics.FeedRows.WithLabelValues(feed).Set(float64(accepted))
	if rejected > 0 {
		p.metrics.FeedRejected.WithLabelValues(feed).Add(float64(rejected))
		p.logger.Warn("feed rows rejected", "feed", feed, "rows", rejected)
	}
}

func wrapFeed(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.DataError{Op: op, Err: err}
}
