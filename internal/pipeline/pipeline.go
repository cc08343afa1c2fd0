package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/forecast"
	"github.com/couchcryptid/station-risk-forecast/internal/model"
	"github.com/couchcryptid/station-risk-forecast/internal/observability"
)

// FeedSource reads the three upstream feeds. Version must change whenever
// any feed's content changes.
type FeedSource interface {
	Ridership(ctx context.Context) ([]domain.RidershipRow, error)
	Stations(ctx context.Context) ([]domain.StationRecord, error)
	Incidents(ctx context.Context) ([]domain.IncidentRecord, error)
	Version(ctx context.Context) (string, error)
}

// CacheKey identifies a cached forecast.
type CacheKey struct {
	StationKey  string
	Radius      int
	FeedVersion string
}

// ResultCache stores finished forecasts. Implementations must be safe for
// concurrent use.
type ResultCache interface {
	Get(key CacheKey) (domain.ForecastResult, bool)
	Set(key CacheKey, result domain.ForecastResult)
	Invalidate(stationKey string)
	Purge()
}

// ResultLoader delivers finished forecasts downstream.
type ResultLoader interface {
	Load(ctx context.Context, result domain.ForecastResult) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLoader publishes every freshly computed result.
func WithLoader(l ResultLoader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithTrainer replaces the default model trainer.
func WithTrainer(t *model.Trainer) Option {
	return func(p *Pipeline) { p.trainer = t }
}

// Pipeline runs station forecasts: resolve, build series, train, forecast,
// enrich. Each Run is independent; only the feed snapshot and the result
// cache are shared between runs.
type Pipeline struct {
	feed       FeedSource
	trainer    *model.Trainer
	forecaster *forecast.Forecaster
	cache      ResultCache
	loader     ResultLoader
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool

	mu   sync.Mutex // serializes snapshot reloads
	snap atomic.Pointer[snapshot]
}

// New creates a Pipeline reading from feed.
func New(feed FeedSource, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		feed:       feed,
		trainer:    model.NewDefaultTrainer(),
		forecaster: forecast.New(),
		logger:     logger,
		metrics:    metrics,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckReadiness returns nil while the most recent feed load succeeded, or an
// error when the feeds have not loaded yet or the last reload failed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("feeds are not loaded")
	}
	return nil
}

// Warm loads the feed snapshot ahead of the first request.
func (p *Pipeline) Warm(ctx context.Context) error {
	_, err := p.load(ctx)
	return err
}

// Stations lists stations that have both coordinates and ridership, sorted
// by display name.
func (p *Pipeline) Stations(ctx context.Context) ([]domain.Station, error) {
	snap, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.listing(), nil
}

// Run forecasts the station matching query using incidents within
// radiusMeters. Cached results are returned when the feeds are unchanged.
func (p *Pipeline) Run(ctx context.Context, query string, radiusMeters int) (domain.ForecastResult, error) {
	start := time.Now()
	p.metrics.RunsInFlight.Inc()
	defer p.metrics.RunsInFlight.Dec()

	result, hit, err := p.run(ctx, query, max(radiusMeters, 0))
	outcome := outcomeOf(err)
	if hit {
		outcome = "cache_hit"
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		p.logger.Warn("forecast failed", "query", query, "radius_m", radiusMeters, "outcome", outcome, "error", err)
		return domain.ForecastResult{}, err
	}
	if !hit {
		p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, query string, radius int) (domain.ForecastResult, bool, error) {
	snap, err := p.load(ctx)
	if err != nil {
		return domain.ForecastResult{}, false, err
	}

	key, err := snap.resolver.Resolve(query)
	if err != nil {
		return domain.ForecastResult{}, false, err
	}
	ck := CacheKey{StationKey: key, Radius: radius, FeedVersion: snap.version}
	if p.cache != nil {
		if r, ok := p.cache.Get(ck); ok {
			p.metrics.CacheLookups.WithLabelValues("hit").Inc()
			p.logger.Debug("forecast cache hit", "station_key", key, "radius_m", radius, "run_id", r.RunID)
			return r, true, nil
		}
		p.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	result, err := p.forecast(ctx, snap, snap.stations[key], radius)
	if err != nil {
		return domain.ForecastResult{}, false, err
	}
	if p.cache != nil {
		p.cache.Set(ck, result)
	}
	p.publish(ctx, result)
	return result, false, nil
}

// InvalidateCache resolves query like Run does and drops the cached
// forecasts for that station, returning its key. enabled is false when no
// cache is configured. Unknown stations return a *domain.NotFoundError.
func (p *Pipeline) InvalidateCache(ctx context.Context, query string) (key string, enabled bool, err error) {
	if p.cache == nil {
		return "", false, nil
	}
	snap, err := p.load(ctx)
	if err != nil {
		return "", true, err
	}
	key, err = snap.resolver.Resolve(query)
	if err != nil {
		return "", true, err
	}
	p.cache.Invalidate(key)
	p.logger.Info("forecast cache invalidated", "query", query, "station_key", key)
	return key, true, nil
}

// PurgeCache drops every cached forecast. It reports whether a cache is
// configured.
func (p *Pipeline) PurgeCache() bool {
	if p.cache == nil {
		return false
	}
	p.cache.Purge()
	return true
}

// publish hands result to the loader, retrying with backoff. Failures are
// logged and never fail the request.
func (p *Pipeline) publish(ctx context.Context, result domain.ForecastResult) {
	if p.loader == nil {
		return
	}
	backoff := 200 * time.Millisecond
	maxBackoff := 2 * time.Second
	const attempts = 3

	var err error
	for i := range attempts {
		if err = p.loader.Load(ctx, result); err == nil {
			p.metrics.ResultsPublished.WithLabelValues("success").Inc()
			return
		}
		if i == attempts-1 || !sleepWithContext(ctx, backoff) {
			break
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
	p.metrics.ResultsPublished.WithLabelValues("error").Inc()
	p.logger.Error("publish forecast failed", "station_key", result.StationKey, "run_id", result.RunID, "error", err)
}

func outcomeOf(err error) string {
	var (
		nf *domain.NotFoundError
		ie *domain.InsufficientDataError
		ae *domain.AlignmentError
		de *domain.DataError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &ie):
		return "insufficient_data"
	case errors.As(err, &ae):
		return "alignment"
	case errors.As(err, &de):
		return "data_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
