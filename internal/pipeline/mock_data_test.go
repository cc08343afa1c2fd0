package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/model"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
	"github.com/couchcryptid/station-risk-forecast/internal/synthetic"
)

// --- mocks ---

type mockFeed struct {
	*synthetic.Dataset
	version      atomic.Value
	reads        atomic.Int32
	ridershipErr error
}

func newMockFeed(ds *synthetic.Dataset) *mockFeed {
	f := &mockFeed{Dataset: ds}
	f.version.Store("v1")
	return f
}

func (f *mockFeed) Ridership(ctx context.Context) ([]domain.RidershipRow, error) {
	f.reads.Add(1)
	if f.ridershipErr != nil {
		return nil, f.ridershipErr
	}
	return f.Dataset.Ridership(ctx)
}

func (f *mockFeed) Version(context.Context) (string, error) {
	return f.version.Load().(string), nil
}

type mockCache struct {
	mu      sync.Mutex
	entries map[pipeline.CacheKey]domain.ForecastResult
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[pipeline.CacheKey]domain.ForecastResult)}
}

func (c *mockCache) Get(key pipeline.CacheKey) (domain.ForecastResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	return r, ok
}

func (c *mockCache) Set(key pipeline.CacheKey, r domain.ForecastResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r
}

func (c *mockCache) Invalidate(stationKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.StationKey == stationKey {
			delete(c.entries, k)
		}
	}
}

func (c *mockCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *mockCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.ForecastResult
	calls  int
	err    error
}

func (m *mockLoader) Load(_ context.Context, r domain.ForecastResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, r)
	return nil
}

var errBroker = errors.New("broker unavailable")

// fastTrainer keeps boosting short so pipeline tests stay quick.
func fastTrainer() *model.Trainer {
	opt := model.DefaultBoosterOptions()
	opt.Rounds = 40
	opt.MaxDepth = 3
	opt.LearningRate = 0.1
	opt.EarlyStopRounds = 10
	return model.NewTrainer(model.NewSeasonalTrend(model.DefaultTrendOptions()), model.NewPoissonBooster(opt))
}

// shortScenario is the Friday spike scenario with a short history, enough
// to train but cheap to fit.
func shortScenario() *synthetic.Dataset {
	return synthetic.Generate(synthetic.FridaySpike(120))
}
