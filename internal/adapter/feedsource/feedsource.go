// Package feedsource opens the configured feed backend.
package feedsource

import (
	"context"
	"fmt"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/csvfeed"
	"github.com/couchcryptid/station-risk-forecast/internal/adapter/postgres"
	"github.com/couchcryptid/station-risk-forecast/internal/adapter/sqlite"
	"github.com/couchcryptid/station-risk-forecast/internal/config"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
)

// Open returns the feed source selected by cfg.FeedDriver and a function
// that releases it.
func Open(ctx context.Context, cfg *config.Config) (pipeline.FeedSource, func(), error) {
	switch cfg.FeedDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	case config.DriverPostgres:
		src, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case config.DriverCSV:
		return csvfeed.New(cfg.CSVDir), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown feed driver %q", cfg.FeedDriver)
}
