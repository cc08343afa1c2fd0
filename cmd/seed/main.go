// Command seed imports CSV feed exports into a SQLite feed database.
//
// Usage:
//
//	go run ./cmd/seed -csv-dir data/raw -db data/metro.db -truncate
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/csvfeed"
	"github.com/couchcryptid/station-risk-forecast/internal/adapter/sqlite"
	"github.com/couchcryptid/station-risk-forecast/internal/observability"
)

func main() {
	csvDir := flag.String("csv-dir", "data", "directory with daily_affluence.csv, lines_metro.csv and crimes_clean.csv")
	dbPath := flag.String("db", "data/metro.db", "SQLite database path")
	truncate := flag.Bool("truncate", false, "empty the feed tables before importing")
	flag.Parse()

	logger := observability.NewLogger("info", "text")
	if err := run(context.Background(), logger, *csvDir, *dbPath, *truncate); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, csvDir, dbPath string, truncate bool) error {
	start := time.Now()
	src := csvfeed.New(csvDir)

	ridership, err := src.Ridership(ctx)
	if err != nil {
		return err
	}
	stations, err := src.Stations(ctx)
	if err != nil {
		return err
	}
	incidents, err := src.Incidents(ctx)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	if truncate {
		if err := db.Truncate(ctx); err != nil {
			return err
		}
	}
	if err := db.InsertRidership(ctx, ridership); err != nil {
		return err
	}
	if err := db.InsertStations(ctx, stations); err != nil {
		return err
	}
	if err := db.InsertIncidents(ctx, incidents); err != nil {
		return err
	}

	version, err := db.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		"db", dbPath,
		"ridership", len(ridership),
		"stations", len(stations),
		"incidents", len(incidents),
		"feed_version", version,
		"duration", time.Since(start),
	)
	return nil
}
