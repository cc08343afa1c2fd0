// Command predict forecasts one station and prints the result as JSON.
//
// Usage:
//
//	go run ./cmd/predict -station "Pino Suárez" -radius 150
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/feedsource"
	httpadapter "github.com/couchcryptid/station-risk-forecast/internal/adapter/http"
	"github.com/couchcryptid/station-risk-forecast/internal/config"
	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/observability"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
)

func main() {
	station := flag.String("station", "", "station key or name")
	radius := flag.Int("radius", httpadapter.DefaultRadius, "incident radius in meters")
	history := flag.Bool("history", false, "include the daily modeling frame")
	list := flag.Bool("list", false, "list available stations and exit")
	flag.Parse()

	if *station == "" && !*list {
		flag.Usage()
		os.Exit(2)
	}
	if *radius < httpadapter.MinRadius || *radius > httpadapter.MaxRadius {
		fmt.Fprintf(os.Stderr, "radius must be between %d and %d meters\n", httpadapter.MinRadius, httpadapter.MaxRadius)
		os.Exit(2)
	}
	os.Exit(run(*station, *radius, *history, *list))
}

func run(station string, radius int, history, list bool) int {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	// Logs go to stderr so stdout stays valid JSON.
	logger := observability.NewLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, closeFeed, err := feedsource.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open feeds: %v\n", err)
		return 1
	}
	defer closeFeed()

	p := pipeline.New(feed, logger, observability.NewMetricsForTesting())

	var out any
	if list {
		out, err = p.Stations(ctx)
	} else {
		var r domain.ForecastResult
		r, err = p.Run(ctx, station, radius)
		if !history {
			r.History = nil
		}
		out = r
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var nf *domain.NotFoundError
		if errors.As(err, &nf) && len(nf.Suggestions) > 0 {
			fmt.Fprintf(os.Stderr, "did you mean: %v\n", nf.Suggestions)
		}
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		return 1
	}
	return 0
}
