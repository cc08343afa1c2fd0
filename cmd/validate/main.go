// Command validate performs integrity checks across the three feeds: row
// parsing, station coordinates, key alignment between stations and
// ridership, date coverage, and incident usability. It reads the feed
// selected by the usual environment configuration, or a CSV directory.
//
// Usage:
//
//	go run ./cmd/validate                # FEED_DRIVER / SQLITE_PATH / ...
//	go run ./cmd/validate -csv-dir data/mock
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/feedsource"
	"github.com/couchcryptid/station-risk-forecast/internal/config"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvDir := flag.String("csv-dir", "", "validate CSV exports in this directory instead of the configured feed")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: config: %v\n", err)
		os.Exit(1)
	}
	if *csvDir != "" {
		cfg.FeedDriver = config.DriverCSV
		cfg.CSVDir = *csvDir
	}

	ctx := context.Background()
	feed, closeFeed, err := feedsource.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open feeds: %v\n", err)
		os.Exit(1)
	}
	code := run(ctx, feed, cfg.FeedDriver)
	closeFeed()
	os.Exit(code)
}

func run(ctx context.Context, feed pipeline.FeedSource, driver string) int {
	fmt.Println("=== Station Feed Integrity Validation ===")
	fmt.Printf("Driver: %s\n", driver)

	data, err := load(ctx, feed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := validate(data)

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d ridership, %d stations, %d incidents (version %s)\n",
		len(data.ridership), len(data.stations), len(data.incidents), data.version)

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [E%d] %s\n", i+1, e)
		}
		for i, w := range p.warnings {
			fmt.Printf("  [W%d] %s\n", i+1, w)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}
