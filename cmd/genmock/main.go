// Command genmock writes a synthetic set of feed CSVs with a known incident
// pattern: one station with a Friday evening spike and one quiet station.
// The output can be served with FEED_DRIVER=csv or imported with cmd/seed.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -days 400
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"

	"github.com/couchcryptid/station-risk-forecast/internal/adapter/csvfeed"
	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/synthetic"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	days := flag.Int("days", 400, "days of ridership per station")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	if *days <= 0 {
		flag.Usage()
		return fmt.Errorf("-days must be positive")
	}

	opt := synthetic.FridaySpike(*days)
	opt.Seed = *seed
	ds := synthetic.Generate(opt)

	if err := csvfeed.Write(*out, ds.RidershipRows, ds.StationRows, ds.IncidentRows); err != nil {
		return fmt.Errorf("writing feeds: %w", err)
	}
	log.Printf("wrote %s: %d ridership, %d stations, %d incidents",
		*out, len(ds.RidershipRows), len(ds.StationRows), len(ds.IncidentRows))

	printStats(ds)
	return nil
}

type count struct {
	label string
	n     int
}

func printStats(ds *synthetic.Dataset) {
	var weekdays [7]int
	var hours [24]int
	categories := map[string]int{}
	for _, row := range ds.IncidentRows {
		inc, err := domain.NormalizeIncident(row, domain.CityBounds)
		if err != nil {
			continue
		}
		weekdays[domain.WeekdayIndex(inc.Timestamp)]++
		hours[inc.Timestamp.Hour()]++
		categories[inc.Category]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total incidents: %d\n", len(ds.IncidentRows))
	fmt.Print("By weekday:")
	for i, n := range weekdays {
		fmt.Printf(" %s=%d", domain.WeekdayNames[i], n)
	}
	fmt.Print("\nBy hour:")
	for h, n := range hours {
		if n > 0 {
			fmt.Printf(" %02d=%d", h, n)
		}
	}

	cc := make([]count, 0, len(categories))
	for c, n := range categories {
		cc = append(cc, count{c, n})
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].n > cc[j].n })
	fmt.Print("\nBy category:")
	for _, c := range cc {
		fmt.Printf(" %q=%d", c.label, c.n)
	}
	fmt.Println()
}
