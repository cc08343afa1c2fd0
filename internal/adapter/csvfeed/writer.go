package csvfeed

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// Write exports the three feeds as UTF-8 CSV files under dir, creating it
// if needed.
func Write(dir string, ridership []domain.RidershipRow, stations []domain.StationRecord, incidents []domain.IncidentRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	rrows := make([][]string, 0, len(ridership))
	for _, r := range ridership {
		rrows = append(rrows, []string{r.Key, r.Date, r.Count})
	}
	if err := writeFile(filepath.Join(dir, RidershipFile), ridershipHeader, rrows); err != nil {
		return err
	}

	srows := make([][]string, 0, len(stations))
	for _, s := range stations {
		srows = append(srows, []string{s.Key, s.Name, s.Line, s.Lat, s.Lon})
	}
	if err := writeFile(filepath.Join(dir, StationsFile), stationsHeader, srows); err != nil {
		return err
	}

	header := append(append([]string{}, incidentsHeader...), domain.CategoryColumns...)
	irows := make([][]string, 0, len(incidents))
	for _, inc := range incidents {
		row := []string{inc.Date, inc.Time, inc.Lat, inc.Lon}
		for _, col := range domain.CategoryColumns {
			row = append(row, inc.Categories[col])
		}
		irows = append(irows, row)
	}
	return writeFile(filepath.Join(dir, IncidentsFile), header, irows)
}

func writeFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
