// Package csvfeed reads and writes the feeds as CSV exports in a directory.
// Files may be UTF-8 (with or without BOM) or Latin-1.
package csvfeed

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// File names inside the feed directory.
const (
	RidershipFile = "daily_affluence.csv"
	StationsFile  = "lines_metro.csv"
	IncidentsFile = "crimes_clean.csv"
)

var (
	ridershipHeader = []string{"key", "fecha", "afluencia"}
	stationsHeader  = []string{"num", "nombre", "linea", "lat", "lon"}
	incidentsHeader = []string{"fecha_hecho", "hora_hecho", "latitud", "longitud"}
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Source reads the three CSV files under Dir on every call.
type Source struct {
	Dir string
}

// New returns a Source for dir.
func New(dir string) *Source {
	return &Source{Dir: dir}
}

func (s *Source) Ridership(ctx context.Context) ([]domain.RidershipRow, error) {
	t, err := s.read(ctx, RidershipFile, ridershipHeader)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RidershipRow, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, domain.RidershipRow{
			Key:   t.get(r, "key"),
			Date:  t.get(r, "fecha"),
			Count: t.get(r, "afluencia"),
		})
	}
	return out, nil
}

func (s *Source) Stations(ctx context.Context) ([]domain.StationRecord, error) {
	t, err := s.read(ctx, StationsFile, stationsHeader[:1])
	if err != nil {
		return nil, err
	}
	out := make([]domain.StationRecord, 0, len(t.rows))
	for _, r := range t.rows {
		out = append(out, domain.StationRecord{
			Key:  t.get(r, "num"),
			Name: t.get(r, "nombre"),
			Line: t.get(r, "linea"),
			Lat:  t.get(r, "lat"),
			Lon:  t.get(r, "lon"),
		})
	}
	return out, nil
}

func (s *Source) Incidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	t, err := s.read(ctx, IncidentsFile, []string{"fecha_hecho", "latitud", "longitud"})
	if err != nil {
		return nil, err
	}
	out := make([]domain.IncidentRecord, 0, len(t.rows))
	for _, r := range t.rows {
		rec := domain.IncidentRecord{
			Date: t.get(r, "fecha_hecho"),
			Time: t.get(r, "hora_hecho"),
			Lat:  t.get(r, "latitud"),
			Lon:  t.get(r, "longitud"),
		}
		for _, col := range domain.CategoryColumns {
			if i, ok := t.cols[col]; ok && i < len(r) {
				if rec.Categories == nil {
					rec.Categories = make(map[string]string, len(domain.CategoryColumns))
				}
				rec.Categories[col] = r[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Version hashes the size and modification time of each feed file.
func (s *Source) Version(context.Context) (string, error) {
	h := fnv.New64a()
	for _, name := range []string{RidershipFile, StationsFile, IncidentsFile} {
		fi, err := os.Stat(filepath.Join(s.Dir, name))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		fmt.Fprintf(h, "%s:%d:%d;", name, fi.Size(), fi.ModTime().UnixNano())
	}
	return "csv:" + strconv.FormatUint(h.Sum64(), 16), nil
}

type table struct {
	cols map[string]int
	rows [][]string
}

func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (s *Source) read(ctx context.Context, name string, required []string) (*table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	t, err := parse(decode(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("%s: %w %q", name, ErrMissingColumn, col)
		}
	}
	return t, nil
}

// decode returns raw as UTF-8, stripping a BOM and converting from Latin-1
// when the bytes are not valid UTF-8.
func decode(raw []byte) []byte {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return raw
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return raw
	}
	return out
}

func parse(data []byte) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	t := &table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		col := strings.ToLower(strings.TrimSpace(h))
		if _, dup := t.cols[col]; !dup {
			t.cols[col] = i
		}
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}
