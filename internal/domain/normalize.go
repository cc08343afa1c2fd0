package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CategoryColumns is the preference order used to pick an incident's
// category label from the source columns.
var CategoryColumns = []string{"delito", "categoria_delito", "subcategoria", "tipo"}

// UnknownCategory labels incidents with no usable category column.
const UnknownCategory = "desconocido"

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// CityBounds is the Mexico City bounding box applied at ingestion.
var CityBounds = Bounds{MinLat: 19.0, MaxLat: 19.6, MinLon: -99.4, MaxLon: -98.9}

// IncidentRecord is the raw incident row as read from a feed. Every field is
// text so that SQL, CSV and JSON sources share one mapping step.
type IncidentRecord struct {
	Date       string            `db:"fecha_hecho"`
	Time       string            `db:"hora_hecho"`
	Lat        string            `db:"latitud"`
	Lon        string            `db:"longitud"`
	Categories map[string]string `db:"-"` // keyed by source column name
}

// StationRecord is the raw station-coordinate row.
type StationRecord struct {
	Key  string `db:"num"`
	Name string `db:"nombre"`
	Line string `db:"linea"`
	Lat  string `db:"lat"`
	Lon  string `db:"lon"`
}

// RidershipRow is the raw ridership row.
type RidershipRow struct {
	Key   string `db:"key"`
	Date  string `db:"fecha"`
	Count string `db:"afluencia"`
}

// Normalization errors.
var (
	ErrMissingDate   = errors.New("missing date")
	ErrBadCoordinate = errors.New("invalid coordinate")
	ErrOutOfBounds   = errors.New("coordinate outside city bounds")
	ErrMissingKey    = errors.New("missing station key")
)

var (
	dateLayouts = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006-01-02 15:04:05-07:00",
		"02/01/2006",
		"02/01/2006 15:04:05",
	}

	// leadingHourRe matches the hour part of loosely formatted times like "9" or "21h".
	leadingHourRe = regexp.MustCompile(`^(\d{1,2})`)
)

// ParseDate parses the date formats found in the feeds and returns the
// calendar day at midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

// ParseHour extracts the hour of day from "HH:MM:SS", "HH:MM" or a leading
// 1-2 digit hour. The second return is false when no hour can be read.
func ParseHour(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), true
		}
	}
	m := leadingHourRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return min(max(h, 0), 23), true
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, s)
	}
	return v, nil
}

// NormalizeIncident maps a raw incident row onto the internal schema. Rows
// without a date, with unparsable coordinates, or outside bounds are rejected.
func NormalizeIncident(rec IncidentRecord, bounds Bounds) (Incident, error) {
	date, err := ParseDate(rec.Date)
	if err != nil {
		return Incident{}, err
	}
	lat, err := parseCoordinate(rec.Lat)
	if err != nil {
		return Incident{}, err
	}
	lon, err := parseCoordinate(rec.Lon)
	if err != nil {
		return Incident{}, err
	}
	p := Point{Lat: lat, Lon: lon}
	if !bounds.Contains(p) {
		return Incident{}, ErrOutOfBounds
	}

	inc := Incident{Timestamp: date, Point: p, Category: UnknownCategory}
	if h, ok := ParseHour(rec.Time); ok {
		inc.Timestamp = date.Add(time.Duration(h) * time.Hour)
		inc.HasTime = true
	}

	for _, col := range CategoryColumns {
		raw, ok := rec.Categories[col]
		if !ok {
			continue
		}
		if inc.Variants == nil {
			inc.Variants = make(map[string]string, len(rec.Categories))
		}
		inc.Variants[col] = raw
		if inc.Category == UnknownCategory {
			if c := NormalizeCategory(raw); c != "" {
				inc.Category = c
			}
		}
	}
	return inc, nil
}

// NormalizeStation maps a raw station row. The key is returned as-is; callers
// canonicalize it with the station resolver's normalization.
func NormalizeStation(rec StationRecord) (Station, error) {
	key := strings.TrimSpace(rec.Key)
	if key == "" {
		return Station{}, ErrMissingKey
	}
	lat, err := parseCoordinate(rec.Lat)
	if err != nil {
		return Station{}, err
	}
	lon, err := parseCoordinate(rec.Lon)
	if err != nil {
		return Station{}, err
	}
	return Station{
		Key:   key,
		Name:  TitleName(rec.Name),
		Line:  strings.TrimSpace(rec.Line),
		Point: Point{Lat: lat, Lon: lon},
	}, nil
}

// NormalizeRidership maps a raw ridership row. Float-formatted keys such as
// "12.0" are reduced to their integer form; unparsable or negative counts
// become zero.
func NormalizeRidership(row RidershipRow) (RidershipRecord, error) {
	key := strings.TrimSpace(row.Key)
	if key == "" {
		return RidershipRecord{}, ErrMissingKey
	}
	if f, err := strconv.ParseFloat(key, 64); err == nil && f == float64(int64(f)) {
		key = strconv.FormatInt(int64(f), 10)
	}
	date, err := ParseDate(row.Date)
	if err != nil {
		return RidershipRecord{}, err
	}
	count, err := strconv.ParseFloat(strings.TrimSpace(row.Count), 64)
	if err != nil || count < 0 || math.IsNaN(count) || math.IsInf(count, 0) {
		count = 0
	}
	return RidershipRecord{StationKey: key, Date: date, Count: count}, nil
}
