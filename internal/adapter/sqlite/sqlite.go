// Package sqlite reads and writes the feed tables in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// DB is a SQLite feed store. Reads may run concurrently; writes are
// serialized.
type DB struct {
	db      *sqlx.DB
	writeMu sync.Mutex
}

// Open opens the database at path. The special path ":memory:" opens a
// private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	if path == ":memory:" {
		dsn = ":memory:"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and SQLite has a
	// single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the feed tables if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if _, err := d.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (d *DB) Ridership(ctx context.Context) ([]domain.RidershipRow, error) {
	var rows []domain.RidershipRow
	err := d.db.SelectContext(ctx, &rows,
		`SELECT key, fecha, COALESCE(afluencia, '') AS afluencia FROM daily_affluence ORDER BY key, fecha`)
	if err != nil {
		return nil, fmt.Errorf("query daily_affluence: %w", err)
	}
	return rows, nil
}

func (d *DB) Stations(ctx context.Context) ([]domain.StationRecord, error) {
	var rows []domain.StationRecord
	err := d.db.SelectContext(ctx, &rows, `
		SELECT num,
		       COALESCE(nombre, '') AS nombre,
		       COALESCE(linea, '') AS linea,
		       COALESCE(lat, '') AS lat,
		       COALESCE(lon, '') AS lon
		FROM lines_metro`)
	if err != nil {
		return nil, fmt.Errorf("query lines_metro: %w", err)
	}
	return rows, nil
}

// incidentRow mirrors crimes_clean. NULL category columns are treated as
// absent.
type incidentRow struct {
	Date            sql.NullString `db:"fecha_hecho"`
	Time            sql.NullString `db:"hora_hecho"`
	Lat             sql.NullString `db:"latitud"`
	Lon             sql.NullString `db:"longitud"`
	Delito          sql.NullString `db:"delito"`
	CategoriaDelito sql.NullString `db:"categoria_delito"`
	Subcategoria    sql.NullString `db:"subcategoria"`
	Tipo            sql.NullString `db:"tipo"`
}

func (r incidentRow) record() domain.IncidentRecord {
	rec := domain.IncidentRecord{
		Date:       r.Date.String,
		Time:       r.Time.String,
		Lat:        r.Lat.String,
		Lon:        r.Lon.String,
		Categories: make(map[string]string, 4),
	}
	for col, v := range map[string]sql.NullString{
		"delito":           r.Delito,
		"categoria_delito": r.CategoriaDelito,
		"subcategoria":     r.Subcategoria,
		"tipo":             r.Tipo,
	} {
		if v.Valid {
			rec.Categories[col] = v.String
		}
	}
	return rec
}

func (d *DB) Incidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	rows, err := d.db.QueryxContext(ctx, `
		SELECT fecha_hecho, hora_hecho, latitud, longitud, delito, categoria_delito, subcategoria, tipo
		FROM crimes_clean`)
	if err != nil {
		return nil, fmt.Errorf("query crimes_clean: %w", err)
	}
	defer rows.Close()

	var out []domain.IncidentRecord
	for rows.Next() {
		var r incidentRow
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("scan crimes_clean: %w", err)
		}
		out = append(out, r.record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crimes_clean: %w", err)
	}
	return out, nil
}

// Version combines the write revision with the table sizes, so rows added
// outside this package also change it.
func (d *DB) Version(ctx context.Context) (string, error) {
	var v struct {
		Revision  int64 `db:"revision"`
		Ridership int64 `db:"ridership"`
		Stations  int64 `db:"stations"`
		Incidents int64 `db:"incidents"`
	}
	err := d.db.GetContext(ctx, &v, `
		SELECT (SELECT revision FROM feed_meta WHERE id = 1) AS revision,
		       (SELECT COUNT(*) FROM daily_affluence) AS ridership,
		       (SELECT COUNT(*) FROM lines_metro) AS stations,
		       (SELECT COUNT(*) FROM crimes_clean) AS incidents`)
	if err != nil {
		return "", fmt.Errorf("read feed version: %w", err)
	}
	return fmt.Sprintf("sqlite:%d:%d:%d:%d", v.Revision, v.Ridership, v.Stations, v.Incidents), nil
}
