// Package postgres reads the feed tables from PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// Source is a feed source backed by a pgx connection pool. Columns are read
// as text so that typed and text-only schemas both work.
type Source struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*Source, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Source{pool: pool}, nil
}

func (s *Source) Close() {
	s.pool.Close()
}

// Ping checks connectivity for readiness probes.
func (s *Source) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Source) Ridership(ctx context.Context) ([]domain.RidershipRow, error) {
	const query = `
		SELECT key::text AS key,
		       fecha::text AS fecha,
		       COALESCE(afluencia::text, '') AS afluencia
		FROM daily_affluence
		ORDER BY key, fecha`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query daily_affluence: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.RidershipRow])
	if err != nil {
		return nil, fmt.Errorf("scan daily_affluence: %w", err)
	}
	return out, nil
}

func (s *Source) Stations(ctx context.Context) ([]domain.StationRecord, error) {
	const query = `
		SELECT num::text AS num,
		       COALESCE(nombre::text, '') AS nombre,
		       COALESCE(linea::text, '') AS linea,
		       COALESCE(lat::text, '') AS lat,
		       COALESCE(lon::text, '') AS lon
		FROM lines_metro`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query lines_metro: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.StationRecord])
	if err != nil {
		return nil, fmt.Errorf("scan lines_metro: %w", err)
	}
	return out, nil
}

func (s *Source) Incidents(ctx context.Context) ([]domain.IncidentRecord, error) {
	const query = `
		SELECT fecha_hecho::text, hora_hecho::text, latitud::text, longitud::text,
		       delito::text, categoria_delito::text, subcategoria::text, tipo::text
		FROM crimes_clean`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query crimes_clean: %w", err)
	}
	defer rows.Close()

	var out []domain.IncidentRecord
	for rows.Next() {
		var (
			date, hour, lat, lon *string
			cats                 [4]*string
		)
		if err := rows.Scan(&date, &hour, &lat, &lon, &cats[0], &cats[1], &cats[2], &cats[3]); err != nil {
			return nil, fmt.Errorf("scan crimes_clean: %w", err)
		}
		out = append(out, incidentRecord(date, hour, lat, lon, cats))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crimes_clean: %w", err)
	}
	return out, nil
}

// incidentRecord builds a raw incident; cats follows domain.CategoryColumns
// and NULL columns are left out of the category map.
func incidentRecord(date, hour, lat, lon *string, cats [4]*string) domain.IncidentRecord {
	rec := domain.IncidentRecord{
		Date: deref(date),
		Time: deref(hour),
		Lat:  deref(lat),
		Lon:  deref(lon),
	}
	for i, col := range domain.CategoryColumns {
		if cats[i] == nil {
			continue
		}
		if rec.Categories == nil {
			rec.Categories = make(map[string]string, len(cats))
		}
		rec.Categories[col] = *cats[i]
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Version summarizes table sizes and date ranges.
func (s *Source) Version(ctx context.Context) (string, error) {
	const query = `
		SELECT (SELECT count(*) FROM daily_affluence),
		       (SELECT COALESCE(max(fecha)::text, '') FROM daily_affluence),
		       (SELECT count(*) FROM lines_metro),
		       (SELECT count(*) FROM crimes_clean),
		       (SELECT COALESCE(max(fecha_hecho)::text, '') FROM crimes_clean)`
	var (
		ridership, stations, incidents int64
		lastRidership, lastIncident    string
	)
	err := s.pool.QueryRow(ctx, query).Scan(&ridership, &lastRidership, &stations, &incidents, &lastIncident)
	if err != nil {
		return "", fmt.Errorf("read feed version: %w", err)
	}
	return formatVersion(ridership, lastRidership, stations, incidents, lastIncident), nil
}

func formatVersion(ridership int64, lastRidership string, stations, incidents int64, lastIncident string) string {
	return fmt.Sprintf("pg:%d@%s:%d:%d@%s", ridership, lastRidership, stations, incidents, lastIncident)
}
