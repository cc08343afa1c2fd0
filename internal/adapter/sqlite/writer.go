package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// InsertRidership appends ridership rows in one transaction.
func (d *DB) InsertRidership(ctx context.Context, rows []domain.RidershipRow) error {
	return d.insert(ctx, "daily_affluence",
		`INSERT INTO daily_affluence (key, fecha, afluencia) VALUES (:key, :fecha, :afluencia)`,
		len(rows), func(i int) any { return rows[i] })
}

// InsertStations appends station rows in one transaction.
func (d *DB) InsertStations(ctx context.Context, rows []domain.StationRecord) error {
	return d.insert(ctx, "lines_metro",
		`INSERT INTO lines_metro (num, nombre, linea, lat, lon) VALUES (:num, :nombre, :linea, :lat, :lon)`,
		len(rows), func(i int) any { return rows[i] })
}

// InsertIncidents appends incident rows in one transaction. Category
// columns missing from a record are stored as NULL.
func (d *DB) InsertIncidents(ctx context.Context, rows []domain.IncidentRecord) error {
	return d.insert(ctx, "crimes_clean", `
		INSERT INTO crimes_clean (fecha_hecho, hora_hecho, latitud, longitud, delito, categoria_delito, subcategoria, tipo)
		VALUES (:fecha_hecho, :hora_hecho, :latitud, :longitud, :delito, :categoria_delito, :subcategoria, :tipo)`,
		len(rows), func(i int) any { return incidentArgs(rows[i]) })
}

func incidentArgs(rec domain.IncidentRecord) map[string]any {
	args := map[string]any{
		"fecha_hecho": rec.Date,
		"hora_hecho":  rec.Time,
		"latitud":     rec.Lat,
		"longitud":    rec.Lon,
	}
	for _, col := range domain.CategoryColumns {
		if v, ok := rec.Categories[col]; ok {
			args[col] = v
		} else {
			args[col] = nil
		}
	}
	return args
}

// Truncate empties every feed table.
func (d *DB) Truncate(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.tx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"daily_affluence", "lines_metro", "crimes_clean"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
		}
		return nil
	})
}

func (d *DB) insert(ctx context.Context, table, query string, n int, row func(int) any) error {
	if n == 0 {
		return nil
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.tx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare insert %s: %w", table, err)
		}
		defer stmt.Close()
		for i := range n {
			if _, err := stmt.ExecContext(ctx, row(i)); err != nil {
				return fmt.Errorf("insert %s row %d: %w", table, i, err)
			}
		}
		return nil
	})
}

// tx runs fn in a transaction and bumps the feed revision on success.
func (d *DB) tx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE feed_meta SET revision = revision + 1 WHERE id = 1`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
