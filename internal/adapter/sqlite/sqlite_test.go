package sqlite

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/observability"
	"github.com/couchcryptid/station-risk-forecast/internal/pipeline"
	"github.com/couchcryptid/station-risk-forecast/internal/synthetic"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func seed(t *testing.T, db *DB, ds *synthetic.Dataset) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.InsertRidership(ctx, ds.RidershipRows))
	require.NoError(t, db.InsertStations(ctx, ds.StationRows))
	require.NoError(t, db.InsertIncidents(ctx, ds.IncidentRows))
}

func TestDB_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ds := synthetic.Generate(synthetic.FridaySpike(30))
	seed(t, db, ds)
	ctx := context.Background()

	ridership, err := db.Ridership(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ds.RidershipRows, ridership)

	stations, err := db.Stations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ds.StationRows, stations)

	incidents, err := db.Incidents(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ds.IncidentRows, incidents)
}

func TestDB_IncidentNullCategories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertIncidents(ctx, []domain.IncidentRecord{{
		Date: "2024-01-05", Time: "20:15:00", Lat: "19.4254", Lon: "-99.1327",
		Categories: map[string]string{"tipo": "ROBO"},
	}}))

	got, err := db.Incidents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]string{"tipo": "ROBO"}, got[0].Categories)

	inc, err := domain.NormalizeIncident(got[0], domain.CityBounds)
	require.NoError(t, err)
	assert.Equal(t, "robo", inc.Category)
}

func TestDB_VersionChangesOnWrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v0, err := db.Version(ctx)
	require.NoError(t, err)
	again, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v0, again)

	require.NoError(t, db.InsertStations(ctx, []domain.StationRecord{{Key: "1", Name: "Observatorio"}}))
	v1, err := db.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v1)

	require.NoError(t, db.Truncate(ctx))
	v2, err := db.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	assert.NotEqual(t, v0, v2, "revision keeps increasing even when sizes match")
}

func TestDB_EmptyInsertIsNoop(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	v0, err := db.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, db.InsertRidership(ctx, nil))
	v1, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v0, v1)
}

func TestDB_FeedsPipeline(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, synthetic.Generate(synthetic.FridaySpike(90)))

	p := pipeline.New(db, slog.Default(), observability.NewMetricsForTesting())
	stations, err := p.Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Bellas Artes", stations[0].Name)
	assert.Equal(t, "Pino Suárez", stations[1].Name)
}
