package csvfeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/synthetic"
)

func writeRaw(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestSource_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ds := synthetic.Generate(synthetic.FridaySpike(21))
	require.NoError(t, Write(dir, ds.RidershipRows, ds.StationRows, ds.IncidentRows))

	src := New(dir)
	ctx := context.Background()

	ridership, err := src.Ridership(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds.RidershipRows, ridership)

	stations, err := src.Stations(ctx)
	require.NoError(t, err)
	assert.Equal(t, ds.StationRows, stations)

	incidents, err := src.Incidents(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, len(ds.IncidentRows))
	for i, inc := range incidents {
		assert.Equal(t, ds.IncidentRows[i].Date, inc.Date)
		assert.Equal(t, ds.IncidentRows[i].Categories["delito"], inc.Categories["delito"])
		assert.Empty(t, inc.Categories["tipo"])
	}
}

func TestSource_Latin1(t *testing.T) {
	dir := t.TempDir()
	latin1, err := charmap.ISO8859_1.NewEncoder().String("num,nombre,linea,lat,lon\n17,Pino Suárez,2,19.4254,-99.1327\n")
	require.NoError(t, err)
	writeRaw(t, dir, StationsFile, []byte(latin1))

	got, err := New(dir).Stations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pino Suárez", got[0].Name)
}

func TestSource_BOMAndHeaderCase(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, RidershipFile, []byte("\xef\xbb\xbfKey, Fecha ,AFLUENCIA\n12.0,2024-01-01,5000\n"))

	got, err := New(dir).Ridership(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.RidershipRow{{Key: "12.0", Date: "2024-01-01", Count: "5000"}}, got)
}

func TestSource_IncidentCategoryColumns(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, IncidentsFile, []byte(
		"fecha_hecho,latitud,longitud,subcategoria\n2024-01-05,19.4254,-99.1327,ROBO A TRANSEUNTE\n"))

	got, err := New(dir).Incidents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]string{"subcategoria": "ROBO A TRANSEUNTE"}, got[0].Categories)
	assert.Empty(t, got[0].Time)
}

func TestSource_Errors(t *testing.T) {
	dir := t.TempDir()
	src := New(dir)
	ctx := context.Background()

	_, err := src.Ridership(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	writeRaw(t, dir, RidershipFile, []byte("key,fecha\n1,2024-01-01\n"))
	_, err = src.Ridership(ctx)
	assert.ErrorIs(t, err, ErrMissingColumn)

	writeRaw(t, dir, StationsFile, nil)
	_, err = src.Stations(ctx)
	assert.Error(t, err)

	_, err = src.Version(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSource_Version(t *testing.T) {
	dir := t.TempDir()
	ds := synthetic.Generate(synthetic.FridaySpike(14))
	require.NoError(t, Write(dir, ds.RidershipRows, ds.StationRows, ds.IncidentRows))
	src := New(dir)
	ctx := context.Background()

	v1, err := src.Version(ctx)
	require.NoError(t, err)
	v2, err := src.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	path := filepath.Join(dir, StationsFile)
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	v3, err := src.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}
