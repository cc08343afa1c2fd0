package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/synthetic"
)

func TestValidate_SyntheticFeedsPass(t *testing.T) {
	d, err := load(context.Background(), synthetic.Generate(synthetic.FridaySpike(120)))
	require.NoError(t, err)

	for _, p := range validate(d) {
		assert.True(t, p.passed(), "%s: %v", p.name, p.errors)
	}
}

func TestValidate_ReportsProblems(t *testing.T) {
	d, err := load(context.Background(), synthetic.Generate(synthetic.FridaySpike(30)))
	require.NoError(t, err)

	d.ridership = append(d.ridership,
		domain.RidershipRow{Key: "", Date: "2023-01-02", Count: "1"},
		d.ridership[0],
	)
	d.stations = append(d.stations, domain.StationRecord{Key: "99", Name: "Lejos", Lat: "20.5", Lon: "-99.1"})
	d.incidents = append(d.incidents, domain.IncidentRecord{Date: "2023-01-03", Lat: "x", Lon: "-99.1"})

	phases := validate(d)
	require.Len(t, phases, 4)

	assert.False(t, phases[0].passed(), "missing key is an error")
	assert.Contains(t, phases[0].warnings, "station 17: 1 duplicate station-days (summed)")

	assert.True(t, phases[1].passed())
	assert.Contains(t, phases[1].warnings, "station 99 (Lejos) has no ridership")

	assert.Contains(t, phases[2].warnings, "1 rows rejected: invalid coordinate")

	assert.Len(t, phases[3].warnings, 2, "30 days is too short for both stations")
}

func TestValidate_NoKnownStations(t *testing.T) {
	d, err := load(context.Background(), synthetic.Generate(synthetic.FridaySpike(30)))
	require.NoError(t, err)
	d.stations = nil

	phases := validate(d)
	assert.False(t, phases[1].passed())
}
