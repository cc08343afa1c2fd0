package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

func ptr(s string) *string { return &s }

func TestIncidentRecord(t *testing.T) {
	t.Run("null categories are absent", func(t *testing.T) {
		rec := incidentRecord(ptr("2024-01-05"), nil, ptr("19.42"), ptr("-99.13"),
			[4]*string{nil, ptr("ROBO"), nil, ptr("")})
		assert.Equal(t, domain.IncidentRecord{
			Date: "2024-01-05",
			Lat:  "19.42",
			Lon:  "-99.13",
			Categories: map[string]string{
				"categoria_delito": "ROBO",
				"tipo":             "",
			},
		}, rec)
	})

	t.Run("all null", func(t *testing.T) {
		rec := incidentRecord(nil, nil, nil, nil, [4]*string{})
		assert.Equal(t, domain.IncidentRecord{}, rec)
	})
}

func TestFormatVersion(t *testing.T) {
	a := formatVersion(10, "2024-01-01", 2, 5, "2024-01-01")
	b := formatVersion(10, "2024-01-02", 2, 5, "2024-01-01")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, formatVersion(10, "2024-01-01", 2, 5, "2024-01-01"))
}
