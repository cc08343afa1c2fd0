package calendar

import (
	"testing"
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// friday is 2024-03-08.
var friday = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour int, category string) domain.Incident {
	return domain.Incident{Timestamp: day.Add(time.Duration(hour) * time.Hour), HasTime: true, Category: category}
}

func TestBuild_Empty(t *testing.T) {
	p := Build(nil)
	assert.Equal(t, Neutral(), p)
	assert.Empty(t, p.Weekdays)
	assert.Empty(t, p.Hours)
	assert.Equal(t, 0, p.BestWeekday)
	assert.Equal(t, 11, p.WindowStart)
	assert.Equal(t, 12, p.WindowEnd)
	assert.Zero(t, p.HourConfidence)
	assert.Equal(t, "desconocido", p.Category)
}

func TestBuild(t *testing.T) {
	monday := friday.AddDate(0, 0, -4)
	incidents := []domain.Incident{
		at(friday, 19, "robo a pasajero"),
		at(friday, 20, "robo a pasajero"),
		at(friday.AddDate(0, 0, 7), 20, "robo a pasajero"),
		at(friday.AddDate(0, 0, 14), 8, "robo de celular"),
		at(monday, 20, "lesiones"),
		{Timestamp: monday, Category: "robo de celular"}, // no hour
	}
	p := Build(incidents)

	t.Run("weekdays", func(t *testing.T) {
		require.Len(t, p.Weekdays, 2)
		assert.Equal(t, domain.Share{Label: "Lunes", Index: 0, Percent: 33.33}, p.Weekdays[0])
		assert.Equal(t, domain.Share{Label: "Viernes", Index: 4, Percent: 66.67}, p.Weekdays[1])
		assert.Equal(t, 4, p.BestWeekday)
		assert.Equal(t, 66.67, p.WeekdayConfidence)
	})

	t.Run("hours use timed incidents only", func(t *testing.T) {
		require.Len(t, p.Hours, 24)
		assert.Equal(t, 60.0, p.Hours[20].Percent)
		assert.Equal(t, 20.0, p.Hours[19].Percent)
		require.Len(t, p.HourWindows, 24)
		assert.Equal(t, 19, p.WindowStart)
		assert.Equal(t, 20, p.WindowEnd)
		assert.Equal(t, 80.0, p.HourConfidence)
		assert.Equal(t, "19:00-20:59", p.HourWindows[19].Label)
	})

	t.Run("categories", func(t *testing.T) {
		require.Len(t, p.Categories, 3)
		assert.Equal(t, "robo a pasajero", p.Category)
		assert.Equal(t, 50.0, p.CategoryConfidence)
		assert.Equal(t, "robo de celular", p.Categories[1].Label)
		assert.Equal(t, "lesiones", p.Categories[2].Label)
	})
}

func TestBuild_WindowWrapsMidnight(t *testing.T) {
	p := Build([]domain.Incident{
		at(friday, 23, "a"),
		at(friday, 0, "a"),
		at(friday, 0, "a"),
		at(friday, 12, "a"),
	})
	assert.Equal(t, 23, p.WindowStart)
	assert.Equal(t, 0, p.WindowEnd)
	assert.Equal(t, 75.0, p.HourConfidence)
	assert.Equal(t, "23:00-00:59 (cruza medianoche)", WindowLabel(p.WindowStart, p.WindowEnd))
}

func TestBuild_NoTimedIncidents(t *testing.T) {
	p := Build([]domain.Incident{{Timestamp: friday, Category: "robo"}})
	assert.Empty(t, p.Hours)
	assert.Equal(t, 11, p.WindowStart)
	assert.Zero(t, p.HourConfidence)
	assert.Equal(t, 4, p.BestWeekday)
	assert.Equal(t, 100.0, p.WeekdayConfidence)
}

func TestBuild_TopCategoriesCapped(t *testing.T) {
	var incidents []domain.Incident
	for i, c := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		for range i + 1 {
			incidents = append(incidents, at(friday, 10, c))
		}
	}
	p := Build(incidents)
	require.Len(t, p.Categories, 5)
	assert.Equal(t, "g", p.Categories[0].Label)
	assert.Equal(t, "c", p.Categories[4].Label)
}

func TestEnrich(t *testing.T) {
	p := Build([]domain.Incident{at(friday, 19, "robo"), at(friday, 20, "robo")})
	weeks := []domain.WeeklyForecast{
		{WeekEnding: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Predicted: 2},
		{WeekEnding: time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC), Predicted: 3},
	}
	out := Enrich(weeks, p)
	require.Len(t, out, 2)

	assert.Equal(t, "Viernes", out[0].Weekday)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), out[0].WeekdayDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), out[1].WeekdayDate)
	assert.Equal(t, 100.0, out[0].WeekdayConfidence)
	assert.Equal(t, "19:00-20:59", out[0].HourWindow)
	assert.Equal(t, 100.0, out[1].HourConfidence)
	assert.Equal(t, "robo", out[1].Category)
	assert.Equal(t, 3.0, out[1].Predicted)
	assert.Empty(t, weeks[0].Weekday, "input must not be modified")
}

func TestEnrich_NeutralProfile(t *testing.T) {
	out := Enrich([]domain.WeeklyForecast{{WeekEnding: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)}}, Neutral())
	assert.Equal(t, "Lunes", out[0].Weekday)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), out[0].WeekdayDate)
	assert.Equal(t, "11:00-12:59", out[0].HourWindow)
	assert.Equal(t, domain.UnknownCategory, out[0].Category)
}
