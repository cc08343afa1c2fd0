package domain

import (
	"time"
)

// Point is a WGS-84 latitude/longitude coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Incident is a single crime report after boundary normalization.
// Incidents are immutable once loaded.
type Incident struct {
	Timestamp time.Time `json:"timestamp"`
	HasTime   bool      `json:"has_time"` // false when the source carried no usable time of day
	Point
	Category string            `json:"category"`
	Variants map[string]string `json:"variants,omitempty"` // raw category columns keyed by source column name
}

// Date returns the incident's calendar day at midnight UTC.
func (i Incident) Date() time.Time {
	return Day(i.Timestamp)
}

// Station is one physical metro station. Key is canonical and unique.
type Station struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Line string `json:"line,omitempty"`
	Point
}

// RidershipRecord is one station-day of passenger counts.
type RidershipRecord struct {
	StationKey string    `json:"station_key"`
	Date       time.Time `json:"date"`
	Count      float64   `json:"count"`
}

// RiskTier is the discrete label derived from an event probability.
type RiskTier string

const (
	RiskLow    RiskTier = "Bajo"
	RiskMedium RiskTier = "Medio"
	RiskHigh   RiskTier = "Alto"
)

// DailyRow is one (station, day) row of the modeling frame.
// Lag fields are NaN until enough history exists.
type DailyRow struct {
	Date          time.Time  `json:"date"`
	Incidents     float64    `json:"incidents"`
	Ridership     float64    `json:"ridership"`
	RidershipMA7  float64    `json:"ridership_ma7"`
	RidershipMA14 float64    `json:"ridership_ma14"`
	Ratio         float64    `json:"ratio"`
	Weekday       int        `json:"weekday"` // 0=Monday
	Month         int        `json:"month"`
	ISOWeek       int        `json:"iso_week"`
	Payday        bool       `json:"payday"`
	Weekend       bool       `json:"weekend"`
	Holiday       bool       `json:"holiday"`
	IncidentLags  [5]float64 `json:"incident_lags"`
	RidershipLags [5]float64 `json:"ridership_lags"`
}

// DailyPrediction is the model output for one forecast day.
type DailyPrediction struct {
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Trend     float64   `json:"trend"`
}

// WeeklyForecast is one ISO week (ending Sunday) of the forecast horizon.
type WeeklyForecast struct {
	WeekEnding   time.Time `json:"week_ending"`
	RawPredicted float64   `json:"raw_predicted"`
	Predicted    float64   `json:"predicted"` // shrunk toward the station base rate
	Trend        float64   `json:"trend"`
	Probability  float64   `json:"probability_pct"`
	Risk         RiskTier  `json:"risk"`

	Weekday            string    `json:"weekday,omitempty"`
	WeekdayDate        time.Time `json:"weekday_date,omitzero"`
	WeekdayConfidence  float64   `json:"weekday_confidence_pct"`
	HourWindow         string    `json:"hour_window,omitempty"`
	HourConfidence     float64   `json:"hour_confidence_pct"`
	Category           string    `json:"category,omitempty"`
	CategoryConfidence float64   `json:"category_confidence_pct"`
}

// Share is one bucket of a percentage distribution.
type Share struct {
	Label   string  `json:"label"`
	Index   int     `json:"index"`
	Percent float64 `json:"percent"`
}

// Evaluation summarizes model accuracy on the held-out test partition.
type Evaluation struct {
	TestRows      int     `json:"test_rows"`
	RMSE          float64 `json:"rmse"`
	MAE           float64 `json:"mae"`
	BestIteration int     `json:"best_iteration"`
}

// ForecastResult is the bundle returned for one station/radius request.
type ForecastResult struct {
	RunID          string    `json:"run_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	StationKey     string    `json:"station_key"`
	StationName    string    `json:"station_name"`
	Line           string    `json:"line,omitempty"`
	RadiusMeters   int       `json:"radius_m"`
	FeedVersion    string    `json:"feed_version"`
	BaseWeeklyRate float64   `json:"base_weekly_rate"`
	Degraded       []string  `json:"degraded,omitempty"`

	Evaluation *Evaluation `json:"evaluation,omitempty"`

	Weeks []WeeklyForecast  `json:"weeks"`
	Daily []DailyPrediction `json:"daily"`

	WeekdayDistribution    []Share `json:"weekday_distribution"`
	HourDistribution       []Share `json:"hour_distribution"`
	HourWindowDistribution []Share `json:"hour_window_distribution"`
	CategoryDistribution   []Share `json:"category_distribution"`

	History []DailyRow `json:"history,omitempty"`
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekdayIndex returns the weekday of t with Monday as 0.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekEnding returns the Sunday that closes the ISO week containing t.
func WeekEnding(t time.Time) time.Time {
	d := Day(t)
	return d.AddDate(0, 0, 6-WeekdayIndex(d))
}

// WeekdayNames are the display names indexed by WeekdayIndex.
var WeekdayNames = [7]string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}
