package series

import (
	"time"

	"github.com/couchcryptid/station-risk-forecast/internal/domain"
)

// Mexican federal holidays observed by the metro, 2023-2025. Dates outside
// this range are never flagged.
var holidays = map[string]bool{
	"2023-01-01": true, "2023-02-06": true, "2023-03-20": true, "2023-05-01": true,
	"2023-09-16": true, "2023-11-20": true, "2023-12-25": true,
	"2024-01-01": true, "2024-02-05": true, "2024-03-18": true, "2024-05-01": true,
	"2024-09-16": true, "2024-11-18": true, "2024-12-25": true,
	"2025-01-01": true, "2025-02-03": true, "2025-03-17": true, "2025-05-01": true,
	"2025-09-16": true, "2025-11-17": true, "2025-12-25": true,
}

// IsHoliday reports whether d falls on a known holiday.
func IsHoliday(d time.Time) bool {
	return holidays[d.Format("2006-01-02")]
}

// IsPayday reports whether d is the 1st or 15th of the month ("quincena").
func IsPayday(d time.Time) bool {
	day := d.Day()
	return day == 1 || day == 15
}

// FillCalendar sets the calendar features of row from row.Date.
func FillCalendar(row *domain.DailyRow) {
	d := row.Date
	row.Weekday = domain.WeekdayIndex(d)
	row.Month = int(d.Month())
	_, row.ISOWeek = d.ISOWeek()
	row.Payday = IsPayday(d)
	row.Weekend = row.Weekday >= 5
	row.Holiday = IsHoliday(d)
}
