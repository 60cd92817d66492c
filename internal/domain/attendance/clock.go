package attendance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/apperror"
)

const dayLayout = "2006-01-02"

// parseDay accepts YYYY-MM-DD or an RFC 3339 timestamp and anchors it to UTC midnight.
func parseDay(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dayLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return dayOf(t), true
	}
	return time.Time{}, false
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// parseClock resolves an HH:MM label against day, or takes an RFC 3339
// timestamp as is. An empty value is no time at all.
func parseClock(day time.Time, raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	if len(raw) == 5 && raw[2] == ':' {
		clock, err := time.Parse("15:04", raw)
		if err != nil {
			return nil, false
		}
		at := day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
		return &at, true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	at = at.UTC()
	return &at, true
}

func checkTimes(day time.Time, checkIn, checkOut *time.Time) error {
	end := day.AddDate(0, 0, 1)
	outside := func(t *time.Time) bool {
		return t != nil && (t.Before(day) || !t.Before(end))
	}
	if outside(checkIn) {
		return apperror.Validation("checkIn must be on the same calendar day as date (UTC)")
	}
	if outside(checkOut) {
		return apperror.Validation("checkOut must be on the same calendar day as date (UTC)")
	}
	if checkIn != nil && checkOut != nil && checkOut.Before(*checkIn) {
		return apperror.Validation("checkOut cannot be earlier than checkIn")
	}
	return nil
}

// workedHours is the span between the two clocks in hours, rounded to two places.
func workedHours(checkIn, checkOut *time.Time) *decimal.Decimal {
	if checkIn == nil || checkOut == nil || checkOut.Before(*checkIn) {
		return nil
	}
	hours := decimal.NewFromInt(checkOut.Sub(*checkIn).Milliseconds()).
		Div(decimal.NewFromInt(time.Hour.Milliseconds())).
		Round(2)
	return &hours
}

func monthRange(year, month int) DateRange {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}

func clockLabel(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("15:04")
}
