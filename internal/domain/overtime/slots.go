package overtime

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/apperror"
)

const (
	dayLayout = "2006-01-02"

	// WorkdayHours is the paid day length the hourly overtime rate is derived from.
	WorkdayHours = 9
)

var clockLayouts = []string{"15:04", "3:04pm", "3pm", "3:04 pm", "3 pm"}

// parseClockLabel returns minutes from midnight for "HH:MM" or "h[:mm] am|pm".
func parseClockLabel(raw string) (int, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

func parseDay(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dayLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func at(day time.Time, minutes int) time.Time {
	return day.Add(time.Duration(minutes) * time.Minute)
}

// buildSlots resolves slot labels against day. Slots must be non-empty,
// end after they start and not overlap one another.
func buildSlots(day time.Time, inputs []SlotInput) ([]Slot, error) {
	if len(inputs) == 0 {
		return nil, apperror.Validation("At least one overtime slot is required")
	}
	type span struct{ start, end int }
	spans := make([]span, 0, len(inputs))
	slots := make([]Slot, 0, len(inputs))
	for i, in := range inputs {
		rawStart, rawEnd := in.bounds()
		start, okStart := parseClockLabel(rawStart)
		end, okEnd := parseClockLabel(rawEnd)
		if !okStart || !okEnd {
			return nil, apperror.Validation(fmt.Sprintf("Invalid time value in slot %d", i+1))
		}
		if end <= start {
			return nil, apperror.Validation(fmt.Sprintf("Overtime slot %d must end after it starts", i+1))
		}
		spans = append(spans, span{start, end})
		slots = append(slots, Slot{From: at(day, start), To: at(day, end), DurationMinutes: end - start})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return nil, apperror.Validation("Overtime slots cannot overlap")
		}
	}
	return slots, nil
}

// moveSlots keeps each slot's clock time and length but places it on day.
func moveSlots(day time.Time, slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		from := s.From.UTC()
		start := from.Hour()*60 + from.Minute()
		out = append(out, Slot{
			From:            at(day, start),
			To:              at(day, start+s.DurationMinutes),
			DurationMinutes: s.DurationMinutes,
		})
	}
	return out
}

func minutesToHours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// Payout is the overtime value of a claim: the monthly salary spread over
// the days of the claim's month and WorkdayHours, charged per minute.
func Payout(c Claim) *decimal.Decimal {
	days := time.Date(c.Date.Year(), c.Date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if days <= 0 {
		return nil
	}
	perMinute := c.Salary.
		Div(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(WorkdayHours)).
		Div(decimal.NewFromInt(60))
	out := perMinute.Mul(decimal.NewFromInt(int64(c.TotalMinutes)))
	return &out
}
