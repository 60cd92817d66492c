package leave

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/apperror"
)

// Duration is the type-specific part of a leave request. Exactly one of
// FullDay, HalfDay or ShortLeave.
type Duration interface {
	Kind() Kind
	Days() float64
	isDuration()
}

type FullDay struct {
	DayCount float64
}

func (FullDay) Kind() Kind { return KindFull }

func (f FullDay) Days() float64 {
	if f.DayCount > 0 {
		return f.DayCount
	}
	return 1
}

func (FullDay) isDuration() {}

type HalfDay struct {
	Session Session
}

func (HalfDay) Kind() Kind    { return KindHalf }
func (HalfDay) Days() float64 { return HalfDayDays }
func (HalfDay) isDuration()   {}

type Window struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type ShortLeave struct {
	Window Window
	Hours  float64
}

func (ShortLeave) Kind() Kind    { return KindShort }
func (ShortLeave) Days() float64 { return ShortLeaveDays }
func (ShortLeave) isDuration()   {}

// DurationInput is the raw, unvalidated duration part of an application.
type DurationInput struct {
	Kind           Kind
	From           time.Time
	To             time.Time
	DurationDays   *float64
	DurationHours  *float64
	Window         *Window
	HalfDaySession string
}

// ResolveDuration validates the type-specific fields and returns the variant.
// The first violation wins.
func ResolveDuration(in DurationInput) (Duration, error) {
	switch in.Kind {
	case KindFull:
		if in.DurationDays != nil {
			if *in.DurationDays <= 0 {
				return nil, apperror.Validation("durationDays must be greater than zero")
			}
			return FullDay{DayCount: *in.DurationDays}, nil
		}
		return FullDay{DayCount: InclusiveDays(in.From, in.To)}, nil
	case KindShort:
		return resolveShortLeave(in)
	case KindHalf:
		session := Session(strings.TrimSpace(in.HalfDaySession))
		if session == "" {
			return nil, apperror.Validation("Half-day session selection is required")
		}
		if !session.Valid() {
			return nil, apperror.Validation("Invalid half-day session provided")
		}
		return HalfDay{Session: session}, nil
	default:
		return nil, apperror.Validation("Invalid leaveType")
	}
}

func resolveShortLeave(in DurationInput) (Duration, error) {
	if in.DurationHours == nil {
		return nil, apperror.Validation("Duration hours are required for short leave")
	}
	if *in.DurationHours > shortLeaveMaxHours {
		return nil, apperror.Validation("Short leave duration cannot exceed 2 hours")
	}
	var start, end string
	if in.Window != nil {
		start = strings.TrimSpace(in.Window.StartTime)
		end = strings.TrimSpace(in.Window.EndTime)
	}
	if start == "" || end == "" {
		return nil, apperror.Validation("Start and end times are required for short leave")
	}
	startMin, okStart := ParseClock(start)
	endMin, okEnd := ParseClock(end)
	if !okStart || !okEnd {
		return nil, apperror.Validation("Invalid short leave time format")
	}
	if endMin <= startMin {
		return nil, apperror.Validation("Short leave end time must be after start time")
	}
	gap := endMin - startMin
	if gap%ShortLeaveStepMinutes != 0 {
		return nil, apperror.Validation("Short leave must use 30-minute increments")
	}
	if gap > ShortLeaveMaxMinutes {
		return nil, apperror.Validation("Short leave duration cannot exceed 2 hours of absence")
	}
	calculated := roundToHalf(float64(gap) / 60)
	declared := roundToHalf(*in.DurationHours)
	if math.Abs(calculated-declared) > 0.001 {
		return nil, apperror.Validation("Short leave hours must match the selected range")
	}
	return ShortLeave{Window: Window{StartTime: start, EndTime: end}, Hours: calculated}, nil
}

// ParseClock converts "HH:MM" to minutes after midnight.
func ParseClock(value string) (int, bool) {
	hourStr, minuteStr, found := strings.Cut(value, ":")
	if !found {
		return 0, false
	}
	hours, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(minuteStr)
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// InclusiveDays counts calendar days from one date to another, both included.
func InclusiveDays(from, to time.Time) float64 {
	start := dayOnly(from)
	end := dayOnly(to)
	return math.Round(end.Sub(start).Hours()/24) + 1
}

func dayOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func roundToHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

// durationFromColumns rebuilds the variant from persisted columns. Rows
// without a positive day count fall back to hours/8, then to one day.
func durationFromColumns(kind Kind, days float64, hours *float64, window *Window, session string) Duration {
	switch kind {
	case KindShort:
		d := ShortLeave{}
		if window != nil {
			d.Window = *window
		}
		if hours != nil {
			d.Hours = *hours
		}
		return d
	case KindHalf:
		return HalfDay{Session: Session(session)}
	default:
		if days <= 0 && hours != nil && *hours > 0 {
			days = decimal.NewFromFloat(*hours).Div(decimal.NewFromFloat(HoursPerWorkDay)).Round(2).InexactFloat64()
		}
		return FullDay{DayCount: days}
	}
}

// durationColumns flattens the variant for persistence and JSON.
func durationColumns(d Duration) (days float64, hours *float64, window *Window, session *Session) {
	switch v := d.(type) {
	case ShortLeave:
		h := v.Hours
		w := v.Window
		return v.Days(), &h, &w, nil
	case HalfDay:
		s := v.Session
		return v.Days(), nil, nil, &s
	case FullDay:
		return v.Days(), nil, nil, nil
	}
	return 1, nil, nil, nil
}
