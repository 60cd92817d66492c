package attendance

import (
	"slices"
	"strings"
)

type Status string

const (
	StatusPresent     Status = "present"
	StatusAbsent      Status = "absent"
	StatusLeave       Status = "leave"
	StatusLate        Status = "late"
	StatusOfficialOff Status = "official_off"
	StatusShortLeave  Status = "short_leave"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLeave, StatusLate, StatusOfficialOff, StatusShortLeave}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Off reports whether the status carries no clock times.
func (s Status) Off() bool {
	return s == StatusAbsent || s == StatusLeave || s == StatusOfficialOff
}

// NormalizeStatus folds case and whitespace so that legacy labels such as
// "official off" and "Short leave" map onto their canonical values.
func NormalizeStatus(raw string) Status {
	return Status(strings.Join(strings.Fields(strings.ToLower(raw)), "_"))
}

const (
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
)

const EventMarked = "attendance:marked"

const unknownLabel = "-"
