package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is one user's attendance for one UTC calendar day.
type Record struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Date        time.Time        `json:"date"`
	Status      Status           `json:"status"`
	MarkedBy    string           `json:"markedBy"`
	Note        string           `json:"note"`
	CheckIn     *time.Time       `json:"checkIn"`
	CheckOut    *time.Time       `json:"checkOut"`
	WorkedHours *decimal.Decimal `json:"workedHours"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

type MarkInput struct {
	UserID   string `json:"userId"`
	Date     string `json:"date"`
	Status   string `json:"status"`
	Note     string `json:"note"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type BulkInput struct {
	Date    string       `json:"date"`
	Records []BulkRecord `json:"records"`
}

type BulkRecord struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	Note     string `json:"note"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

type BulkResult struct {
	Date     string `json:"date"`
	Upserted int    `json:"upserted"`
}

// SelfMarkInput clocks the caller in or out for the current day. Status is
// only read on check in and defaults to present.
type SelfMarkInput struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Note   string `json:"note"`
}

type MonthView struct {
	UserID string   `json:"userId"`
	Year   int      `json:"year"`
	Month  int      `json:"month"`
	Days   []Record `json:"days"`
}

type StatusTotals struct {
	Present     int `json:"present"`
	Absent      int `json:"absent"`
	Leave       int `json:"leave"`
	Late        int `json:"late"`
	OfficialOff int `json:"official_off"`
	ShortLeave  int `json:"short_leave"`
}

func (t *StatusTotals) Add(status Status, n int) {
	switch status {
	case StatusPresent:
		t.Present += n
	case StatusAbsent:
		t.Absent += n
	case StatusLeave:
		t.Leave += n
	case StatusLate:
		t.Late += n
	case StatusOfficialOff:
		t.OfficialOff += n
	case StatusShortLeave:
		t.ShortLeave += n
	}
}

// Productive counts the days the user was at work.
func (t StatusTotals) Productive() int {
	return t.Present + t.Late
}

type BranchRow struct {
	UserID     string `json:"userId"`
	FullName   string `json:"fullName"`
	EmployeeID int    `json:"employeeId"`
	Department string `json:"department"`
	Branch     string `json:"branch"`
	StatusTotals
}

type BranchReport struct {
	Year   int         `json:"year"`
	Month  int         `json:"month"`
	Branch string      `json:"branch"`
	Rows   []BranchRow `json:"rows"`
}

type ReportUser struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	EmployeeID int    `json:"employeeId"`
	Department string `json:"department"`
	Branch     string `json:"branch"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ReportMeta struct {
	User  ReportUser `json:"user"`
	Year  int        `json:"year"`
	Month int        `json:"month"`
	Range DateRange  `json:"range"`
}

type MonthSummary struct {
	Totals      StatusTotals    `json:"totals"`
	DaysMarked  int             `json:"daysMarked"`
	WorkedHours decimal.Decimal `json:"workedHours"`
	AvgHours    decimal.Decimal `json:"avgHours"`
}

type ReportDay struct {
	ID          string           `json:"id"`
	Date        string           `json:"date"`
	Status      Status           `json:"status"`
	Note        string           `json:"note"`
	CheckIn     string           `json:"checkIn"`
	CheckOut    string           `json:"checkOut"`
	WorkedHours *decimal.Decimal `json:"workedHours"`
}

type UserMonthReport struct {
	Meta    ReportMeta   `json:"meta"`
	Summary MonthSummary `json:"summary"`
	Days    []ReportDay  `json:"days"`
}
