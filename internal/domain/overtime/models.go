package overtime

import (
	"time"

	"github.com/shopspring/decimal"
)

// Slot is one continuous overtime window on the claim's day.
type Slot struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	DurationMinutes int       `json:"durationMinutes"`
}

// Claim is an instructor's overtime for a single day. Name, designation and
// branch are copied from the profile and refreshed on every update.
type Claim struct {
	ID             string          `json:"id"`
	InstructorID   string          `json:"instructorId"`
	InstructorName string          `json:"instructorName"`
	Date           time.Time       `json:"date"`
	Designation    string          `json:"designation"`
	BranchName     string          `json:"branchName"`
	Slots          []Slot          `json:"overtimeSlots"`
	TotalMinutes   int             `json:"totalDurationMinutes"`
	TotalHours     decimal.Decimal `json:"totalDurationHours"`
	Salary         decimal.Decimal `json:"salary"`
	Verified       bool            `json:"verified"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// setSlots replaces the slots and recomputes the totals.
func (c *Claim) setSlots(slots []Slot) {
	c.Slots = slots
	c.TotalMinutes = 0
	for _, s := range slots {
		c.TotalMinutes += s.DurationMinutes
	}
	c.TotalHours = minutesToHours(c.TotalMinutes)
}

// Instructor is the slice of a user profile an overtime claim needs.
type Instructor struct {
	ID          string
	FullName    string
	Designation string
	Branch      string
	Salary      *decimal.Decimal
}

// SlotInput accepts either start/end or from/to, as "HH:MM" or "h[:mm] am|pm".
type SlotInput struct {
	Start string `json:"start"`
	End   string `json:"end"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (s SlotInput) bounds() (string, string) {
	start, end := s.Start, s.End
	if start == "" {
		start = s.From
	}
	if end == "" {
		end = s.To
	}
	return start, end
}

type CreateInput struct {
	UserID        string           `json:"userId"`
	Date          string           `json:"date"`
	OvertimeSlots []SlotInput      `json:"overtimeSlots"`
	BranchName    *string          `json:"branchName"`
	Notes         *string          `json:"notes"`
	Salary        *decimal.Decimal `json:"salary"`
}

// UpdateInput leaves nil fields untouched. Salary and Verified are reserved
// for admin roles.
type UpdateInput struct {
	Date          *string          `json:"date"`
	OvertimeSlots []SlotInput      `json:"overtimeSlots"`
	BranchName    *string          `json:"branchName"`
	Notes         *string          `json:"notes"`
	Salary        *decimal.Decimal `json:"salary"`
	Verified      *bool            `json:"verified"`
}

type ListQuery struct {
	UserID   string
	Date     string
	Verified string
}

type ListFilter struct {
	InstructorID string
	Day          *time.Time
	Verified     *bool
}

type ReportQuery struct {
	Year         string
	Month        string
	InstructorID string
	BranchName   string
	Verified     string
}

type PeriodFilter struct {
	Start        time.Time
	End          time.Time
	BranchPrefix string
	Verified     *bool
}

type Period struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Label string `json:"label"`
}

type ReportFilters struct {
	BranchName *string `json:"branchName"`
	Verified   *string `json:"verified"`
}

type ReportTotals struct {
	UniqueInstructors   int             `json:"uniqueInstructors"`
	TotalClaims         int             `json:"totalClaims"`
	TotalMinutes        int             `json:"totalMinutes"`
	TotalHours          decimal.Decimal `json:"totalHours"`
	TotalVerifiedClaims int             `json:"totalVerifiedClaims"`
}

type InstructorSummary struct {
	InstructorID    string          `json:"instructorId"`
	InstructorName  string          `json:"instructorName"`
	Designation     string          `json:"designation"`
	BranchName      string          `json:"branchName"`
	TotalClaims     int             `json:"totalClaims"`
	VerifiedClaims  int             `json:"verifiedClaims"`
	TotalMinutes    int             `json:"totalMinutes"`
	TotalHours      decimal.Decimal `json:"totalHours"`
	LatestClaimDate *time.Time      `json:"latestClaimDate,omitempty"`
}

type PayoutClaim struct {
	Claim
	CalculatedPayout *decimal.Decimal `json:"calculatedPayout"`
}

type PayoutTotals struct {
	TotalSalary           decimal.Decimal `json:"totalSalary"`
	TotalCalculatedPayout decimal.Decimal `json:"totalCalculatedPayout"`
}

type SelectedInstructor struct {
	InstructorSummary
	Claims []PayoutClaim `json:"claims"`
	Totals PayoutTotals  `json:"totals"`
}

type MonthlyReport struct {
	Period             Period              `json:"period"`
	Filters            ReportFilters       `json:"filters"`
	Totals             ReportTotals        `json:"totals"`
	Instructors        []InstructorSummary `json:"instructors"`
	SelectedInstructor *SelectedInstructor `json:"selectedInstructor"`
}
