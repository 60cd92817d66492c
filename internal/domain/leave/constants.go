package leave

import "slices"

const (
	StandardAllowance = 12.0
	HalfDayDays       = 0.5
	ShortLeaveDays    = 0.25
	HoursPerWorkDay   = 8.0

	ShortLeaveMaxMinutes  = 120
	ShortLeaveStepMinutes = 30
	shortLeaveMaxHours    = 2.0

	allowanceEpsilon = 0.0001
)

type Kind string

const (
	KindFull  Kind = "full"
	KindHalf  Kind = "half"
	KindShort Kind = "short"
)

type Category string

const (
	CategoryCasual  Category = "casual"
	CategoryMedical Category = "medical"
	CategoryAnnual  Category = "annual"
	CategorySick    Category = "sick"
	CategoryUnpaid  Category = "unpaid"
	CategoryOther   Category = "other"
)

var Categories = []Category{CategoryCasual, CategoryMedical, CategoryAnnual, CategorySick, CategoryUnpaid, CategoryOther}

func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusOnHold   Status = "on_hold"
)

var Statuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusOnHold}

func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ReviewStatus is the team lead's informational verdict, separate from Status.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (r ReviewStatus) Valid() bool {
	return r == ReviewPending || r == ReviewApproved || r == ReviewRejected
}

type Session string

const (
	SessionFirstHalf  Session = "first_half"
	SessionSecondHalf Session = "second_half"
)

func (s Session) Valid() bool {
	return s == SessionFirstHalf || s == SessionSecondHalf
}

var EmploymentStatuses = []string{"intern", "apprentice", "permanent", "probation", "contract"}

const DecisionNotApplicable = "not_applicable"

var Decisions = []string{"paid", "unpaid", "partially_paid", DecisionNotApplicable}
