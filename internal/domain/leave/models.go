package leave

import (
	"encoding/json"
	"time"

	"hrportal/internal/domain/users"
)

// EmployeeSnapshot is a copy of the applicant's profile taken when the
// request is created. It is never refreshed from the user record.
type EmployeeSnapshot struct {
	fullName          string
	employeeID        int
	email             string
	department        string
	branch            string
	city              string
	joiningDate       *time.Time
	role              string
	profileImageURL   string
	signatureImageURL string
}

func NewEmployeeSnapshot(u users.User) EmployeeSnapshot {
	return EmployeeSnapshot{
		fullName:          u.FullName,
		employeeID:        u.EmployeeID,
		email:             u.Email,
		department:        u.Department,
		branch:            u.Branch,
		city:              u.City,
		joiningDate:       copyTime(u.JoiningDate),
		role:              u.Role,
		profileImageURL:   u.ProfileImageURL,
		signatureImageURL: u.SignatureImageURL,
	}
}

func (e EmployeeSnapshot) FullName() string          { return e.fullName }
func (e EmployeeSnapshot) EmployeeID() int           { return e.employeeID }
func (e EmployeeSnapshot) Email() string             { return e.email }
func (e EmployeeSnapshot) Department() string        { return e.department }
func (e EmployeeSnapshot) Branch() string            { return e.branch }
func (e EmployeeSnapshot) City() string              { return e.city }
func (e EmployeeSnapshot) JoiningDate() *time.Time   { return copyTime(e.joiningDate) }
func (e EmployeeSnapshot) Role() string              { return e.role }
func (e EmployeeSnapshot) SignatureImageURL() string { return e.signatureImageURL }

type snapshotJSON struct {
	FullName          string     `json:"fullName"`
	EmployeeID        int        `json:"employeeId"`
	Email             string     `json:"email"`
	Department        string     `json:"department"`
	Branch            string     `json:"branch"`
	City              string     `json:"city"`
	JoiningDate       *time.Time `json:"joiningDate"`
	Role              string     `json:"role"`
	ProfileImageURL   string     `json:"profileImageUrl,omitempty"`
	SignatureImageURL string     `json:"signatureImageUrl,omitempty"`
}

func (e EmployeeSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		FullName:          e.fullName,
		EmployeeID:        e.employeeID,
		Email:             e.email,
		Department:        e.department,
		Branch:            e.branch,
		City:              e.city,
		JoiningDate:       e.joiningDate,
		Role:              e.role,
		ProfileImageURL:   e.profileImageURL,
		SignatureImageURL: e.signatureImageURL,
	})
}

func (e *EmployeeSnapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = EmployeeSnapshot{
		fullName:          raw.FullName,
		employeeID:        raw.EmployeeID,
		email:             raw.Email,
		department:        raw.Department,
		branch:            raw.Branch,
		city:              raw.City,
		joiningDate:       raw.JoiningDate,
		role:              raw.Role,
		profileImageURL:   raw.ProfileImageURL,
		signatureImageURL: raw.SignatureImageURL,
	}
	return nil
}

type BackupStaff struct {
	Name string `json:"name"`
}

type TeamLeadReview struct {
	Remarks    string       `json:"remarks"`
	Status     ReviewStatus `json:"status"`
	ReviewedAt *time.Time   `json:"reviewedAt"`
	Reviewer   *string      `json:"reviewer"`
}

// setStatus stamps or clears the reviewer fields to match the new status.
func (t *TeamLeadReview) setStatus(status ReviewStatus, actorID string, now time.Time) {
	t.Status = status
	if status == ReviewPending {
		t.ReviewedAt = nil
		t.Reviewer = nil
		return
	}
	t.ReviewedAt = &now
	t.Reviewer = &actorID
}

type AllowanceSnapshot struct {
	Allowed   float64 `json:"allowed"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

type HRSection struct {
	ReceivedBy       string             `json:"receivedBy"`
	ReceivedAt       *time.Time         `json:"receivedAt"`
	EmploymentStatus *string            `json:"employmentStatus"`
	DecisionForForm  string             `json:"decisionForForm"`
	Remarks          string             `json:"remarks,omitempty"`
	AnnualAllowance  *AllowanceSnapshot `json:"annualAllowance,omitempty"`
}

type StatusEntry struct {
	Status    Status    `json:"status"`
	Remark    string    `json:"remark"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
}

// Allowance is the effective yearly budget for one user.
type Allowance struct {
	Allowed    float64 `json:"allowed"`
	Used       float64 `json:"used"`
	Remaining  float64 `json:"remaining"`
	ActualUsed float64 `json:"actualUsed"`
}

// Override is an administrative correction for a user-year. Nil fields were never set.
type Override struct {
	UserID    string    `json:"userId"`
	Year      int       `json:"year"`
	Allowed   *float64  `json:"allowed"`
	Used      *float64  `json:"used"`
	Remaining *float64  `json:"remaining"`
	UpdatedBy *string   `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int       `json:"version"`
}

type Request struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user"`
	Employee           EmployeeSnapshot `json:"employeeSnapshot"`
	EmployerName       string           `json:"employerName"`
	Designation        string           `json:"designation"`
	ContactNumber      string           `json:"contactNumber"`
	Category           Category         `json:"leaveCategory"`
	FromDate           time.Time        `json:"fromDate"`
	ToDate             time.Time        `json:"toDate"`
	Duration           Duration         `json:"-"`
	Reason             string           `json:"leaveReason"`
	ApplicantSignedAt  *time.Time       `json:"applicantSignedAt"`
	TasksDuringAbsence string           `json:"tasksDuringAbsence"`
	TeamLeadAssignee   *string          `json:"teamLeadAssignee"`
	BackupStaff        BackupStaff      `json:"backupStaff"`
	TeamLead           TeamLeadReview   `json:"teamLead"`
	HR                 HRSection        `json:"hrSection"`
	Attachments        []string         `json:"attachments"`
	Status             Status           `json:"status"`
	StatusHistory      []StatusEntry    `json:"statusHistory"`
	CreatedBy          string           `json:"createdBy"`
	UpdatedBy          *string          `json:"updatedBy"`
	ReviewedBy         *string          `json:"reviewedBy"`
	Version            int              `json:"version"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	AnnualAllowance    *Allowance       `json:"annualAllowance,omitempty"`
}

func (r Request) Kind() Kind {
	if r.Duration == nil {
		return KindFull
	}
	return r.Duration.Kind()
}

// Days is the day-equivalent charged against the annual allowance.
func (r Request) Days() float64 {
	if r.Duration == nil {
		return 1
	}
	return r.Duration.Days()
}

func (r Request) Year() int {
	return r.FromDate.UTC().Year()
}

func (r Request) AssignedTo(userID string) bool {
	return r.TeamLeadAssignee != nil && *r.TeamLeadAssignee == userID
}

type requestAlias Request

func (r Request) MarshalJSON() ([]byte, error) {
	days, hours, window, session := durationColumns(r.Duration)
	if r.Duration == nil {
		days = 1
	}
	return json.Marshal(struct {
		requestAlias
		LeaveType        Kind     `json:"leaveType"`
		DurationDays     float64  `json:"durationDays"`
		DurationHours    *float64 `json:"durationHours"`
		ShortLeaveWindow *Window  `json:"shortLeaveWindow"`
		HalfDaySession   *Session `json:"halfDaySession"`
	}{
		requestAlias:     requestAlias(r),
		LeaveType:        r.Kind(),
		DurationDays:     days,
		DurationHours:    hours,
		ShortLeaveWindow: window,
		HalfDaySession:   session,
	})
}

type ListFilter struct {
	Status           Status
	TeamLeadStatus   ReviewStatus
	UserID           string
	TeamLeadAssignee string
	Limit            int
	Offset           int
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
