package leave

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Optional tells an explicit JSON null apart from an absent field.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

type BackupStaffInput struct {
	Name *string `json:"name"`
}

type TeamLeadInput struct {
	Remarks    *string          `json:"remarks"`
	Status     *string          `json:"status"`
	ReviewedAt Optional[string] `json:"reviewedAt"`
	Reviewer   *string          `json:"reviewer"`
}

type AllowanceSnapshotInput struct {
	Allowed   *float64 `json:"allowed"`
	Used      *float64 `json:"used"`
	Remaining *float64 `json:"remaining"`
}

type HRSectionInput struct {
	ReceivedBy       *string                 `json:"receivedBy"`
	ReceivedAt       Optional[string]        `json:"receivedAt"`
	EmploymentStatus Optional[string]        `json:"employmentStatus"`
	DecisionForForm  *string                 `json:"decisionForForm"`
	Remarks          *string                 `json:"remarks"`
	AnnualAllowance  *AllowanceSnapshotInput `json:"annualAllowance"`
}

type ApplyInput struct {
	UserID             string            `json:"userId"`
	EmployerName       string            `json:"employerName"`
	Designation        string            `json:"designation"`
	ContactNumber      string            `json:"contactNumber"`
	LeaveType          string            `json:"leaveType"`
	LeaveCategory      string            `json:"leaveCategory"`
	FromDate           string            `json:"fromDate"`
	ToDate             string            `json:"toDate"`
	DurationDays       *float64          `json:"durationDays"`
	DurationHours      *float64          `json:"durationHours"`
	LeaveReason        string            `json:"leaveReason"`
	ShortLeaveWindow   *Window           `json:"shortLeaveWindow"`
	HalfDaySession     string            `json:"halfDaySession"`
	TasksDuringAbsence string            `json:"tasksDuringAbsence"`
	BackupStaff        *BackupStaffInput `json:"backupStaff"`
	BackupStaffName    *string           `json:"backupStaffName"`
	TeamLead           *TeamLeadInput    `json:"teamLead"`
	TeamLeadRemarks    *string           `json:"teamLeadRemarks"`
	TeamLeadID         string            `json:"teamLeadId"`
	Attachments        []string          `json:"attachments"`
	StatusRemark       string            `json:"statusRemark"`
	HRSection          *HRSectionInput   `json:"hrSection"`
}

type ListQuery struct {
	Status         string
	TeamLeadStatus string
	UserID         string
	Scope          string
	Limit          int
	Offset         int
}

const ScopeTeamLead = "team_lead"

type StatusInput struct {
	Status  string `json:"status"`
	Remark  string `json:"remark"`
	Version *int   `json:"version"`
}

// EditInput is the administrative edit. Nil or unset fields are left untouched.
type EditInput struct {
	EmployerName       *string           `json:"employerName"`
	Designation        *string           `json:"designation"`
	ContactNumber      *string           `json:"contactNumber"`
	TasksDuringAbsence *string           `json:"tasksDuringAbsence"`
	ApplicantSignedAt  Optional[string]  `json:"applicantSignedAt"`
	BackupStaff        *BackupStaffInput `json:"backupStaff"`
	TeamLead           *TeamLeadInput    `json:"teamLead"`
	TeamLeadAssignee   Optional[string]  `json:"teamLeadAssignee"`
	Attachments        *[]string         `json:"attachments"`
	HRSection          *HRSectionInput   `json:"hrSection"`
	Version            *int              `json:"version"`
}

// TeamLeadEditInput is what the assigned team lead may change.
type TeamLeadEditInput struct {
	TasksDuringAbsence *string           `json:"tasksDuringAbsence"`
	BackupStaff        *BackupStaffInput `json:"backupStaff"`
	TeamLead           *TeamLeadInput    `json:"teamLead"`
	Version            *int              `json:"version"`
}

type AllowanceInput struct {
	UserID    string   `json:"userId"`
	Year      int      `json:"year"`
	Allowed   *float64 `json:"allowed"`
	Remaining *float64 `json:"remaining"`
	Version   *int     `json:"version"`
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// optionalDate mirrors a lenient date field: null or unparseable clears it.
func optionalDate(o Optional[string]) *time.Time {
	if o.Value == nil {
		return nil
	}
	t, ok := parseDate(*o.Value)
	if !ok {
		return nil
	}
	return &t
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
