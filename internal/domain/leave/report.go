package leave

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
)

type ReportUser struct {
	ID                string     `json:"id"`
	FullName          string     `json:"fullName"`
	EmployeeID        int        `json:"employeeId"`
	Department        string     `json:"department"`
	Branch            string     `json:"branch"`
	City              string     `json:"city"`
	JoiningDate       *time.Time `json:"joiningDate"`
	SignatureImageURL *string    `json:"signatureImageUrl"`
}

func newReportUser(u users.User) ReportUser {
	out := ReportUser{
		ID:          u.ID,
		FullName:    u.FullName,
		EmployeeID:  u.EmployeeID,
		Department:  u.Department,
		Branch:      u.Branch,
		City:        u.City,
		JoiningDate: u.JoiningDate,
	}
	if u.SignatureImageURL != "" {
		url := u.SignatureImageURL
		out.SignatureImageURL = &url
	}
	return out
}

type MonthlyEntry struct {
	ID                 string         `json:"id"`
	Status             Status         `json:"status"`
	LeaveType          Kind           `json:"leaveType"`
	LeaveCategory      Category       `json:"leaveCategory"`
	FromDate           time.Time      `json:"fromDate"`
	ToDate             time.Time      `json:"toDate"`
	DurationDays       float64        `json:"durationDays"`
	DurationHours      *float64       `json:"durationHours"`
	Reason             string         `json:"reason"`
	EmployerName       string         `json:"employerName"`
	Designation        string         `json:"designation"`
	ContactNumber      string         `json:"contactNumber"`
	TasksDuringAbsence string         `json:"tasksDuringAbsence"`
	BackupStaff        BackupStaff    `json:"backupStaff"`
	TeamLead           TeamLeadReview `json:"teamLead"`
	ApplicantSignedAt  *time.Time     `json:"applicantSignedAt"`
	HRSection          HRSection      `json:"hrSection"`
	CreatedAt          time.Time      `json:"createdAt"`
	HRDecision         *string        `json:"hrDecision"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Period struct {
	Year  int       `json:"year"`
	Month int       `json:"month"`
	Range DateRange `json:"range"`
}

type MonthlyTotals struct {
	Requested float64 `json:"requested"`
	Approved  float64 `json:"approved"`
	Remaining float64 `json:"remaining"`
}

type MonthlyReport struct {
	User      ReportUser     `json:"user"`
	Period    Period         `json:"period"`
	Allowance Allowance      `json:"allowance"`
	Totals    MonthlyTotals  `json:"totals"`
	Entries   []MonthlyEntry `json:"entries"`
}

type MonthBucket struct {
	Month     int     `json:"month"`
	Requested float64 `json:"requested"`
	Approved  float64 `json:"approved"`
}

type YearlyTotals struct {
	Requested float64 `json:"requested"`
	Approved  float64 `json:"approved"`
	Allowed   float64 `json:"allowed"`
	Remaining float64 `json:"remaining"`
}

type YearlyReport struct {
	User   ReportUser    `json:"user"`
	Year   int           `json:"year"`
	Months []MonthBucket `json:"months"`
	Totals YearlyTotals  `json:"totals"`
}

// resolveTarget pins employees to themselves and lets other roles pick a user.
func (s *Service) resolveTarget(ctx context.Context, actor auth.UserContext, explicit string) (users.User, error) {
	targetID := strings.TrimSpace(explicit)
	if actor.RoleName == auth.RoleEmployee || targetID == "" {
		targetID = actor.UserID
	}
	return s.users.Get(ctx, targetID)
}

func monthRange(yearStr, monthStr string) (time.Time, time.Time, int, int, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		return time.Time{}, time.Time{}, 0, 0, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthStr))
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, time.Time{}, 0, 0, false
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), year, month, true
}

func (s *Service) MonthlyReport(ctx context.Context, actor auth.UserContext, userID, yearStr, monthStr string) (MonthlyReport, error) {
	ctx, span := s.tracer.Start(ctx, "leave.MonthlyReport")
	defer span.End()

	if strings.TrimSpace(yearStr) == "" || strings.TrimSpace(monthStr) == "" {
		return MonthlyReport{}, apperror.Validation("year and month are required")
	}
	target, err := s.resolveTarget(ctx, actor, userID)
	if err != nil {
		return MonthlyReport{}, err
	}
	start, end, year, month, ok := monthRange(yearStr, monthStr)
	if !ok {
		return MonthlyReport{}, apperror.Validation("Invalid year/month")
	}
	span.SetAttributes(attribute.Int("report.year", year), attribute.Int("report.month", month))

	leaves, err := s.store.ListInRange(ctx, target.ID, start, end)
	if err != nil {
		return MonthlyReport{}, err
	}
	allowance, err := s.calc.Annual(ctx, target.ID, &start, NewAllowanceCache())
	if err != nil {
		return MonthlyReport{}, err
	}

	requested, approved := decimal.Zero, decimal.Zero
	entries := make([]MonthlyEntry, 0, len(leaves))
	for _, l := range leaves {
		days := decimal.NewFromFloat(l.Days())
		requested = requested.Add(days)
		if l.Status == StatusAccepted {
			approved = approved.Add(days)
		}
		entries = append(entries, newMonthlyEntry(l))
	}

	return MonthlyReport{
		User: newReportUser(target),
		Period: Period{
			Year:  year,
			Month: month,
			Range: DateRange{
				Start: start.Format("2006-01-02T15:04:05.000Z"),
				End:   end.Format("2006-01-02T15:04:05.000Z"),
			},
		},
		Allowance: allowance,
		Totals: MonthlyTotals{
			Requested: requested.InexactFloat64(),
			Approved:  approved.InexactFloat64(),
			Remaining: allowance.Remaining,
		},
		Entries: entries,
	}, nil
}

func newMonthlyEntry(l Request) MonthlyEntry {
	days, hours, _, _ := durationColumns(l.Duration)
	var decision *string
	if l.HR.DecisionForForm != "" {
		value := l.HR.DecisionForForm
		decision = &value
	}
	return MonthlyEntry{
		ID:                 l.ID,
		Status:             l.Status,
		LeaveType:          l.Kind(),
		LeaveCategory:      l.Category,
		FromDate:           l.FromDate,
		ToDate:             l.ToDate,
		DurationDays:       days,
		DurationHours:      hours,
		Reason:             l.Reason,
		EmployerName:       l.EmployerName,
		Designation:        l.Designation,
		ContactNumber:      l.ContactNumber,
		TasksDuringAbsence: l.TasksDuringAbsence,
		BackupStaff:        l.BackupStaff,
		TeamLead:           l.TeamLead,
		ApplicantSignedAt:  l.ApplicantSignedAt,
		HRSection:          l.HR,
		CreatedAt:          l.CreatedAt,
		HRDecision:         decision,
	}
}

func (s *Service) YearlyReport(ctx context.Context, actor auth.UserContext, userID, yearStr string) (YearlyReport, error) {
	ctx, span := s.tracer.Start(ctx, "leave.YearlyReport")
	defer span.End()

	if strings.TrimSpace(yearStr) == "" {
		return YearlyReport{}, apperror.Validation("year is required")
	}
	target, err := s.resolveTarget(ctx, actor, userID)
	if err != nil {
		return YearlyReport{}, err
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearStr))
	if err != nil {
		return YearlyReport{}, apperror.Validation("Invalid year")
	}
	span.SetAttributes(attribute.Int("report.year", year))

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	leaves, err := s.store.ListInRange(ctx, target.ID, start, start.AddDate(1, 0, 0))
	if err != nil {
		return YearlyReport{}, err
	}

	requested := make([]decimal.Decimal, 12)
	approved := make([]decimal.Decimal, 12)
	totalRequested, totalApproved := decimal.Zero, decimal.Zero
	for _, l := range leaves {
		days := decimal.NewFromFloat(l.Days())
		m := int(l.FromDate.UTC().Month()) - 1
		requested[m] = requested[m].Add(days)
		totalRequested = totalRequested.Add(days)
		if l.Status == StatusAccepted {
			approved[m] = approved[m].Add(days)
			totalApproved = totalApproved.Add(days)
		}
	}
	months := make([]MonthBucket, 12)
	for i := range months {
		months[i] = MonthBucket{
			Month:     i + 1,
			Requested: requested[i].InexactFloat64(),
			Approved:  approved[i].InexactFloat64(),
		}
	}

	override, err := s.store.GetOverride(ctx, target.ID, year)
	if err != nil {
		return YearlyReport{}, err
	}
	allowed, remaining := yearlyBudget(totalApproved, override)

	return YearlyReport{
		User:   newReportUser(target),
		Year:   year,
		Months: months,
		Totals: YearlyTotals{
			Requested: totalRequested.InexactFloat64(),
			Approved:  totalApproved.InexactFloat64(),
			Allowed:   allowed,
			Remaining: remaining,
		},
	}, nil
}

// yearlyBudget reads remaining straight from the override when one exists,
// otherwise from the approved total.
func yearlyBudget(approved decimal.Decimal, override *Override) (float64, float64) {
	allowed := decimal.NewFromFloat(StandardAllowance)
	remaining := decimal.Max(allowed.Sub(approved), decimal.Zero)
	if override != nil {
		if override.Allowed != nil {
			allowed = decimal.NewFromFloat(*override.Allowed)
		}
		switch {
		case override.Remaining != nil:
			remaining = decimal.Max(decimal.NewFromFloat(*override.Remaining), decimal.Zero)
		case override.Used != nil:
			remaining = decimal.Max(allowed.Sub(decimal.NewFromFloat(*override.Used)), decimal.Zero)
		}
	}
	return allowed.InexactFloat64(), remaining.InexactFloat64()
}
