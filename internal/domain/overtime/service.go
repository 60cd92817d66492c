package overtime

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hrportal/internal/domain/auth"
)

const EventVerified = "overtime:verified"

// Notifier delivers fire-and-forget events to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, event, title, body string, payload any)
}

type Service struct {
	store    StoreAPI
	notifier Notifier
	newID    func() string
}

func NewService(store StoreAPI, notifier Notifier) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		newID:    uuid.NewString,
	}
}

// Create files a claim. Employees always claim for themselves; admin roles
// may name another instructor and override the salary snapshot.
func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (Claim, error) {
	targetID := actor.UserID
	if actor.IsAdmin() && strings.TrimSpace(in.UserID) != "" {
		targetID = strings.TrimSpace(in.UserID)
	}
	instructor, err := s.store.Instructor(ctx, targetID)
	if err != nil {
		return Claim{}, err
	}

	day, ok := parseDay(in.Date)
	if !ok {
		return Claim{}, ErrInvalidDate
	}
	slots, err := buildSlots(day, in.OvertimeSlots)
	if err != nil {
		return Claim{}, err
	}

	branch := strings.TrimSpace(instructor.Branch)
	if in.BranchName != nil {
		branch = strings.TrimSpace(*in.BranchName)
	}
	if branch == "" {
		return Claim{}, ErrBranchRequired
	}
	name := strings.TrimSpace(instructor.FullName)
	if name == "" {
		return Claim{}, ErrMissingProfile
	}
	if instructor.Salary == nil {
		return Claim{}, ErrMissingSalary
	}
	designation := strings.TrimSpace(instructor.Designation)
	if designation == "" {
		return Claim{}, ErrMissingTitle
	}

	salary := *instructor.Salary
	if actor.IsAdmin() && in.Salary != nil {
		if in.Salary.IsNegative() {
			return Claim{}, ErrNegativeSalary
		}
		salary = *in.Salary
	}

	claim := Claim{
		ID:             s.newID(),
		InstructorID:   instructor.ID,
		InstructorName: name,
		Date:           day,
		Designation:    designation,
		BranchName:     branch,
		Salary:         salary,
	}
	if in.Notes != nil {
		claim.Notes = strings.TrimSpace(*in.Notes)
	}
	claim.setSlots(slots)
	return s.store.Create(ctx, claim)
}

func (s *Service) List(ctx context.Context, actor auth.UserContext, q ListQuery) ([]Claim, error) {
	var filter ListFilter
	if !actor.IsAdmin() {
		filter.InstructorID = actor.UserID
	} else if _, err := uuid.Parse(strings.TrimSpace(q.UserID)); err == nil {
		filter.InstructorID = strings.TrimSpace(q.UserID)
	}
	if strings.TrimSpace(q.Date) != "" {
		day, ok := parseDay(q.Date)
		if !ok {
			return nil, ErrInvalidDateFilter
		}
		filter.Day = &day
	}
	filter.Verified = parseVerified(q.Verified)
	return s.store.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Claim, error) {
	claim, err := s.store.Get(ctx, id)
	if err != nil {
		return Claim{}, err
	}
	if !actor.IsAdmin() && claim.InstructorID != actor.UserID {
		return Claim{}, ErrForbidden
	}
	return claim, nil
}

// Update patches a claim and refreshes the profile snapshot. An update that
// changes nothing returns the claim as stored.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (Claim, error) {
	claim, err := s.Get(ctx, actor, id)
	if err != nil {
		return Claim{}, err
	}
	wasVerified := claim.Verified
	changed := false

	if in.Date != nil && strings.TrimSpace(*in.Date) != "" {
		day, ok := parseDay(*in.Date)
		if !ok {
			return Claim{}, ErrInvalidDate
		}
		claim.Date = day
		if in.OvertimeSlots == nil {
			claim.setSlots(moveSlots(day, claim.Slots))
		}
		changed = true
	}
	if in.OvertimeSlots != nil {
		slots, err := buildSlots(claim.Date, in.OvertimeSlots)
		if err != nil {
			return Claim{}, err
		}
		claim.setSlots(slots)
		changed = true
	}
	branchSet := false
	if in.BranchName != nil {
		branch := strings.TrimSpace(*in.BranchName)
		if branch == "" {
			return Claim{}, ErrBranchRequired
		}
		claim.BranchName = branch
		branchSet = true
		changed = true
	}
	if in.Notes != nil {
		claim.Notes = strings.TrimSpace(*in.Notes)
		changed = true
	}
	if in.Salary != nil {
		if !actor.IsAdmin() {
			return Claim{}, ErrAdminOnlySalary
		}
		if in.Salary.IsNegative() {
			return Claim{}, ErrNegativeSalary
		}
		claim.Salary = *in.Salary
		changed = true
	}
	if in.Verified != nil {
		if !actor.IsAdmin() {
			return Claim{}, ErrAdminOnlyVerify
		}
		claim.Verified = *in.Verified
		changed = true
	}
	if !changed {
		return claim, nil
	}

	if instructor, err := s.store.Instructor(ctx, claim.InstructorID); err == nil {
		if name := strings.TrimSpace(instructor.FullName); name != "" {
			claim.InstructorName = name
		}
		if designation := strings.TrimSpace(instructor.Designation); designation != "" {
			claim.Designation = designation
		}
		if branch := strings.TrimSpace(instructor.Branch); branch != "" && !branchSet {
			claim.BranchName = branch
		}
	}

	saved, err := s.store.Save(ctx, claim)
	if err != nil {
		return Claim{}, err
	}
	if saved.Verified && !wasVerified && s.notifier != nil {
		s.notifier.Notify(ctx, saved.InstructorID, EventVerified, "Overtime verified",
			"Your overtime claim for "+saved.Date.Format(dayLayout)+" was verified.",
			map[string]any{"id": saved.ID, "date": saved.Date.Format(dayLayout), "totalMinutes": saved.TotalMinutes})
	}
	return saved, nil
}

// Delete removes a claim. Verified claims are reserved for admin roles.
func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) (Claim, error) {
	claim, err := s.Get(ctx, actor, id)
	if err != nil {
		return Claim{}, err
	}
	if claim.Verified && !actor.IsAdmin() {
		return Claim{}, ErrVerifiedDelete
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return Claim{}, err
	}
	return claim, nil
}

// MonthlyReport groups a month's claims per instructor. When InstructorID is
// set the report also lists that instructor's claims with their payout.
func (s *Service) MonthlyReport(ctx context.Context, actor auth.UserContext, q ReportQuery) (MonthlyReport, error) {
	if !actor.IsAdmin() {
		return MonthlyReport{}, ErrAdminOnlyReport
	}
	year, errY := strconv.Atoi(strings.TrimSpace(q.Year))
	month, errM := strconv.Atoi(strings.TrimSpace(q.Month))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		return MonthlyReport{}, ErrInvalidYearMonth
	}
	selected := strings.TrimSpace(q.InstructorID)
	if selected != "" {
		if _, err := uuid.Parse(selected); err != nil {
			return MonthlyReport{}, ErrInvalidInstructor
		}
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	claims, err := s.store.ListPeriod(ctx, PeriodFilter{
		Start:        start,
		End:          start.AddDate(0, 1, 0),
		BranchPrefix: strings.TrimSpace(q.BranchName),
		Verified:     parseVerified(q.Verified),
	})
	if err != nil {
		return MonthlyReport{}, err
	}

	report := MonthlyReport{
		Period:      Period{Year: year, Month: month, Label: start.Format("January 2006")},
		Filters:     ReportFilters{BranchName: optional(q.BranchName), Verified: optional(q.Verified)},
		Instructors: summarise(claims),
	}
	for _, row := range report.Instructors {
		report.Totals.TotalClaims += row.TotalClaims
		report.Totals.TotalMinutes += row.TotalMinutes
		report.Totals.TotalVerifiedClaims += row.VerifiedClaims
	}
	report.Totals.UniqueInstructors = len(report.Instructors)
	report.Totals.TotalHours = minutesToHours(report.Totals.TotalMinutes)

	if selected != "" {
		report.SelectedInstructor = selectInstructor(selected, report.Instructors, claims)
	}
	return report, nil
}

// summarise groups claims per instructor, most claims first. Profile fields
// come from the latest claim.
func summarise(claims []Claim) []InstructorSummary {
	index := map[string]int{}
	out := []InstructorSummary{}
	for _, c := range claims {
		i, ok := index[c.InstructorID]
		if !ok {
			i = len(out)
			index[c.InstructorID] = i
			out = append(out, InstructorSummary{InstructorID: c.InstructorID})
		}
		row := &out[i]
		row.InstructorName = c.InstructorName
		row.Designation = c.Designation
		row.BranchName = c.BranchName
		row.TotalClaims++
		row.TotalMinutes += c.TotalMinutes
		if c.Verified {
			row.VerifiedClaims++
		}
		if row.LatestClaimDate == nil || c.Date.After(*row.LatestClaimDate) {
			latest := c.Date
			row.LatestClaimDate = &latest
		}
	}
	for i := range out {
		out[i].TotalHours = minutesToHours(out[i].TotalMinutes)
	}
	sortSummaries(out)
	return out
}

func selectInstructor(id string, rows []InstructorSummary, claims []Claim) *SelectedInstructor {
	selected := &SelectedInstructor{
		InstructorSummary: InstructorSummary{InstructorID: id, InstructorName: "Unknown", TotalHours: decimal.Zero},
		Claims:            []PayoutClaim{},
		Totals:            PayoutTotals{TotalSalary: decimal.Zero, TotalCalculatedPayout: decimal.Zero},
	}
	for _, row := range rows {
		if row.InstructorID == id {
			selected.InstructorSummary = row
		}
	}
	// newest first, as the claim list shows them
	for i := len(claims) - 1; i >= 0; i-- {
		c := claims[i]
		if c.InstructorID != id {
			continue
		}
		payout := Payout(c)
		selected.Claims = append(selected.Claims, PayoutClaim{Claim: c, CalculatedPayout: payout})
		selected.Totals.TotalSalary = selected.Totals.TotalSalary.Add(c.Salary)
		if c.Verified && payout != nil {
			selected.Totals.TotalCalculatedPayout = selected.Totals.TotalCalculatedPayout.Add(*payout)
		}
	}
	selected.Totals.TotalCalculatedPayout = selected.Totals.TotalCalculatedPayout.Round(2)
	return selected
}

func parseVerified(raw string) *bool {
	switch strings.TrimSpace(raw) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func optional(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

func sortSummaries(rows []InstructorSummary) {
	slices.SortStableFunc(rows, func(a, b InstructorSummary) int {
		if c := cmp.Compare(b.TotalClaims, a.TotalClaims); c != 0 {
			return c
		}
		return cmp.Compare(a.InstructorName, b.InstructorName)
	})
}
