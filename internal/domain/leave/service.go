package leave

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
)

const (
	EventLeaveNew    = "leave:new"
	EventLeaveStatus = "leave:status"
)

// Directory is the read-only view of user profiles the workflow consults.
type Directory interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// Notifier delivers fire-and-forget events to a user. Implementations must
// not block the caller and never report failures.
type Notifier interface {
	Notify(ctx context.Context, userID, event, title, body string, payload any)
}

type Service struct {
	store    StoreAPI
	users    Directory
	notifier Notifier
	calc     *Calculator
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

func NewService(store StoreAPI, directory Directory, notifier Notifier) *Service {
	return &Service{
		store:    store,
		users:    directory,
		notifier: notifier,
		calc:     NewCalculator(store),
		tracer:   otel.Tracer("hrportal/internal/domain/leave"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Calculator exposes the allowance calculator backed by the service store.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// Apply validates and stores a new leave request in pending status.
func (s *Service) Apply(ctx context.Context, actor auth.UserContext, in ApplyInput) (Request, error) {
	if strings.TrimSpace(in.LeaveType) == "" || strings.TrimSpace(in.LeaveCategory) == "" ||
		strings.TrimSpace(in.FromDate) == "" || strings.TrimSpace(in.ToDate) == "" || strings.TrimSpace(in.LeaveReason) == "" {
		return Request{}, apperror.Validation("leaveType, leaveCategory, fromDate, toDate, and leaveReason are required")
	}

	targetID := actor.UserID
	if in.UserID != "" && in.UserID != actor.UserID {
		if !actor.IsAdmin() {
			return Request{}, apperror.Forbidden("You do not have permission to apply leave for another user")
		}
		targetID = in.UserID
	}
	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		return Request{}, err
	}

	var assignee *string
	if teamLeadID := strings.TrimSpace(in.TeamLeadID); teamLeadID != "" {
		id, err := s.availableTeamLead(ctx, teamLeadID, "Invalid team lead selected", "Selected team lead is not available")
		if err != nil {
			return Request{}, err
		}
		assignee = &id
	} else if actor.RoleName == auth.RoleEmployee {
		return Request{}, apperror.Validation("Team lead selection is required")
	}

	from, okFrom := parseDate(in.FromDate)
	to, okTo := parseDate(in.ToDate)
	if !okFrom || !okTo {
		return Request{}, apperror.Validation("Invalid fromDate or toDate")
	}
	from, to = dayOnly(from), dayOnly(to)
	if to.Before(from) {
		return Request{}, apperror.Validation("toDate cannot be earlier than fromDate")
	}

	duration, err := ResolveDuration(DurationInput{
		Kind:           Kind(strings.TrimSpace(in.LeaveType)),
		From:           from,
		To:             to,
		DurationDays:   in.DurationDays,
		DurationHours:  in.DurationHours,
		Window:         in.ShortLeaveWindow,
		HalfDaySession: in.HalfDaySession,
	})
	if err != nil {
		return Request{}, err
	}
	category := Category(strings.TrimSpace(in.LeaveCategory))
	if !category.Valid() {
		return Request{}, apperror.Validation("Invalid leaveCategory")
	}

	tasks := strings.TrimSpace(in.TasksDuringAbsence)
	backupName := ""
	if in.BackupStaff != nil && in.BackupStaff.Name != nil {
		backupName = trimmed(in.BackupStaff.Name)
	} else {
		backupName = trimmed(in.BackupStaffName)
	}
	if actor.RoleName == auth.RoleEmployee {
		if tasks == "" {
			return Request{}, apperror.Validation("Tasks during absence are required")
		}
		if backupName == "" {
			return Request{}, apperror.Validation("Primary backup colleague is required")
		}
	}

	now := s.now()
	review := TeamLeadReview{Status: ReviewPending}
	if in.TeamLead != nil && actor.IsAdmin() {
		if in.TeamLead.Remarks != nil {
			review.Remarks = trimmed(in.TeamLead.Remarks)
		} else {
			review.Remarks = trimmed(in.TeamLeadRemarks)
		}
		if in.TeamLead.Status != nil {
			if status := ReviewStatus(*in.TeamLead.Status); status.Valid() {
				review.setStatus(status, actor.UserID, now)
			}
		}
	}

	remark := strings.TrimSpace(in.StatusRemark)
	if remark == "" {
		remark = "Leave request created"
	}
	attachments := make([]string, 0, len(in.Attachments))
	attachments = append(attachments, in.Attachments...)

	req := Request{
		ID:                 s.newID(),
		UserID:             target.ID,
		Employee:           NewEmployeeSnapshot(target),
		EmployerName:       strings.TrimSpace(in.EmployerName),
		Designation:        strings.TrimSpace(in.Designation),
		ContactNumber:      strings.TrimSpace(in.ContactNumber),
		Category:           category,
		FromDate:           from,
		ToDate:             to,
		Duration:           duration,
		Reason:             in.LeaveReason,
		ApplicantSignedAt:  &now,
		TasksDuringAbsence: tasks,
		TeamLeadAssignee:   assignee,
		BackupStaff:        BackupStaff{Name: backupName},
		TeamLead:           review,
		HR:                 HRSection{DecisionForForm: DecisionNotApplicable},
		Attachments:        attachments,
		Status:             StatusPending,
		StatusHistory: []StatusEntry{{
			Status:    StatusPending,
			Remark:    remark,
			ChangedBy: actor.UserID,
			ChangedAt: now,
		}},
		CreatedBy: actor.UserID,
	}
	if in.HRSection != nil && actor.IsAdmin() {
		if err := applyHRSection(&req.HR, in.HRSection); err != nil {
			return Request{}, err
		}
	}

	saved, err := s.store.Create(ctx, req)
	if err != nil {
		return Request{}, err
	}

	if saved.TeamLeadAssignee != nil {
		s.notifier.Notify(ctx, *saved.TeamLeadAssignee, EventLeaveNew,
			"New leave request",
			saved.Employee.FullName()+" submitted a leave request for review.",
			newLeavePayload(saved))
	}
	return saved, nil
}

// NewLeaveEvent is the payload pushed to the assigned team lead.
type NewLeaveEvent struct {
	LeaveID          string       `json:"leaveId"`
	EmployeeName     string       `json:"employeeName"`
	LeaveType        Kind         `json:"leaveType"`
	LeaveCategory    Category     `json:"leaveCategory"`
	FromDate         time.Time    `json:"fromDate"`
	ToDate           time.Time    `json:"toDate"`
	SubmittedAt      time.Time    `json:"submittedAt"`
	TeamLeadStatus   ReviewStatus `json:"teamLeadStatus"`
	TeamLeadAssignee string       `json:"teamLeadAssignee"`
}

func newLeavePayload(r Request) NewLeaveEvent {
	status := r.TeamLead.Status
	if status == "" {
		status = ReviewPending
	}
	assignee := ""
	if r.TeamLeadAssignee != nil {
		assignee = *r.TeamLeadAssignee
	}
	return NewLeaveEvent{
		LeaveID:          r.ID,
		EmployeeName:     r.Employee.FullName(),
		LeaveType:        r.Kind(),
		LeaveCategory:    r.Category,
		FromDate:         r.FromDate,
		ToDate:           r.ToDate,
		SubmittedAt:      r.CreatedAt,
		TeamLeadStatus:   status,
		TeamLeadAssignee: assignee,
	}
}

// availableTeamLead checks that id names an approved team lead.
func (s *Service) availableTeamLead(ctx context.Context, id, invalidMsg, unavailableMsg string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", apperror.Validation(invalidMsg)
	}
	lead, err := s.users.Get(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return "", apperror.Validation(unavailableMsg)
	}
	if err != nil {
		return "", err
	}
	if !lead.CanLeadTeam() {
		return "", apperror.Validation(unavailableMsg)
	}
	return lead.ID, nil
}

func (s *Service) List(ctx context.Context, actor auth.UserContext, q ListQuery) ([]Request, error) {
	filter := ListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status := Status(q.Status)
		if !status.Valid() {
			return nil, apperror.Validation("Invalid status value")
		}
		filter.Status = status
	}
	if q.TeamLeadStatus != "" {
		review := ReviewStatus(q.TeamLeadStatus)
		if !review.Valid() {
			return nil, apperror.Validation("Invalid team lead status value")
		}
		filter.TeamLeadStatus = review
	}

	switch {
	case q.Scope == ScopeTeamLead:
		if !s.isTeamLead(ctx, actor.UserID) {
			return nil, ErrForbidden
		}
		filter.TeamLeadAssignee = actor.UserID
	case actor.RoleName == auth.RoleEmployee:
		filter.UserID = actor.UserID
	case q.UserID != "":
		filter.UserID = q.UserID
	}

	leaves, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	cache := NewAllowanceCache()
	for i := range leaves {
		from := leaves[i].FromDate
		allowance, err := s.calc.Annual(ctx, leaves[i].UserID, &from, cache)
		if err != nil {
			return nil, err
		}
		leaves[i].AnnualAllowance = &allowance
	}
	return leaves, nil
}

func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Request, error) {
	leave, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if actor.RoleName == auth.RoleEmployee && leave.UserID != actor.UserID {
		if !leave.AssignedTo(actor.UserID) || !s.isTeamLead(ctx, actor.UserID) {
			return Request{}, ErrForbidden
		}
	}
	from := leave.FromDate
	allowance, err := s.calc.Annual(ctx, leave.UserID, &from, NewAllowanceCache())
	if err != nil {
		return Request{}, err
	}
	leave.AnnualAllowance = &allowance
	return leave, nil
}

func (s *Service) isTeamLead(ctx context.Context, userID string) bool {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			slog.Warn("team lead lookup failed", "userId", userID, "err", err)
		}
		return false
	}
	return u.IsTeamLead
}

// UpdateStatus moves the main status and enforces the annual cap when
// accepting. The override and the leave are written together.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.UserContext, id string, in StatusInput) (Request, error) {
	ctx, span := s.tracer.Start(ctx, "leave.UpdateStatus", trace.WithAttributes(
		attribute.String("leave.id", id),
		attribute.String("leave.status", in.Status),
	))
	defer span.End()

	status := Status(in.Status)
	if !status.Valid() {
		return Request{}, apperror.Validation("Invalid status")
	}
	leave, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if in.Version != nil && *in.Version != leave.Version {
		return Request{}, ErrVersionConflict
	}

	year := leave.Year()
	otherAccepted, err := s.store.AcceptedDays(ctx, leave.UserID, year, leave.ID)
	if err != nil {
		return Request{}, err
	}
	override, err := s.store.GetOverride(ctx, leave.UserID, year)
	if err != nil {
		return Request{}, err
	}

	decision := DecideStatus(leave, status, otherAccepted, override)
	if decision.LimitExceeded {
		span.SetAttributes(attribute.Bool("leave.limit_exceeded", true))
		return Request{}, AllowanceExceededError(decision.RemainingAtCap)
	}

	var write *OverrideWrite
	if decision.WriteOverride {
		expected := 0
		if override != nil {
			expected = override.Version
		}
		write = &OverrideWrite{
			UserID:          leave.UserID,
			Year:            year,
			Allowed:         decision.Snapshot.Allowed,
			Used:            decision.Snapshot.Used,
			Remaining:       decision.Snapshot.Remaining,
			UpdatedBy:       actor.UserID,
			ExpectedVersion: &expected,
		}
	}

	snapshot := decision.Snapshot
	leave.HR.AnnualAllowance = &snapshot
	leave.Status = status
	leave.StatusHistory = append(leave.StatusHistory, StatusEntry{
		Status:    status,
		Remark:    strings.TrimSpace(in.Remark),
		ChangedBy: actor.UserID,
		ChangedAt: s.now(),
	})
	actorID := actor.UserID
	leave.UpdatedBy = &actorID
	leave.ReviewedBy = &actorID

	saved, err := s.store.SaveStatus(ctx, leave, leave.Version, write)
	if err != nil {
		return Request{}, err
	}

	s.notifier.Notify(ctx, saved.UserID, EventLeaveStatus,
		"Leave request "+strings.ReplaceAll(string(status), "_", " "),
		"Your leave request status is now "+string(status)+".",
		map[string]any{"leaveId": saved.ID, "status": saved.Status, "remark": strings.TrimSpace(in.Remark)})
	return saved, nil
}
