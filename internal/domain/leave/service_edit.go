package leave

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
)

// Update is the administrative edit. It never changes the main status or the
// allowance override.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in EditInput) (Request, error) {
	leave, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if in.Version != nil && *in.Version != leave.Version {
		return Request{}, ErrVersionConflict
	}

	if in.EmployerName != nil {
		leave.EmployerName = trimmed(in.EmployerName)
	}
	if in.Designation != nil {
		leave.Designation = trimmed(in.Designation)
	}
	if in.ContactNumber != nil {
		leave.ContactNumber = trimmed(in.ContactNumber)
	}
	if in.TasksDuringAbsence != nil {
		leave.TasksDuringAbsence = trimmed(in.TasksDuringAbsence)
	}
	if in.ApplicantSignedAt.Set {
		leave.ApplicantSignedAt = optionalDate(in.ApplicantSignedAt)
	}
	if in.BackupStaff != nil && in.BackupStaff.Name != nil {
		leave.BackupStaff.Name = trimmed(in.BackupStaff.Name)
	}

	if in.TeamLeadAssignee.Set {
		if value := trimmed(in.TeamLeadAssignee.Value); value == "" {
			leave.TeamLeadAssignee = nil
		} else {
			lead, err := s.availableTeamLead(ctx, value, "Invalid team lead identifier", "Team lead not available")
			if err != nil {
				return Request{}, err
			}
			leave.TeamLeadAssignee = &lead
		}
	}

	if tl := in.TeamLead; tl != nil {
		if tl.Remarks != nil {
			leave.TeamLead.Remarks = trimmed(tl.Remarks)
		}
		if tl.Status != nil {
			status := ReviewStatus(*tl.Status)
			if !status.Valid() {
				return Request{}, apperror.Validation("Invalid team lead status")
			}
			leave.TeamLead.setStatus(status, actor.UserID, s.now())
		}
		if tl.ReviewedAt.Set {
			leave.TeamLead.ReviewedAt = optionalDate(tl.ReviewedAt)
		}
		if tl.Reviewer != nil {
			if reviewer, err := uuid.Parse(strings.TrimSpace(*tl.Reviewer)); err == nil {
				value := reviewer.String()
				leave.TeamLead.Reviewer = &value
			}
		}
	}

	if in.Attachments != nil {
		leave.Attachments = append([]string{}, (*in.Attachments)...)
	}
	if in.HRSection != nil {
		if err := applyHRSection(&leave.HR, in.HRSection); err != nil {
			return Request{}, err
		}
	}

	actorID := actor.UserID
	leave.UpdatedBy = &actorID
	return s.store.Save(ctx, leave, leave.Version)
}

// UpdateTeamLead lets the assigned team lead record their review and adjust
// the handover details.
func (s *Service) UpdateTeamLead(ctx context.Context, actor auth.UserContext, id string, in TeamLeadEditInput) (Request, error) {
	leave, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !s.isTeamLead(ctx, actor.UserID) {
		return Request{}, ErrForbidden
	}
	if !leave.AssignedTo(actor.UserID) {
		return Request{}, ErrNotAssigned
	}
	if in.Version != nil && *in.Version != leave.Version {
		return Request{}, ErrVersionConflict
	}

	if in.TasksDuringAbsence != nil {
		leave.TasksDuringAbsence = trimmed(in.TasksDuringAbsence)
	}
	if in.BackupStaff != nil && in.BackupStaff.Name != nil {
		leave.BackupStaff.Name = trimmed(in.BackupStaff.Name)
	}
	if tl := in.TeamLead; tl != nil {
		if tl.Remarks != nil {
			leave.TeamLead.Remarks = trimmed(tl.Remarks)
		}
		if tl.Status != nil {
			status := ReviewStatus(*tl.Status)
			if !status.Valid() {
				return Request{}, apperror.Validation("Invalid review status")
			}
			leave.TeamLead.setStatus(status, actor.UserID, s.now())
		}
	}

	actorID := actor.UserID
	leave.UpdatedBy = &actorID
	return s.store.Save(ctx, leave, leave.Version)
}

func applyHRSection(section *HRSection, in *HRSectionInput) error {
	if in.ReceivedBy != nil {
		section.ReceivedBy = trimmed(in.ReceivedBy)
	}
	if in.ReceivedAt.Set {
		section.ReceivedAt = optionalDate(in.ReceivedAt)
	}
	if in.EmploymentStatus.Set {
		value := trimmed(in.EmploymentStatus.Value)
		switch {
		case value == "":
			section.EmploymentStatus = nil
		case slices.Contains(EmploymentStatuses, value):
			section.EmploymentStatus = &value
		default:
			return apperror.Validation("Invalid employment status")
		}
	}
	if in.DecisionForForm != nil {
		value := trimmed(in.DecisionForForm)
		if !slices.Contains(Decisions, value) {
			return apperror.Validation("Invalid HR decision")
		}
		section.DecisionForForm = value
	}
	if in.Remarks != nil {
		section.Remarks = trimmed(in.Remarks)
	}
	if a := in.AnnualAllowance; a != nil {
		section.AnnualAllowance = ReconcileSnapshot(section.AnnualAllowance, a.Allowed, a.Used, a.Remaining)
	}
	return nil
}
