package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, nameQuery string) ([]User, error) {
	return s.store.List(ctx, nameQuery)
}

func (s *Service) ListTeamLeads(ctx context.Context) ([]TeamLead, error) {
	return s.store.ListTeamLeads(ctx)
}

// Update applies an administrative patch. Only a superadmin changes roles and
// nobody changes their own role.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (User, error) {
	patch, err := buildPatch(in)
	if err != nil {
		return User{}, err
	}
	if patch.Role != nil {
		if actor.RoleName != auth.RoleSuperAdmin {
			return User{}, apperror.Forbidden("Only a superadmin can change roles.")
		}
		if actor.UserID == id {
			return User{}, apperror.Validation("You cannot change your own role.")
		}
	}
	return s.store.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) error {
	if actor.UserID == id {
		return apperror.Validation("You cannot delete your own account.")
	}
	target, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == auth.RoleSuperAdmin && actor.RoleName != auth.RoleSuperAdmin {
		return apperror.Forbidden("Only a superadmin can delete a superadmin.")
	}
	return s.store.Delete(ctx, id)
}

// SetSelfTeamLead toggles the caller's own team-lead flag.
func (s *Service) SetSelfTeamLead(ctx context.Context, actor auth.UserContext, isTeamLead bool) (User, error) {
	return s.store.SetTeamLead(ctx, actor.UserID, isTeamLead)
}

func buildPatch(in UpdateInput) (Patch, error) {
	var patch Patch
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return Patch{}, apperror.Validation("fullName cannot be empty")
		}
		patch.FullName = &name
	}
	if in.Email != nil {
		addr, err := mail.ParseAddress(strings.TrimSpace(*in.Email))
		if err != nil {
			return Patch{}, apperror.Validation("email is invalid")
		}
		normalized := strings.ToLower(addr.Address)
		patch.Email = &normalized
	}
	patch.Department = trimmed(in.Department)
	patch.Branch = trimmed(in.Branch)
	patch.City = trimmed(in.City)
	if in.JoiningDate != nil {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(*in.JoiningDate))
		if err != nil {
			return Patch{}, apperror.Validation("joiningDate must be YYYY-MM-DD")
		}
		patch.JoiningDate = &parsed
	}
	patch.IsApproved = in.IsApproved
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if !auth.ValidRole(role) {
			return Patch{}, apperror.Validation("Invalid role")
		}
		patch.Role = &role
	}
	return patch, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	out := strings.TrimSpace(*value)
	return &out
}
