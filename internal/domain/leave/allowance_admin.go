package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/users"
)

type AllowanceResult struct {
	UserID       string    `json:"userId"`
	Year         int       `json:"year"`
	Allowed      float64   `json:"allowed"`
	Remaining    float64   `json:"remaining"`
	Used         float64   `json:"used"`
	ActualUsed   float64   `json:"actualUsed"`
	MaxRemaining float64   `json:"maxRemaining"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Version      int       `json:"version"`
}

// SetAllowance writes the override for a user-year. The implied used figure
// may not drop below what the ledger has already accepted.
func (s *Service) SetAllowance(ctx context.Context, actor auth.UserContext, in AllowanceInput) (AllowanceResult, error) {
	ctx, span := s.tracer.Start(ctx, "leave.SetAllowance")
	defer span.End()

	if _, err := uuid.Parse(in.UserID); err != nil {
		return AllowanceResult{}, apperror.Validation("Invalid user reference")
	}
	if _, err := s.users.Get(ctx, in.UserID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return AllowanceResult{}, apperror.Validation("Invalid user reference")
		}
		return AllowanceResult{}, err
	}
	if in.Year < 1970 {
		return AllowanceResult{}, apperror.Validation("Invalid year value")
	}
	if in.Allowed == nil || *in.Allowed < 0 {
		return AllowanceResult{}, apperror.Validation("Allowed leaves must be a non-negative number")
	}
	if in.Remaining == nil || *in.Remaining < 0 {
		return AllowanceResult{}, apperror.Validation("Remaining balance must be a non-negative number")
	}
	if *in.Remaining > *in.Allowed {
		return AllowanceResult{}, apperror.Validation("Remaining balance cannot exceed total allowance")
	}
	span.SetAttributes(attribute.String("allowance.user_id", in.UserID), attribute.Int("allowance.year", in.Year))

	allowed := decimal.NewFromFloat(*in.Allowed)
	used := decimal.Max(allowed.Sub(decimal.NewFromFloat(*in.Remaining)), decimal.Zero)
	actualUsed, err := s.store.AcceptedDays(ctx, in.UserID, in.Year)
	if err != nil {
		return AllowanceResult{}, err
	}
	actual := decimal.NewFromFloat(actualUsed)
	maxRemaining := decimal.Max(allowed.Sub(actual), decimal.Zero).InexactFloat64()

	if used.Add(decimal.NewFromFloat(allowanceEpsilon)).LessThan(actual) {
		msg := fmt.Sprintf("Remaining balance cannot exceed %s day(s) because %s.", formatDays(maxRemaining), approvedText(actualUsed))
		return AllowanceResult{}, apperror.Validation(msg).
			WithCode("allowance_below_usage").
			WithDetails(map[string]any{"actualUsed": actualUsed, "maxRemaining": maxRemaining})
	}

	saved, err := s.store.UpsertOverride(ctx, OverrideWrite{
		UserID:          in.UserID,
		Year:            in.Year,
		Allowed:         *in.Allowed,
		Used:            used.InexactFloat64(),
		Remaining:       *in.Remaining,
		UpdatedBy:       actor.UserID,
		ExpectedVersion: in.Version,
	})
	if err != nil {
		return AllowanceResult{}, err
	}

	out := AllowanceResult{
		UserID:     saved.UserID,
		Year:       saved.Year,
		ActualUsed: actualUsed,
		UpdatedAt:  saved.UpdatedAt,
		Version:    saved.Version,
	}
	if saved.Allowed != nil {
		out.Allowed = *saved.Allowed
	}
	if saved.Remaining != nil {
		out.Remaining = *saved.Remaining
	}
	if saved.Used != nil {
		out.Used = *saved.Used
	}
	out.MaxRemaining = decimal.Max(decimal.NewFromFloat(out.Allowed).Sub(actual), decimal.Zero).InexactFloat64()
	return out, nil
}

// GetAllowance returns the effective allowance for a user-year. Employees
// only see their own.
func (s *Service) GetAllowance(ctx context.Context, actor auth.UserContext, userID string, year int) (Allowance, error) {
	target, err := s.resolveTarget(ctx, actor, userID)
	if err != nil {
		return Allowance{}, err
	}
	if year < 1970 {
		return Allowance{}, apperror.Validation("Invalid year value")
	}
	ref := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return s.calc.Annual(ctx, target.ID, &ref, nil)
}
