package fuel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrportal/internal/domain/apperror"
	"hrportal/internal/domain/auth"
)

const (
	EventVerified = "fuel:verified"
	EventReviewed = "fuel:reviewed"

	defaultLimit = 20
	maxLimit     = 100
)

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
	return &Service{store: store, notifier: notifier, newID: uuid.NewString}
}

// Create files line items against the actor's requisition for the month,
// appending to it when one already exists.
func (s *Service) Create(ctx context.Context, actor auth.UserContext, in CreateInput) (Requisition, error) {
	if strings.TrimSpace(in.Month) == "" || in.Year == 0 {
		return Requisition{}, ErrPeriodRequired
	}
	month, ok := canonicalMonth(in.Month)
	if !ok {
		return Requisition{}, ErrInvalidMonth
	}
	if in.Year < 2000 || in.Year > 9999 {
		return Requisition{}, ErrInvalidYear
	}
	items, err := buildItems(in.Items)
	if err != nil {
		return Requisition{}, err
	}
	var status Status
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		if status, err = s.settableStatus(actor, *in.Status); err != nil {
			return Requisition{}, err
		}
	}

	existing, err := s.store.FindPeriod(ctx, actor.UserID, month, in.Year)
	switch {
	case err == nil:
		return s.appendTo(ctx, existing, items, status, in.Remarks)
	case !errors.Is(err, ErrNotFound):
		return Requisition{}, err
	}

	if len(items) == 0 {
		return Requisition{}, ErrItemsRequired
	}
	r := Requisition{
		ID:      s.newID(),
		UserID:  actor.UserID,
		Month:   month,
		Year:    in.Year,
		Status:  StatusSubmitted,
		Version: 1,
	}
	if status != "" {
		r.Status = status
	}
	if in.Remarks != nil {
		r.Remarks = strings.TrimSpace(*in.Remarks)
	}
	r.setItems(items)
	created, err := s.store.Create(ctx, r)
	if !errors.Is(err, ErrPeriodTaken) {
		return created, err
	}
	// a concurrent create won the unique slot; append to it instead
	existing, err = s.store.FindPeriod(ctx, actor.UserID, month, in.Year)
	if err != nil {
		return Requisition{}, err
	}
	return s.appendTo(ctx, existing, items, status, in.Remarks)
}

func (s *Service) appendTo(ctx context.Context, r Requisition, items []LineItem, status Status, remarks *string) (Requisition, error) {
	r.setItems(append(r.Items, items...))
	if status != "" {
		r.Status = status
	}
	if remarks != nil {
		r.Remarks = strings.TrimSpace(*remarks)
	}
	return s.store.Save(ctx, r, r.Version)
}

// List returns a page of requisitions. Admin roles see everyone's and may
// filter by user; other roles only see their own.
func (s *Service) List(ctx context.Context, actor auth.UserContext, q ListQuery) (Page, error) {
	filter := ListFilter{Remarks: strings.TrimSpace(q.Q)}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	} else {
		filter.UserID = strings.TrimSpace(q.UserID)
	}
	if strings.TrimSpace(q.Month) != "" {
		month, ok := canonicalMonth(q.Month)
		if !ok {
			return Page{}, ErrInvalidMonth
		}
		filter.Month = month
	}
	if strings.TrimSpace(q.Year) != "" {
		year, err := strconv.Atoi(strings.TrimSpace(q.Year))
		if err != nil {
			return Page{}, ErrInvalidYear
		}
		filter.Year = year
	}
	if strings.TrimSpace(q.Status) != "" {
		status := Status(strings.ToLower(strings.TrimSpace(q.Status)))
		if !status.Valid() {
			return Page{}, ErrInvalidStatus
		}
		filter.Status = status
	}

	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	rows, total, err := s.store.List(ctx, filter)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Data:       rows,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: max(1, (total+limit-1)/limit),
	}, nil
}

// Get returns a requisition its owner or an admin role may see.
func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (Requisition, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Requisition{}, err
	}
	if !actor.IsAdmin() && r.UserID != actor.UserID {
		return Requisition{}, ErrForbidden
	}
	return r, nil
}

// Update patches a requisition. Ownership never changes. Replacing the items
// recomputes the totals.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in UpdateInput) (Requisition, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Requisition{}, err
	}
	if in.Version != nil && *in.Version != r.Version {
		return Requisition{}, ErrVersionConflict
	}
	expected := r.Version
	previous := r.Status

	if in.Month != nil {
		month, ok := canonicalMonth(*in.Month)
		if !ok {
			return Requisition{}, ErrInvalidMonth
		}
		r.Month = month
	}
	if in.Year != nil {
		if *in.Year < 2000 || *in.Year > 9999 {
			return Requisition{}, ErrInvalidYear
		}
		r.Year = *in.Year
	}
	if in.Items != nil {
		items, err := buildItems(in.Items)
		if err != nil {
			return Requisition{}, err
		}
		if len(items) == 0 {
			return Requisition{}, ErrItemsRequired
		}
		r.setItems(items)
	}
	if in.Status != nil {
		status, err := s.settableStatus(actor, *in.Status)
		if err != nil {
			return Requisition{}, err
		}
		r.Status = status
	}
	if in.Remarks != nil {
		r.Remarks = strings.TrimSpace(*in.Remarks)
	}

	saved, err := s.store.Save(ctx, r, expected)
	if err != nil {
		return Requisition{}, err
	}
	if saved.Status != previous && saved.Status.Reviewed() {
		s.notify(ctx, saved, EventReviewed, "Fuel requisition "+string(saved.Status),
			fmt.Sprintf("Your fuel requisition for %s %d was %s.", saved.Month, saved.Year, saved.Status),
			map[string]any{"id": saved.ID, "status": saved.Status})
	}
	return saved, nil
}

// Delete removes a requisition its owner or an admin role may see.
func (s *Service) Delete(ctx context.Context, actor auth.UserContext, id string) (Requisition, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Requisition{}, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return Requisition{}, err
	}
	return r, nil
}

// AddItem appends one unverified line item.
func (s *Service) AddItem(ctx context.Context, actor auth.UserContext, id string, in ItemInput) (Requisition, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Requisition{}, err
	}
	in.Verified = false
	items, err := buildItems([]ItemInput{in})
	if err != nil {
		return Requisition{}, err
	}
	r.setItems(append(r.Items, items...))
	return s.store.Save(ctx, r, r.Version)
}

// RemoveItem drops the line item at srNo and renumbers the rest. The last
// item cannot be removed; delete the requisition instead.
func (s *Service) RemoveItem(ctx context.Context, actor auth.UserContext, id string, srNo int) (Requisition, error) {
	r, err := s.Get(ctx, actor, id)
	if err != nil {
		return Requisition{}, err
	}
	kept := make([]LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		if it.SrNo != srNo {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(r.Items) {
		return Requisition{}, ErrItemNotFound
	}
	if len(kept) == 0 {
		return Requisition{}, ErrItemsRequired
	}
	r.setItems(kept)
	return s.store.Save(ctx, r, r.Version)
}

// SetItemVerification flags one line item as verified or not. Admin roles only.
func (s *Service) SetItemVerification(ctx context.Context, actor auth.UserContext, id string, srNo int, verified bool) (Requisition, error) {
	if !actor.IsAdmin() {
		return Requisition{}, ErrAdminOnlyVerify
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Requisition{}, err
	}
	index := -1
	for i, it := range r.Items {
		if it.SrNo == srNo {
			index = i
		}
	}
	if index < 0 {
		return Requisition{}, ErrItemNotFound
	}
	was := r.Items[index].Verified
	r.Items[index].Verified = verified
	saved, err := s.store.Save(ctx, r, r.Version)
	if err != nil {
		return Requisition{}, err
	}
	if verified && !was {
		item := saved.Items[index]
		s.notify(ctx, saved, EventVerified, "Fuel line item verified",
			fmt.Sprintf("Item %d (%s) on your %s %d requisition was verified.", item.SrNo, item.Description, saved.Month, saved.Year),
			map[string]any{"id": saved.ID, "srNo": item.SrNo})
	}
	return saved, nil
}

func (s *Service) settableStatus(actor auth.UserContext, raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	if status.Reviewed() && !actor.IsAdmin() {
		return "", ErrAdminOnlyReview
	}
	return status, nil
}

func (s *Service) notify(ctx context.Context, r Requisition, event, title, body string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, r.UserID, event, title, body, payload)
}

// buildItems validates submitted line items and fills in missing amounts.
func buildItems(inputs []ItemInput) ([]LineItem, error) {
	out := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		item := LineItem{
			Description: strings.TrimSpace(in.Description),
			Km:          in.Km,
			Rate:        in.Rate,
			Verified:    in.Verified,
		}
		if item.Description == "" {
			return nil, itemError(i, "description is required")
		}
		if item.Km.IsNegative() || item.Rate.IsNegative() {
			return nil, itemError(i, "km and rate must be non-negative")
		}
		if in.Amount != nil {
			if in.Amount.IsNegative() {
				return nil, itemError(i, "amount must be non-negative")
			}
			item.Amount = *in.Amount
		} else {
			item.Amount = item.Km.Mul(item.Rate)
		}
		item.Amount = item.Amount.Round(2)
		if raw := strings.TrimSpace(in.Date); raw != "" {
			day, ok := parseDay(raw)
			if !ok {
				return nil, itemError(i, "date is invalid")
			}
			item.Date = &day
		}
		out = append(out, item)
	}
	return out, nil
}

func itemError(index int, msg string) error {
	return apperror.Validation(fmt.Sprintf("Line item %d: %s", index+1, msg))
}

func parseDay(raw string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// canonicalMonth accepts a month name, its three-letter abbreviation or its
// number and returns the full English name.
func canonicalMonth(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > 12 {
			return "", false
		}
		return time.Month(n).String(), true
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(raw, name) || strings.EqualFold(raw, name[:3]) {
			return name, true
		}
	}
	return "", false
}
