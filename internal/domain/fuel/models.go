package fuel

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reviewed reports whether the status is a review outcome only admin roles may set.
func (s Status) Reviewed() bool {
	return s == StatusApproved || s == StatusRejected
}

// LineItem is one trip on a requisition. SrNo is the 1-based position and
// is reassigned whenever items are added or removed.
type LineItem struct {
	SrNo        int             `json:"srNo"`
	Description string          `json:"description"`
	Km          decimal.Decimal `json:"km"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	Date        *time.Time      `json:"date,omitempty"`
	Verified    bool            `json:"verified"`
}

// Owner is the profile summary shown alongside a requisition.
type Owner struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	EmployeeID  int    `json:"employeeId"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
	Branch      string `json:"branch"`
	City        string `json:"city"`
}

// Requisition collects a user's fuel claims for one month. There is at most
// one per user, month and year.
type Requisition struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	User        *Owner          `json:"user,omitempty"`
	Month       string          `json:"month"`
	Year        int             `json:"year"`
	Items       []LineItem      `json:"items"`
	TotalKm     decimal.Decimal `json:"totalKm"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      Status          `json:"status"`
	Remarks     string          `json:"remarks"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// setItems renumbers items from 1 and recomputes the totals.
func (r *Requisition) setItems(items []LineItem) {
	r.Items = make([]LineItem, len(items))
	r.TotalKm = decimal.Zero
	r.TotalAmount = decimal.Zero
	for i, it := range items {
		it.SrNo = i + 1
		r.Items[i] = it
		r.TotalKm = r.TotalKm.Add(it.Km)
		r.TotalAmount = r.TotalAmount.Add(it.Amount)
	}
	r.TotalKm = r.TotalKm.Round(2)
	r.TotalAmount = r.TotalAmount.Round(2)
}

// ItemInput is a line item as submitted. Amount defaults to km * rate.
type ItemInput struct {
	Description string           `json:"description"`
	Km          decimal.Decimal  `json:"km"`
	Rate        decimal.Decimal  `json:"rate"`
	Amount      *decimal.Decimal `json:"amount"`
	Date        string           `json:"date"`
	Verified    bool             `json:"verified"`
}

type CreateInput struct {
	Month   string      `json:"month"`
	Year    int         `json:"year"`
	Items   []ItemInput `json:"items"`
	Status  *string     `json:"status"`
	Remarks *string     `json:"remarks"`
}

// UpdateInput leaves nil fields untouched. A non-nil Items replaces every
// line item. Version, when set, must match the stored version.
type UpdateInput struct {
	Month   *string     `json:"month"`
	Year    *int        `json:"year"`
	Items   []ItemInput `json:"items"`
	Status  *string     `json:"status"`
	Remarks *string     `json:"remarks"`
	Version *int        `json:"version"`
}

// Flag decodes true, "true" in any case, or any other JSON value by its
// truthiness.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*f = Flag(v)
	case string:
		*f = Flag(strings.EqualFold(strings.TrimSpace(v), "true"))
	case float64:
		*f = v != 0
	default:
		*f = raw != nil
	}
	return nil
}

type VerificationInput struct {
	Verified Flag `json:"verified"`
}

type ListQuery struct {
	UserID string
	Month  string
	Year   string
	Status string
	Q      string
	Page   int
	Limit  int
}

type ListFilter struct {
	UserID  string
	Month   string
	Year    int
	Status  Status
	Remarks string
	Limit   int
	Offset  int
}

type Page struct {
	Data       []Requisition `json:"data"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}
