package fuel

import "context"

type StoreAPI interface {
	Create(ctx context.Context, r Requisition) (Requisition, error)
	Get(ctx context.Context, id string) (Requisition, error)
	// FindPeriod returns the user's requisition for month and year or ErrNotFound.
	FindPeriod(ctx context.Context, userID, month string, year int) (Requisition, error)
	// List returns one page, newest first, and the number of matching rows.
	List(ctx context.Context, filter ListFilter) ([]Requisition, int, error)
	Save(ctx context.Context, r Requisition, expectedVersion int) (Requisition, error)
	Delete(ctx context.Context, id string) error
}
