package overtime

import "context"

type StoreAPI interface {
	Instructor(ctx context.Context, userID string) (Instructor, error)
	Create(ctx context.Context, c Claim) (Claim, error)
	Get(ctx context.Context, id string) (Claim, error)
	// List returns claims newest day first.
	List(ctx context.Context, filter ListFilter) ([]Claim, error)
	// ListPeriod returns claims in [Start, End) oldest day first.
	ListPeriod(ctx context.Context, filter PeriodFilter) ([]Claim, error)
	Save(ctx context.Context, c Claim) (Claim, error)
	Delete(ctx context.Context, id string) error
}
