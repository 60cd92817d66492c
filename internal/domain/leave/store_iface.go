package leave

import (
	"context"
	"time"
)

// OverrideWrite upserts an allowance override. ExpectedVersion nil writes
// unconditionally, zero requires that no override exists yet, anything else
// must match the stored version.
type OverrideWrite struct {
	UserID          string
	Year            int
	Allowed         float64
	Used            float64
	Remaining       float64
	UpdatedBy       string
	ExpectedVersion *int
}

type StoreAPI interface {
	LedgerReader
	Create(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	ListInRange(ctx context.Context, userID string, start, end time.Time) ([]Request, error)
	Save(ctx context.Context, r Request, expectedVersion int) (Request, error)
	SaveStatus(ctx context.Context, r Request, expectedVersion int, override *OverrideWrite) (Request, error)
	UpsertOverride(ctx context.Context, w OverrideWrite) (Override, error)
}
