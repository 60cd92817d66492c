package attendance

import (
	"context"
	"time"
)

type StoreAPI interface {
	// Upsert writes the record for (UserID, Date), replacing any earlier mark.
	Upsert(ctx context.Context, r Record) (Record, error)
	// UpsertMany writes every record atomically.
	UpsertMany(ctx context.Context, records []Record) (int, error)
	Get(ctx context.Context, userID string, day time.Time) (Record, error)
	// ListByDate returns the records of one day; an empty userID means every user.
	ListByDate(ctx context.Context, day time.Time, userID string) ([]Record, error)
	ListRange(ctx context.Context, userID string, start, end time.Time) ([]Record, error)
	// BranchTotals counts statuses per approved user in [start, end). An empty
	// branch means every branch.
	BranchTotals(ctx context.Context, branch string, start, end time.Time) ([]BranchRow, error)
}
