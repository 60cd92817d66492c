package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerReader is the read side the allowance calculator needs.
type LedgerReader interface {
	AcceptedDays(ctx context.Context, userID string, year int, excludeIDs ...string) (float64, error)
	GetOverride(ctx context.Context, userID string, year int) (*Override, error)
}

type cacheKey struct {
	userID string
	year   int
}

// AllowanceCache memoises allowances and overrides for one request or report.
// It must not outlive the request that created it.
type AllowanceCache struct {
	allowances map[cacheKey]Allowance
	overrides  map[cacheKey]*Override
}

func NewAllowanceCache() *AllowanceCache {
	return &AllowanceCache{
		allowances: map[cacheKey]Allowance{},
		overrides:  map[cacheKey]*Override{},
	}
}

func DefaultAllowance() Allowance {
	return Allowance{Allowed: StandardAllowance, Remaining: StandardAllowance}
}

type Calculator struct {
	ledger LedgerReader
}

func NewCalculator(ledger LedgerReader) *Calculator {
	return &Calculator{ledger: ledger}
}

// Annual returns the effective allowance for the year containing ref. A nil
// ref yields the static default without touching storage. cache may be nil.
func (c *Calculator) Annual(ctx context.Context, userID string, ref *time.Time, cache *AllowanceCache) (Allowance, error) {
	if ref == nil {
		return DefaultAllowance(), nil
	}
	key := cacheKey{userID: userID, year: ref.UTC().Year()}
	if cache != nil {
		if a, ok := cache.allowances[key]; ok {
			return a, nil
		}
	}

	override, err := c.override(ctx, key, cache)
	if err != nil {
		return Allowance{}, err
	}
	baseUsed, err := c.ledger.AcceptedDays(ctx, userID, key.year)
	if err != nil {
		return Allowance{}, err
	}

	a := Reconcile(baseUsed, override)
	if cache != nil {
		cache.allowances[key] = a
	}
	return a, nil
}

func (c *Calculator) override(ctx context.Context, key cacheKey, cache *AllowanceCache) (*Override, error) {
	if cache != nil {
		if o, ok := cache.overrides[key]; ok {
			return o, nil
		}
	}
	o, err := c.ledger.GetOverride(ctx, key.userID, key.year)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.overrides[key] = o
	}
	return o, nil
}

// Reconcile combines the ledger total with an optional override. Effective
// used is the largest of the ledger total, the override's used and the used
// implied by the override's remaining, so a manual used below the ledger is
// raised back to it.
func Reconcile(baseUsed float64, override *Override) Allowance {
	allowed := decimal.NewFromFloat(StandardAllowance)
	used := decimal.NewFromFloat(baseUsed)
	if override != nil {
		if override.Allowed != nil {
			allowed = decimal.Max(decimal.NewFromFloat(*override.Allowed), decimal.Zero)
		}
		if override.Used != nil {
			used = decimal.Max(used, decimal.Max(decimal.NewFromFloat(*override.Used), decimal.Zero))
		}
		if override.Remaining != nil {
			remaining := decimal.Max(decimal.NewFromFloat(*override.Remaining), decimal.Zero)
			used = decimal.Max(used, decimal.Max(allowed.Sub(remaining), decimal.Zero))
		}
	}
	return Allowance{
		Allowed:    allowed.InexactFloat64(),
		Used:       used.InexactFloat64(),
		Remaining:  decimal.Max(allowed.Sub(used), decimal.Zero).InexactFloat64(),
		ActualUsed: baseUsed,
	}
}

// StatusDecision is the allowance outcome of a status transition.
type StatusDecision struct {
	Snapshot       AllowanceSnapshot
	WriteOverride  bool
	LimitExceeded  bool
	RemainingAtCap float64
}

// DecideStatus applies a transition of leave to status against the ledger
// total of every other accepted leave that year.
//
// The stored override is not used verbatim as the baseline. When leave is
// already accepted its days are taken to be part of override.used, so they
// are subtracted from it (floored at zero) before the comparison with the
// ledger. Re-accepting the same leave therefore lands on the same used
// total, and rejecting it or putting it on hold releases its days.
func DecideStatus(leave Request, status Status, otherAccepted float64, override *Override) StatusDecision {
	allowed := decimal.NewFromFloat(StandardAllowance)
	ledger := decimal.NewFromFloat(otherAccepted)
	days := decimal.NewFromFloat(leave.Days())

	baseline := ledger
	if override != nil {
		if override.Allowed != nil {
			allowed = decimal.NewFromFloat(*override.Allowed)
		}
		if override.Used != nil {
			baseline = decimal.Max(decimal.NewFromFloat(*override.Used), decimal.Zero)
			if leave.Status == StatusAccepted {
				baseline = decimal.Max(baseline.Sub(days), decimal.Zero)
			}
		}
	}
	effective := decimal.Max(baseline, ledger)

	resulting := effective
	if status == StatusAccepted {
		prospective := effective.Add(days)
		if prospective.GreaterThan(allowed) {
			return StatusDecision{
				LimitExceeded:  true,
				RemainingAtCap: decimal.Max(allowed.Sub(effective), decimal.Zero).InexactFloat64(),
			}
		}
		resulting = prospective
	}

	return StatusDecision{
		Snapshot: AllowanceSnapshot{
			Allowed:   allowed.InexactFloat64(),
			Used:      resulting.InexactFloat64(),
			Remaining: decimal.Max(allowed.Sub(resulting), decimal.Zero).InexactFloat64(),
		},
		WriteOverride: override != nil || status == StatusAccepted,
	}
}

// ReconcileSnapshot normalises a manually entered allowance snapshot against
// the current one: values are clamped at zero, the missing side of
// used/remaining is derived, and used is capped at allowed.
func ReconcileSnapshot(current *AllowanceSnapshot, allowed, used, remaining *float64) *AllowanceSnapshot {
	var a, u, r *decimal.Decimal
	set := func(v float64) *decimal.Decimal {
		d := decimal.Max(decimal.NewFromFloat(v), decimal.Zero)
		return &d
	}
	if current != nil {
		a, u, r = set(current.Allowed), set(current.Used), set(current.Remaining)
	}
	if allowed != nil {
		a = set(*allowed)
	}
	if used != nil {
		u = set(*used)
	}
	if remaining != nil {
		r = set(*remaining)
	}
	if a == nil {
		out := &AllowanceSnapshot{}
		if u != nil {
			out.Used = u.InexactFloat64()
		}
		if r != nil {
			out.Remaining = r.InexactFloat64()
		}
		return out
	}
	if r == nil && u != nil {
		r = set(a.Sub(*u).InexactFloat64())
	} else if u == nil && r != nil {
		u = set(a.Sub(*r).InexactFloat64())
	}
	usedVal := decimal.Zero
	if u != nil {
		usedVal = decimal.Min(*u, *a)
	}
	return &AllowanceSnapshot{
		Allowed:   a.InexactFloat64(),
		Used:      usedVal.InexactFloat64(),
		Remaining: decimal.Max(a.Sub(usedVal), decimal.Zero).InexactFloat64(),
	}
}

// formatDays prints integral values plainly and everything else with two decimals.
func formatDays(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Equal(d.Truncate(0)) {
		return d.String()
	}
	return d.StringFixed(2)
}

func approvedText(actualUsed float64) string {
	if actualUsed == 1 {
		return "1 day has already been approved this year"
	}
	return fmt.Sprintf("%s days have already been approved this year", formatDays(actualUsed))
}
