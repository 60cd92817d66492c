package leave

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLedger struct {
	accepted      float64
	override      *Override
	acceptedCalls int
	overrideCalls int
}

func (c *countingLedger) AcceptedDays(context.Context, string, int, ...string) (float64, error) {
	c.acceptedCalls++
	return c.accepted, nil
}

func (c *countingLedger) GetOverride(context.Context, string, int) (*Override, error) {
	c.overrideCalls++
	return c.override, nil
}

func TestReconcileWithoutOverride(t *testing.T) {
	got := Reconcile(3, nil)
	assert.Equal(t, Allowance{Allowed: 12, Used: 3, Remaining: 9, ActualUsed: 3}, got)

	got = Reconcile(14, nil)
	assert.Equal(t, 0.0, got.Remaining)
}

func TestReconcileOverrideUsedAboveLedgerWins(t *testing.T) {
	got := Reconcile(3.25, &Override{Allowed: ptr(15.0), Used: ptr(10.0)})
	assert.Equal(t, Allowance{Allowed: 15, Used: 10, Remaining: 5, ActualUsed: 3.25}, got)
}

// A manual used figure below the ledger is raised back to the ledger total.
// This keeps the long-standing max-of-candidates behaviour.
func TestReconcileMaxOfCandidatesQuirk(t *testing.T) {
	got := Reconcile(3, &Override{Allowed: ptr(12.0), Used: ptr(1.0), Remaining: ptr(11.0)})
	assert.Equal(t, 3.0, got.Used)
	assert.Equal(t, 9.0, got.Remaining)

	got = Reconcile(0, &Override{Allowed: ptr(12.0), Used: ptr(2.0), Remaining: ptr(6.0)})
	assert.Equal(t, 6.0, got.Used, "remaining-implied used is a candidate too")

	got = Reconcile(0, &Override{Allowed: ptr(-4.0), Used: ptr(-1.0)})
	assert.Equal(t, Allowance{}, got)
}

func TestCalculatorWithoutReferenceDateSkipsStorage(t *testing.T) {
	ledger := &countingLedger{accepted: 5}
	calc := NewCalculator(ledger)

	got, err := calc.Annual(context.Background(), "u1", nil, NewAllowanceCache())
	require.NoError(t, err)
	assert.Equal(t, Allowance{Allowed: 12, Used: 0, Remaining: 12, ActualUsed: 0}, got)
	assert.Zero(t, ledger.acceptedCalls)
	assert.Zero(t, ledger.overrideCalls)
}

func TestCalculatorMemoisesPerCache(t *testing.T) {
	ledger := &countingLedger{accepted: 2}
	calc := NewCalculator(ledger)
	ctx := context.Background()
	march := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	cache := NewAllowanceCache()
	for _, ref := range []time.Time{march, june, march} {
		_, err := calc.Annual(ctx, "u1", &ref, cache)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, ledger.acceptedCalls)
	assert.Equal(t, 1, ledger.overrideCalls)

	_, err := calc.Annual(ctx, "u1", &march, NewAllowanceCache())
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.acceptedCalls, "a fresh cache must not see earlier results")
}

func TestDecideStatusCapsAcceptance(t *testing.T) {
	leave := Request{Status: StatusPending, Duration: FullDay{DayCount: 2}}

	d := DecideStatus(leave, StatusAccepted, 3, &Override{Allowed: ptr(4.0), Used: ptr(3.0)})
	assert.True(t, d.LimitExceeded)
	assert.Equal(t, 1.0, d.RemainingAtCap)

	d = DecideStatus(leave, StatusAccepted, 3, nil)
	assert.False(t, d.LimitExceeded)
	assert.True(t, d.WriteOverride)
	assert.Equal(t, AllowanceSnapshot{Allowed: 12, Used: 5, Remaining: 7}, d.Snapshot)
}

func TestDecideStatusNonAcceptanceWithoutOverrideSkipsWrite(t *testing.T) {
	leave := Request{Status: StatusPending, Duration: HalfDay{Session: SessionFirstHalf}}
	d := DecideStatus(leave, StatusRejected, 1.5, nil)
	assert.False(t, d.WriteOverride)
	assert.Equal(t, AllowanceSnapshot{Allowed: 12, Used: 1.5, Remaining: 10.5}, d.Snapshot)
}

func TestDecideStatusReleasesDaysOfAcceptedLeave(t *testing.T) {
	leave := Request{Status: StatusAccepted, Duration: FullDay{DayCount: 3}}
	override := &Override{Allowed: ptr(12.0), Used: ptr(3.0), Remaining: ptr(9.0)}

	again := DecideStatus(leave, StatusAccepted, 0, override)
	assert.Equal(t, 3.0, again.Snapshot.Used)

	rejected := DecideStatus(leave, StatusRejected, 0, override)
	assert.Equal(t, 0.0, rejected.Snapshot.Used)
	assert.Equal(t, 12.0, rejected.Snapshot.Remaining)
}

func TestDecideStatusBaselineSubtractsAcceptedDaysFromOverride(t *testing.T) {
	leave := Request{Status: StatusAccepted, Duration: FullDay{DayCount: 2}}

	// stored used=7 includes this leave; the baseline becomes 5
	held := DecideStatus(leave, StatusOnHold, 1, &Override{Used: ptr(7.0)})
	assert.Equal(t, AllowanceSnapshot{Allowed: 12, Used: 5, Remaining: 7}, held.Snapshot)
	assert.True(t, held.WriteOverride)

	again := DecideStatus(leave, StatusAccepted, 1, &Override{Used: ptr(7.0)})
	assert.Equal(t, 7.0, again.Snapshot.Used)

	// a pending leave leaves the stored value untouched
	pending := Request{Status: StatusPending, Duration: FullDay{DayCount: 2}}
	fresh := DecideStatus(pending, StatusAccepted, 1, &Override{Used: ptr(7.0)})
	assert.Equal(t, 9.0, fresh.Snapshot.Used)

	// the release never drives the baseline below zero or the ledger
	floored := DecideStatus(leave, StatusRejected, 0.5, &Override{Used: ptr(1.0)})
	assert.Equal(t, 0.5, floored.Snapshot.Used)
}

func TestReconcileSnapshot(t *testing.T) {
	got := ReconcileSnapshot(nil, ptr(10.0), ptr(4.0), nil)
	assert.Equal(t, &AllowanceSnapshot{Allowed: 10, Used: 4, Remaining: 6}, got)

	got = ReconcileSnapshot(nil, ptr(10.0), nil, ptr(7.0))
	assert.Equal(t, &AllowanceSnapshot{Allowed: 10, Used: 3, Remaining: 7}, got)

	got = ReconcileSnapshot(nil, ptr(5.0), ptr(9.0), nil)
	assert.Equal(t, &AllowanceSnapshot{Allowed: 5, Used: 5, Remaining: 0}, got)

	got = ReconcileSnapshot(&AllowanceSnapshot{Allowed: 12, Used: 2, Remaining: 10}, nil, ptr(-3.0), nil)
	assert.Equal(t, &AllowanceSnapshot{Allowed: 12, Used: 0, Remaining: 12}, got)
}

func TestFormatDays(t *testing.T) {
	assert.Equal(t, "12", formatDays(12))
	assert.Equal(t, "6.75", formatDays(6.75))
	assert.Equal(t, "0.50", formatDays(0.5))
	assert.Equal(t, "1 day has already been approved this year", approvedText(1))
	assert.Equal(t, "3.25 days have already been approved this year", approvedText(3.25))
}
