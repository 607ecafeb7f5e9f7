package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/referral"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/store/memory"
)

func newTestAccrual(now time.Time) (*Accrual, *memory.Store) {
	mem := memory.New()
	graph := referral.NewGraph(mem)
	return NewAccrual(mem, graph).WithClock(func() time.Time { return now }), mem
}

func TestEstimateAPYStableWithinBucket(t *testing.T) {
	def := catalog[1]
	at := time.Date(2026, 3, 14, 10, 31, 0, 0, time.UTC)
	later := at.Add(5 * time.Minute) // same 15-minute bucket

	first := EstimateAPY(def, at)
	assert.Equal(t, first, EstimateAPY(def, at))
	assert.InDelta(t, first, EstimateAPY(def, later), 0.5)
}

func TestEstimateAPYWithinRange(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, def := range Catalog() {
		for i := 0; i < 96; i++ {
			apy := EstimateAPY(def, start.Add(time.Duration(i)*15*time.Minute))
			assert.GreaterOrEqual(t, apy, def.ApyMin, "vault %s", def.ID)
			assert.LessOrEqual(t, apy, def.ApyMax, "vault %s", def.ID)
		}
	}
}

func TestAccrueSimpleInterest(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// 10000 at 10% for a year earns 1000, non-compounding.
	earned := AccrueSimpleInterest(10000, 0, 10, from, from.AddDate(1, 0, 0))
	assert.InDelta(t, 1000, earned, 1)

	// Existing earnings are preserved.
	assert.Equal(t, 50.0, AccrueSimpleInterest(10000, 50, 10, from, from))

	// Time running backwards accrues nothing.
	assert.Equal(t, 50.0, AccrueSimpleInterest(10000, 50, 10, from, from.Add(-time.Hour)))
}

func TestDepositAndWithdrawRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	accrual, _ := newTestAccrual(now)

	pos, err := accrual.Deposit("alice", "vault-balanced", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, pos.PrincipalUsd)
	assert.Equal(t, 0.0, pos.EarnedUsd)

	pos, err = accrual.Withdraw("alice", "vault-balanced", 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.PrincipalUsd)
	assert.Equal(t, 0.0, pos.EarnedUsd)
}

func TestWithdrawTakesEarnedFirst(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	accrual, mem := newTestAccrual(now)

	_, err := accrual.Deposit("alice", "vault-balanced", 1000)
	require.NoError(t, err)

	// Seed accrued earnings directly.
	_, err = mem.UpdateVaultPosition("alice", "vault-balanced", func(pos *store.VaultPosition) error {
		pos.EarnedUsd = 40
		return nil
	})
	require.NoError(t, err)

	pos, err := accrual.Withdraw("alice", "vault-balanced", 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.EarnedUsd)
	assert.Equal(t, 940.0, pos.PrincipalUsd)
}

func TestDepositAccruesOverTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := now
	mem := memory.New()
	graph := referral.NewGraph(mem)
	accrual := NewAccrual(mem, graph).WithClock(func() time.Time { return clock })

	_, err := accrual.Deposit("alice", "vault-aggressive", 10000)
	require.NoError(t, err)

	clock = clock.Add(30 * 24 * time.Hour)
	views, err := accrual.Views("alice")
	require.NoError(t, err)

	var target View
	for _, view := range views {
		if view.ID == "vault-aggressive" {
			target = view
		}
	}
	// 30 days at 12-20% on 10000 principal.
	assert.Greater(t, target.Position.EarnedUsd, 90.0)
	assert.Less(t, target.Position.EarnedUsd, 170.0)
	assert.Equal(t, 10000.0, target.Position.PrincipalUsd)
}

func TestDepositRejectsOverCap(t *testing.T) {
	accrual, _ := newTestAccrual(time.Now())
	_, err := accrual.Deposit("alice", "vault-conservative", 25001)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestDepositRejectsWhenPaused(t *testing.T) {
	accrual, mem := newTestAccrual(time.Now())
	require.NoError(t, mem.SetSystemFlag(store.VaultPauseFlag, true))

	_, err := accrual.Deposit("alice", "vault-balanced", 100)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Error(), "paused")

	// Withdrawals stay open while paused.
	require.NoError(t, mem.SetSystemFlag(store.VaultPauseFlag, false))
	_, err = accrual.Deposit("alice", "vault-balanced", 100)
	require.NoError(t, err)
	require.NoError(t, mem.SetSystemFlag(store.VaultPauseFlag, true))
	_, err = accrual.Withdraw("alice", "vault-balanced", 50)
	assert.NoError(t, err)
}

func TestDepositUnknownVault(t *testing.T) {
	accrual, _ := newTestAccrual(time.Now())
	_, err := accrual.Deposit("alice", "vault-degen", 100)
	var notFound *errors.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestWithdrawExceedingPosition(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	accrual, _ := newTestAccrual(now)

	_, err := accrual.Deposit("alice", "vault-balanced", 100)
	require.NoError(t, err)

	_, err = accrual.Withdraw("alice", "vault-balanced", 500)
	var conflict *errors.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestViewsTvlTracksNetFlows(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	accrual, _ := newTestAccrual(now)

	_, err := accrual.Deposit("alice", "vault-conservative", 5000)
	require.NoError(t, err)
	_, err = accrual.Withdraw("alice", "vault-conservative", 1000)
	require.NoError(t, err)

	views, err := accrual.Views("alice")
	require.NoError(t, err)
	for _, view := range views {
		if view.ID == "vault-conservative" {
			assert.Equal(t, 132000.0, view.TvlUsd)
		}
	}
}
