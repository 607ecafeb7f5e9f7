package leaderboard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/store"
	"github.com/lummalabs/lumma-core/internal/store/memory"
)

func seedSettledPoints(t *testing.T, mem *memory.Store, userID string, points float64, at time.Time) {
	t.Helper()
	_, err := mem.GetOrCreateUser(userID, "")
	require.NoError(t, err)
	require.NoError(t, mem.InsertPointEvent(&store.PointEvent{
		ID: memory.NewID(), UserID: userID, TaskKey: "complete_swap",
		Points: points, Status: store.PointSettled, CreatedAt: at,
	}))
}

func TestParsePeriod(t *testing.T) {
	for _, raw := range []string{"weekly", "monthly", "all_time"} {
		period, err := ParsePeriod(raw)
		require.NoError(t, err)
		assert.Equal(t, Period(raw), period)
	}
	_, err := ParsePeriod("daily")
	var validation *errors.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestRankOrdersAndNumbers(t *testing.T) {
	mem := memory.New()
	now := time.Now().UTC()
	agg := NewAggregator(mem).WithClock(func() time.Time { return now })

	seedSettledPoints(t, mem, "bronze-user", 100, now)
	seedSettledPoints(t, mem, "top-user", 900, now)
	seedSettledPoints(t, mem, "mid-user", 500, now)

	rows, err := agg.Rank(PeriodAllTime)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "top-user", rows[0].UserID)
	assert.Equal(t, "mid-user", rows[1].UserID)
	assert.Equal(t, "bronze-user", rows[2].UserID)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Rank)
	}
}

func TestRankWindowExcludesOldEvents(t *testing.T) {
	mem := memory.New()
	now := time.Now().UTC()
	agg := NewAggregator(mem).WithClock(func() time.Time { return now })

	seedSettledPoints(t, mem, "recent", 100, now.Add(-time.Hour))
	seedSettledPoints(t, mem, "ancient", 900, now.Add(-10*24*time.Hour))

	weekly, err := agg.Rank(PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, weekly, 1)
	assert.Equal(t, "recent", weekly[0].UserID)

	allTime, err := agg.Rank(PeriodAllTime)
	require.NoError(t, err)
	assert.Len(t, allTime, 2)
}

func TestRankCapsAtTopTen(t *testing.T) {
	mem := memory.New()
	now := time.Now().UTC()
	agg := NewAggregator(mem).WithClock(func() time.Time { return now })

	for i := 0; i < 13; i++ {
		seedSettledPoints(t, mem, fmt.Sprintf("user-%02d", i), float64(100+i), now)
	}

	rows, err := agg.Rank(PeriodAllTime)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, "user-12", rows[0].UserID)
	assert.Equal(t, 10, rows[9].Rank)
}

func TestRankIncludesReferralRewards(t *testing.T) {
	mem := memory.New()
	now := time.Now().UTC()
	agg := NewAggregator(mem).WithClock(func() time.Time { return now })

	seedSettledPoints(t, mem, "earner", 100, now)
	_, err := mem.GetOrCreateUser("referrer", "")
	require.NoError(t, err)
	require.NoError(t, mem.InsertReferralReward(&store.ReferralReward{
		ID: memory.NewID(), ReferrerUserID: "referrer", SourceUserID: "earner",
		SourceEventID: "event-1", Points: 150, CreatedAt: now,
	}))

	rows, err := agg.Rank(PeriodAllTime)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "referrer", rows[0].UserID)
	assert.Equal(t, 150.0, rows[0].Points)
}

func TestRankPersistsSnapshot(t *testing.T) {
	mem := memory.New()
	now := time.Now().UTC()
	agg := NewAggregator(mem).WithClock(func() time.Time { return now })
	seedSettledPoints(t, mem, "alice", 100, now)

	rows, err := agg.Rank(PeriodWeekly)
	require.NoError(t, err)

	snapshots := mem.Snapshots()
	require.Len(t, snapshots, 1)
	assert.Equal(t, "weekly", snapshots[0].Period)
	assert.Equal(t, rows, snapshots[0].Rows)
}
