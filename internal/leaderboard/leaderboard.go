// Package leaderboard computes windowed rankings over settled points and
// referral rewards. Rankings are always recomputed from source data; the
// persisted snapshots are an audit trail, never a read path.
package leaderboard

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/internal/mathx"
	"github.com/lummalabs/lumma-core/internal/store"
)

const topN = 10

type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// ParsePeriod validates a period string.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return Period(raw), nil
	default:
		return "", &errors.ValidationError{Field: "period", Message: "must be weekly, monthly, or all_time"}
	}
}

type Aggregator struct {
	store store.Store
	now   func() time.Time
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s, now: time.Now}
}

func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

func (a *Aggregator) cutoff(period Period) time.Time {
	now := a.now().UTC()
	switch period {
	case PeriodWeekly:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonthly:
		return now.Add(-30 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Rank computes the top 10 users for the period, assigns dense ranks 1..N,
// and persists the result as an immutable snapshot.
func (a *Aggregator) Rank(period Period) ([]store.LeaderboardRow, error) {
	totals, err := a.store.LeaderboardTotals(a.cutoff(period))
	if err != nil {
		return nil, &errors.StorageError{Operation: "aggregate leaderboard totals", Err: err}
	}

	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Points > totals[j].Points })
	if len(totals) > topN {
		totals = totals[:topN]
	}

	rows := make([]store.LeaderboardRow, 0, len(totals))
	for i, total := range totals {
		rows = append(rows, store.LeaderboardRow{
			UserID: total.UserID,
			Points: mathx.Round2(total.Points),
			Rank:   i + 1,
		})
	}

	snapshot := &store.LeaderboardSnapshot{
		ID:         uuid.NewString(),
		Period:     string(period),
		CapturedAt: a.now().UTC(),
		Rows:       rows,
	}
	if err := a.store.InsertLeaderboardSnapshot(snapshot); err != nil {
		return nil, &errors.StorageError{Operation: "insert leaderboard snapshot", Err: err}
	}
	return rows, nil
}
